package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	judgeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "solvearc",
		Subsystem: "judge",
		Name:      "execution_duration_seconds",
		Help:      "Duration of judge executions",
		Buckets:   prometheus.DefBuckets,
	}, []string{"language"})

	judgeTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "solvearc",
		Subsystem: "judge",
		Name:      "execution_timeouts_total",
		Help:      "Number of judge executions that hit the timeout",
	}, []string{"language"})

	judgeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "solvearc",
		Subsystem: "judge",
		Name:      "execution_failures_total",
		Help:      "Number of judge executions that resulted in an error",
	}, []string{"language"})
)

// ErrJudgeUnavailable indicates the judge endpoint could not be reached or
// answered with a non-success status.
var ErrJudgeUnavailable = errors.New("judge unavailable")

// Config groups HTTP judge client configuration values.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// HTTPClient talks to an external judge service over HTTP. Every call carries
// a hard timeout so a judge run that never returns cannot hold a grading
// request open indefinitely.
type HTTPClient struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	logger  zerolog.Logger
}

// NewHTTPClient constructs an HTTP judge client.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("judge base url must not be empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPClient{
		baseURL: cfg.BaseURL,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		logger:  cfg.Logger.With().Str("component", "judge_client").Logger(),
	}, nil
}

// Execute posts the grading request to the judge and decodes its report.
func (c *HTTPClient) Execute(ctx context.Context, req ExecutionRequest) (ExecutionReport, error) {
	tracer := otel.Tracer("github.com/solvearc/solvearc-api/pkg/judge")
	ctx, span := tracer.Start(ctx, "judge.execute")
	span.SetAttributes(
		attribute.String("judge.language", req.Language),
		attribute.Int("judge.test_count", len(req.TestCases)),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return ExecutionReport{}, fmt.Errorf("encode judge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(payload))
	if err != nil {
		return ExecutionReport{}, fmt.Errorf("build judge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	judgeDuration.WithLabelValues(req.Language).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			judgeTimeouts.WithLabelValues(req.Language).Inc()
			span.SetStatus(codes.Error, "timeout")
			return ExecutionReport{}, fmt.Errorf("%w: execution timed out after %s", ErrJudgeUnavailable, c.timeout)
		}
		judgeFailures.WithLabelValues(req.Language).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "request_failed")
		return ExecutionReport{}, fmt.Errorf("%w: %v", ErrJudgeUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		judgeFailures.WithLabelValues(req.Language).Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error().Int("status", resp.StatusCode).Bytes("body", body).Msg("judge returned non-success status")
		span.SetStatus(codes.Error, "bad_status")
		return ExecutionReport{}, fmt.Errorf("%w: status %d", ErrJudgeUnavailable, resp.StatusCode)
	}

	var report ExecutionReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		judgeFailures.WithLabelValues(req.Language).Inc()
		span.RecordError(err)
		return ExecutionReport{}, fmt.Errorf("decode judge report: %w", err)
	}

	span.SetAttributes(attribute.Bool("judge.all_passed", report.AllPassed))
	return report, nil
}
