package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/solvearc/solvearc-api/internal/dto"
	"github.com/solvearc/solvearc-api/internal/models"
	"github.com/solvearc/solvearc-api/internal/repository"
)

// SetAnalyticsService computes reporting statistics for one problem set from
// the submission history. It sits outside the grading consistency boundary:
// the numbers are recomputed from submission rows on demand and an enrollment
// that momentarily disagrees with them is tolerated.
type SetAnalyticsService interface {
	GetSummary(ctx context.Context, problemSetID uint) (dto.SetAnalyticsResponse, error)
}

type setAnalyticsService struct {
	repo        repository.SetAnalyticsRepository
	problemSets repository.ProblemSetRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSetAnalyticsService constructs the analytics service.
func NewSetAnalyticsService(repo repository.SetAnalyticsRepository, problemSetRepo repository.ProblemSetRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) SetAnalyticsService {
	return &setAnalyticsService{
		repo:        repo,
		problemSets: problemSetRepo,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "set_analytics_service").Logger(),
		now:         time.Now,
	}
}

func (s *setAnalyticsService) GetSummary(ctx context.Context, problemSetID uint) (dto.SetAnalyticsResponse, error) {
	cacheKey := fmt.Sprintf("analytics:problem_set:%d", problemSetID)
	tracer := otel.Tracer("github.com/solvearc/solvearc-api/internal/service/set_analytics")
	ctx, span := tracer.Start(ctx, "analytics.aggregate")
	span.SetAttributes(attribute.String("analytics.cache_key", cacheKey))
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Result()
		if err == nil {
			var response dto.SetAnalyticsResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("analytics.cache_hit", true))
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read analytics cache")
			span.RecordError(err)
		}
	}

	if _, err := s.problemSets.GetByID(ctx, problemSetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SetAnalyticsResponse{}, ErrProblemSetNotFound
		}
		span.RecordError(err)
		return dto.SetAnalyticsResponse{}, err
	}

	submissions, err := s.repo.ListSubmissionsBySet(ctx, problemSetID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_submissions_failed")
		return dto.SetAnalyticsResponse{}, err
	}

	enrollments, err := s.repo.CountEnrollments(ctx, problemSetID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count_enrollments_failed")
		return dto.SetAnalyticsResponse{}, err
	}

	summary := buildSetSummary(problemSetID, enrollments, submissions)
	span.SetAttributes(
		attribute.Int64("analytics.enrollment_count", enrollments),
		attribute.Int("analytics.submission_count", len(submissions)),
	)

	if s.cache != nil {
		payload, err := json.Marshal(summary)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store analytics cache")
				span.RecordError(err)
			}
		}
	}

	return summary, nil
}

func buildSetSummary(problemSetID uint, enrollments int64, submissions []models.Submission) dto.SetAnalyticsResponse {
	distribution := dto.ScoreDistributionResponse{
		"90-100": 0,
		"75-89":  0,
		"60-74":  0,
		"0-59":   0,
	}

	scores := make([]float64, 0, len(submissions))
	accepted := int64(0)
	daily := map[string]int64{}

	for _, submission := range submissions {
		scores = append(scores, submission.Score)
		if submission.IsAccepted() {
			accepted++
		}

		switch {
		case submission.Score >= 90:
			distribution["90-100"]++
		case submission.Score >= 75:
			distribution["75-89"]++
		case submission.Score >= 60:
			distribution["60-74"]++
		default:
			distribution["0-59"]++
		}

		day := submission.SubmittedAt.UTC().Format("2006-01-02")
		daily[day]++
	}

	days := make([]string, 0, len(daily))
	for day := range daily {
		days = append(days, day)
	}
	sort.Strings(days)

	series := make([]dto.SubmissionsPerDayResponse, 0, len(days))
	for _, day := range days {
		series = append(series, dto.SubmissionsPerDayResponse{Date: day, Count: daily[day]})
	}

	summary := dto.SetAnalyticsResponse{
		ProblemSetID:    problemSetID,
		SubmissionCount: int64(len(submissions)),
		EnrollmentCount: enrollments,
		Distribution:    distribution,
		TimeSeries:      series,
	}

	if len(scores) > 0 {
		summary.MeanScore = round2(mean(scores))
		summary.MedianScore = round2(median(scores))
		summary.StdDevScore = round2(stdDev(scores))
		summary.PassRate = round2(float64(accepted) / float64(len(scores)) * 100)
	}

	return summary
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	avg := mean(values)
	sum := 0.0
	for _, value := range values {
		diff := value - avg
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values)))
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
