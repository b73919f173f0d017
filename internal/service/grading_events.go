package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// GradingEvents publishes grading lifecycle events over NATS. Publishing is
// best-effort: a nil connection or a publish failure only logs, it never
// affects the grading path.
type GradingEvents struct {
	nats          *nats.Conn
	subjectPrefix string
	logger        zerolog.Logger
}

type submissionGradedEvent struct {
	SubmissionID uint      `json:"submission_id"`
	UserID       uint      `json:"user_id"`
	ProblemID    uint      `json:"problem_id"`
	ProblemSetID *uint     `json:"problem_set_id,omitempty"`
	Status       string    `json:"status"`
	Score        float64   `json:"score"`
	SentAt       time.Time `json:"sent_at"`
}

type enrollmentUpdatedEvent struct {
	ProblemSetID uint      `json:"problem_set_id"`
	UserID       uint      `json:"user_id"`
	SentAt       time.Time `json:"sent_at"`
}

// NewGradingEvents constructs the publisher. channelBase follows the same
// convention as the rest of the platform: colons in, dots out.
func NewGradingEvents(natsConn *nats.Conn, channelBase string, logger zerolog.Logger) *GradingEvents {
	prefix := "grading"
	if channelBase != "" {
		prefix = strings.ReplaceAll(channelBase, ":", ".") + ".grading"
	}

	return &GradingEvents{
		nats:          natsConn,
		subjectPrefix: prefix,
		logger:        logger.With().Str("component", "grading_events").Logger(),
	}
}

// PublishSubmissionGraded announces a persisted grading result.
func (g *GradingEvents) PublishSubmissionGraded(ctx context.Context, submissionID, userID, problemID uint, problemSetID *uint, status string, score float64) {
	g.publish(g.subjectPrefix+".submission.graded", submissionGradedEvent{
		SubmissionID: submissionID,
		UserID:       userID,
		ProblemID:    problemID,
		ProblemSetID: problemSetID,
		Status:       status,
		Score:        score,
		SentAt:       time.Now().UTC(),
	})
}

// PublishEnrollmentUpdated announces a reconciled enrollment aggregate.
func (g *GradingEvents) PublishEnrollmentUpdated(ctx context.Context, problemSetID, userID uint) {
	g.publish(g.subjectPrefix+".enrollment.updated", enrollmentUpdatedEvent{
		ProblemSetID: problemSetID,
		UserID:       userID,
		SentAt:       time.Now().UTC(),
	})
}

func (g *GradingEvents) publish(subject string, payload interface{}) {
	if g == nil || g.nats == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		g.logger.Error().Err(err).Str("subject", subject).Msg("failed to encode grading event")
		return
	}

	if err := g.nats.Publish(subject, data); err != nil {
		g.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish grading event")
	}
}
