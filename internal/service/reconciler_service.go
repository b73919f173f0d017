package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/solvearc/solvearc-api/internal/dto"
	"github.com/solvearc/solvearc-api/internal/models"
	"github.com/solvearc/solvearc-api/internal/observability"
	"github.com/solvearc/solvearc-api/internal/repository"
)

// ErrEnrollmentNotFound indicates no enrollment exists for the pair.
var ErrEnrollmentNotFound = errors.New("enrollment not found")

// Transition carries everything the reconciler needs to bring an enrollment in
// line with one submission write or deletion. The before/after status pair is
// part of the transition itself, so replaying the identical transition is safe.
type Transition struct {
	UserID         uint
	ProblemSetID   uint
	ProblemID      uint
	NewSlot        bool
	Deleted        bool
	PreviousStatus *string
	NewStatus      string
	TotalProblems  int
}

func (t Transition) wasAccepted() bool {
	return t.PreviousStatus != nil && *t.PreviousStatus == models.SubmissionStatusAccepted
}

func (t Transition) nowAccepted() bool {
	return !t.Deleted && t.NewStatus == models.SubmissionStatusAccepted
}

// ReconcilerService keeps per-user enrollment aggregates consistent with the
// submission history.
type ReconcilerService interface {
	Apply(ctx context.Context, transition Transition) error
	Snapshot(ctx context.Context, problemSetID, userID uint) (dto.EnrollmentResponse, error)
}

type reconcilerService struct {
	enrollments repository.EnrollmentRepository
	events      *GradingEvents
	logger      zerolog.Logger
}

// NewReconcilerService constructs the reconciler.
func NewReconcilerService(enrollments repository.EnrollmentRepository, events *GradingEvents, logger zerolog.Logger) ReconcilerService {
	return &reconcilerService{
		enrollments: enrollments,
		events:      events,
		logger:      logger.With().Str("component", "reconciler_service").Logger(),
	}
}

// Apply updates the enrollment's counters, completed-problem set and progress
// for one transition, inside a single transaction. Counter bumps that track
// accepted-ness are gated on whether set membership actually changed, so an
// identical transition applied twice never double-counts.
func (s *reconcilerService) Apply(ctx context.Context, transition Transition) error {
	err := s.enrollments.Transact(ctx, func(repo repository.EnrollmentRepository) error {
		enrollment, err := repo.EnsureExists(ctx, transition.ProblemSetID, transition.UserID)
		if err != nil {
			return err
		}

		deltaTotal := int64(0)
		deltaCorrect := int64(0)

		switch {
		case transition.Deleted:
			deltaTotal = -1
			if transition.wasAccepted() {
				removed, err := repo.RemoveCompletion(ctx, enrollment.ID, transition.ProblemID)
				if err != nil {
					return err
				}
				if removed {
					deltaCorrect = -1
				}
			}
		case transition.NewSlot:
			deltaTotal = 1
			if transition.nowAccepted() {
				added, err := repo.AddCompletion(ctx, enrollment.ID, transition.ProblemID)
				if err != nil {
					return err
				}
				if added {
					deltaCorrect = 1
				}
			}
		default:
			// Re-graded slot: the attempt count is untouched, only a change
			// in accepted-ness moves the aggregates.
			switch {
			case transition.wasAccepted() && !transition.nowAccepted():
				removed, err := repo.RemoveCompletion(ctx, enrollment.ID, transition.ProblemID)
				if err != nil {
					return err
				}
				if removed {
					deltaCorrect = -1
				}
			case !transition.wasAccepted() && transition.nowAccepted():
				added, err := repo.AddCompletion(ctx, enrollment.ID, transition.ProblemID)
				if err != nil {
					return err
				}
				if added {
					deltaCorrect = 1
				}
			}
		}

		if err := repo.AdjustCounters(ctx, transition.ProblemSetID, transition.UserID, deltaTotal, deltaCorrect); err != nil {
			return err
		}

		return repo.RecomputeProgress(ctx, transition.ProblemSetID, transition.UserID, transition.TotalProblems)
	})
	if err != nil {
		observability.ReconciliationOutcomes().WithLabelValues("failure").Inc()
		return err
	}
	observability.ReconciliationOutcomes().WithLabelValues("success").Inc()

	if s.events != nil {
		s.events.PublishEnrollmentUpdated(ctx, transition.ProblemSetID, transition.UserID)
	}
	return nil
}

// Snapshot returns the enrollment aggregate with its completed-problem set.
func (s *reconcilerService) Snapshot(ctx context.Context, problemSetID, userID uint) (dto.EnrollmentResponse, error) {
	enrollment, err := s.enrollments.GetBySetAndUser(ctx, problemSetID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EnrollmentResponse{}, ErrEnrollmentNotFound
		}
		return dto.EnrollmentResponse{}, err
	}

	completed, err := s.enrollments.ListCompletions(ctx, enrollment.ID)
	if err != nil {
		return dto.EnrollmentResponse{}, err
	}

	return dto.NewEnrollmentResponse(enrollment, completed), nil
}
