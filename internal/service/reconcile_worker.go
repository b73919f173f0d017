package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/solvearc/solvearc-api/internal/models"
	"github.com/solvearc/solvearc-api/internal/repository"
)

const (
	reconcileWorkerBatchSize   = 32
	reconcileWorkerMaxAttempts = 8
)

// ReconcileWorker drains the reconciliation outbox in the background,
// replaying enrollment transitions that failed to apply synchronously.
// Replays carry the original before/after status pair, so applying one is
// idempotent.
type ReconcileWorker struct {
	outbox     repository.ReconciliationOutboxRepository
	reconciler ReconcilerService
	interval   time.Duration
	logger     zerolog.Logger
	now        func() time.Time
}

// NewReconcileWorker constructs the worker.
func NewReconcileWorker(outbox repository.ReconciliationOutboxRepository, reconciler ReconcilerService, interval time.Duration, logger zerolog.Logger) *ReconcileWorker {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &ReconcileWorker{
		outbox:     outbox,
		reconciler: reconciler,
		interval:   interval,
		logger:     logger.With().Str("component", "reconcile_worker").Logger(),
		now:        time.Now,
	}
}

// Start runs the drain loop until the context is cancelled.
func (w *ReconcileWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.DrainOnce(ctx); err != nil {
				w.logger.Error().Err(err).Msg("outbox drain failed")
			}
		}
	}
}

// DrainOnce claims one batch of due tasks and replays them.
func (w *ReconcileWorker) DrainOnce(ctx context.Context) error {
	now := w.now().UTC()
	tasks, err := w.outbox.ListDue(ctx, now, reconcileWorkerBatchSize)
	if err != nil {
		return err
	}

	for _, task := range tasks {
		w.replay(ctx, task)
	}
	return nil
}

func (w *ReconcileWorker) replay(ctx context.Context, task models.ReconciliationTask) {
	err := w.reconciler.Apply(ctx, Transition{
		UserID:         task.UserID,
		ProblemSetID:   task.ProblemSetID,
		ProblemID:      task.ProblemID,
		NewSlot:        task.NewSlot,
		Deleted:        task.Deleted,
		PreviousStatus: task.PreviousStatus,
		NewStatus:      task.NewStatus,
		TotalProblems:  task.TotalProblems,
	})
	if err == nil {
		if markErr := w.outbox.MarkDone(ctx, task.ID, w.now().UTC()); markErr != nil {
			w.logger.Error().Err(markErr).Uint("task_id", task.ID).Msg("failed to mark reconciliation task done")
		}
		return
	}

	attempts := task.Attempts + 1
	dead := attempts >= reconcileWorkerMaxAttempts
	next := w.now().UTC().Add(backoffFor(attempts))
	if markErr := w.outbox.MarkFailed(ctx, task.ID, attempts, err.Error(), next, dead); markErr != nil {
		w.logger.Error().Err(markErr).Uint("task_id", task.ID).Msg("failed to record reconciliation retry")
		return
	}

	event := w.logger.Warn()
	if dead {
		event = w.logger.Error()
	}
	event.Err(err).
		Uint("task_id", task.ID).
		Int("attempts", attempts).
		Bool("dead", dead).
		Msg("reconciliation replay failed")
}

func backoffFor(attempts int) time.Duration {
	backoff := 30 * time.Second
	for i := 1; i < attempts && backoff < 30*time.Minute; i++ {
		backoff *= 2
	}
	if backoff > 30*time.Minute {
		backoff = 30 * time.Minute
	}
	return backoff
}
