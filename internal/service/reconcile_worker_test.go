package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/solvearc/solvearc-api/internal/models"
)

func TestReconcileWorkerMarksSuccessfulReplaysDone(t *testing.T) {
	previous := models.SubmissionStatusWrongAnswer
	outbox := &stubOutbox{due: []models.ReconciliationTask{{
		ID:             4,
		UserID:         1,
		ProblemSetID:   7,
		ProblemID:      10,
		PreviousStatus: &previous,
		NewStatus:      models.SubmissionStatusAccepted,
		TotalProblems:  3,
	}}}
	reconciler := &stubReconciler{}
	worker := NewReconcileWorker(outbox, reconciler, time.Second, zerolog.Nop())

	require.NoError(t, worker.DrainOnce(context.Background()))

	require.Len(t, reconciler.applied, 1)
	require.Equal(t, uint(7), reconciler.applied[0].ProblemSetID)
	require.Equal(t, models.SubmissionStatusAccepted, reconciler.applied[0].NewStatus)
	require.Equal(t, []uint{4}, outbox.done)
	require.Empty(t, outbox.fails)
}

func TestReconcileWorkerRecordsRetryOnFailure(t *testing.T) {
	outbox := &stubOutbox{due: []models.ReconciliationTask{{ID: 4, UserID: 1, ProblemSetID: 7, ProblemID: 10, Attempts: 2}}}
	reconciler := &stubReconciler{err: errors.New("still broken")}
	worker := NewReconcileWorker(outbox, reconciler, time.Second, zerolog.Nop())

	require.NoError(t, worker.DrainOnce(context.Background()))

	require.Empty(t, outbox.done)
	require.Equal(t, []int{3}, outbox.fails)
}

func TestReconcileWorkerGivesUpAfterMaxAttempts(t *testing.T) {
	outbox := &stubOutbox{due: []models.ReconciliationTask{{ID: 4, UserID: 1, ProblemSetID: 7, ProblemID: 10, Attempts: reconcileWorkerMaxAttempts - 1}}}
	reconciler := &stubReconciler{err: errors.New("still broken")}
	worker := NewReconcileWorker(outbox, reconciler, time.Second, zerolog.Nop())

	require.NoError(t, worker.DrainOnce(context.Background()))
	require.Equal(t, []int{reconcileWorkerMaxAttempts}, outbox.fails)
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	require.Equal(t, 30*time.Second, backoffFor(1))
	require.Equal(t, time.Minute, backoffFor(2))
	require.Equal(t, 8*time.Minute, backoffFor(5))
	require.Equal(t, 30*time.Minute, backoffFor(8))
	require.Equal(t, 30*time.Minute, backoffFor(20))
}
