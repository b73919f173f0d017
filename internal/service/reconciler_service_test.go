package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/solvearc/solvearc-api/internal/models"
	"github.com/solvearc/solvearc-api/internal/repository"
)

// memEnrollmentRepo mimics the storage primitives in memory: floored counter
// adjustments and true set semantics for completions.
type memEnrollmentRepo struct {
	enrollment  *models.ProblemSetEnrollment
	completions map[uint]bool
	err         error
}

func newMemEnrollmentRepo() *memEnrollmentRepo {
	return &memEnrollmentRepo{completions: map[uint]bool{}}
}

func (m *memEnrollmentRepo) GetBySetAndUser(ctx context.Context, problemSetID, userID uint) (models.ProblemSetEnrollment, error) {
	if m.err != nil {
		return models.ProblemSetEnrollment{}, m.err
	}
	if m.enrollment == nil || m.enrollment.ProblemSetID != problemSetID || m.enrollment.UserID != userID {
		return models.ProblemSetEnrollment{}, gorm.ErrRecordNotFound
	}
	return *m.enrollment, nil
}

func (m *memEnrollmentRepo) EnsureExists(ctx context.Context, problemSetID, userID uint) (models.ProblemSetEnrollment, error) {
	if m.err != nil {
		return models.ProblemSetEnrollment{}, m.err
	}
	if m.enrollment == nil {
		m.enrollment = &models.ProblemSetEnrollment{ID: 1, ProblemSetID: problemSetID, UserID: userID, EnrolledAt: time.Now().UTC()}
	}
	return *m.enrollment, nil
}

func (m *memEnrollmentRepo) AdjustCounters(ctx context.Context, problemSetID, userID uint, deltaTotal, deltaCorrect int64) error {
	if m.err != nil {
		return m.err
	}
	m.enrollment.TotalSubmissions += deltaTotal
	if m.enrollment.TotalSubmissions < 0 {
		m.enrollment.TotalSubmissions = 0
	}
	m.enrollment.CorrectSubmissions += deltaCorrect
	if m.enrollment.CorrectSubmissions < 0 {
		m.enrollment.CorrectSubmissions = 0
	}
	return nil
}

func (m *memEnrollmentRepo) AddCompletion(ctx context.Context, enrollmentID, problemID uint) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.completions[problemID] {
		return false, nil
	}
	m.completions[problemID] = true
	return true, nil
}

func (m *memEnrollmentRepo) RemoveCompletion(ctx context.Context, enrollmentID, problemID uint) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if !m.completions[problemID] {
		return false, nil
	}
	delete(m.completions, problemID)
	return true, nil
}

func (m *memEnrollmentRepo) ListCompletions(ctx context.Context, enrollmentID uint) ([]uint, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]uint, 0, len(m.completions))
	for id := range m.completions {
		out = append(out, id)
	}
	return out, nil
}

func (m *memEnrollmentRepo) RecomputeProgress(ctx context.Context, problemSetID, userID uint, totalProblems int) error {
	if m.err != nil {
		return m.err
	}
	if totalProblems <= 0 {
		m.enrollment.Progress = 0
		return nil
	}
	progress := int(math.Round(100 * float64(len(m.completions)) / float64(totalProblems)))
	if progress > 100 {
		progress = 100
	}
	m.enrollment.Progress = progress
	return nil
}

func (m *memEnrollmentRepo) Transact(ctx context.Context, fn func(repository.EnrollmentRepository) error) error {
	return fn(m)
}

func acceptedStatus() *string {
	status := models.SubmissionStatusAccepted
	return &status
}

func wrongStatus() *string {
	status := models.SubmissionStatusWrongAnswer
	return &status
}

func TestReconcilerNewAcceptedSlot(t *testing.T) {
	repo := newMemEnrollmentRepo()
	svc := NewReconcilerService(repo, nil, zerolog.Nop())

	err := svc.Apply(context.Background(), Transition{
		UserID:        1,
		ProblemSetID:  7,
		ProblemID:     10,
		NewSlot:       true,
		NewStatus:     models.SubmissionStatusAccepted,
		TotalProblems: 4,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), repo.enrollment.TotalSubmissions)
	require.Equal(t, int64(1), repo.enrollment.CorrectSubmissions)
	require.True(t, repo.completions[10])
	require.Equal(t, 25, repo.enrollment.Progress)
}

func TestReconcilerNewWrongSlotCountsAttemptOnly(t *testing.T) {
	repo := newMemEnrollmentRepo()
	svc := NewReconcilerService(repo, nil, zerolog.Nop())

	err := svc.Apply(context.Background(), Transition{
		UserID:        1,
		ProblemSetID:  7,
		ProblemID:     10,
		NewSlot:       true,
		NewStatus:     models.SubmissionStatusWrongAnswer,
		TotalProblems: 4,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), repo.enrollment.TotalSubmissions)
	require.Equal(t, int64(0), repo.enrollment.CorrectSubmissions)
	require.Empty(t, repo.completions)
	require.Equal(t, 0, repo.enrollment.Progress)
}

func TestReconcilerOverwriteWrongToAccepted(t *testing.T) {
	repo := newMemEnrollmentRepo()
	svc := NewReconcilerService(repo, nil, zerolog.Nop())

	require.NoError(t, svc.Apply(context.Background(), Transition{
		UserID: 1, ProblemSetID: 7, ProblemID: 10,
		NewSlot: true, NewStatus: models.SubmissionStatusWrongAnswer, TotalProblems: 2,
	}))
	require.NoError(t, svc.Apply(context.Background(), Transition{
		UserID: 1, ProblemSetID: 7, ProblemID: 10,
		PreviousStatus: wrongStatus(), NewStatus: models.SubmissionStatusAccepted, TotalProblems: 2,
	}))

	require.Equal(t, int64(1), repo.enrollment.TotalSubmissions, "re-grading a slot is not a new attempt")
	require.Equal(t, int64(1), repo.enrollment.CorrectSubmissions)
	require.Equal(t, 50, repo.enrollment.Progress)
}

func TestReconcilerOverwriteAcceptedToWrong(t *testing.T) {
	repo := newMemEnrollmentRepo()
	svc := NewReconcilerService(repo, nil, zerolog.Nop())

	require.NoError(t, svc.Apply(context.Background(), Transition{
		UserID: 1, ProblemSetID: 7, ProblemID: 10,
		NewSlot: true, NewStatus: models.SubmissionStatusAccepted, TotalProblems: 2,
	}))
	require.NoError(t, svc.Apply(context.Background(), Transition{
		UserID: 1, ProblemSetID: 7, ProblemID: 10,
		PreviousStatus: acceptedStatus(), NewStatus: models.SubmissionStatusWrongAnswer, TotalProblems: 2,
	}))

	require.Equal(t, int64(1), repo.enrollment.TotalSubmissions)
	require.Equal(t, int64(0), repo.enrollment.CorrectSubmissions)
	require.Empty(t, repo.completions)
	require.Equal(t, 0, repo.enrollment.Progress)
}

func TestReconcilerReplayedOverwriteIsIdempotent(t *testing.T) {
	repo := newMemEnrollmentRepo()
	svc := NewReconcilerService(repo, nil, zerolog.Nop())

	require.NoError(t, svc.Apply(context.Background(), Transition{
		UserID: 1, ProblemSetID: 7, ProblemID: 10,
		NewSlot: true, NewStatus: models.SubmissionStatusWrongAnswer, TotalProblems: 2,
	}))

	transition := Transition{
		UserID: 1, ProblemSetID: 7, ProblemID: 10,
		PreviousStatus: wrongStatus(), NewStatus: models.SubmissionStatusAccepted, TotalProblems: 2,
	}
	require.NoError(t, svc.Apply(context.Background(), transition))
	require.NoError(t, svc.Apply(context.Background(), transition))

	require.Equal(t, int64(1), repo.enrollment.TotalSubmissions)
	require.Equal(t, int64(1), repo.enrollment.CorrectSubmissions, "replaying the same transition must not double-count")
}

func TestReconcilerAcceptedToAcceptedChangesNothing(t *testing.T) {
	repo := newMemEnrollmentRepo()
	svc := NewReconcilerService(repo, nil, zerolog.Nop())

	require.NoError(t, svc.Apply(context.Background(), Transition{
		UserID: 1, ProblemSetID: 7, ProblemID: 10,
		NewSlot: true, NewStatus: models.SubmissionStatusAccepted, TotalProblems: 2,
	}))
	require.NoError(t, svc.Apply(context.Background(), Transition{
		UserID: 1, ProblemSetID: 7, ProblemID: 10,
		PreviousStatus: acceptedStatus(), NewStatus: models.SubmissionStatusAccepted, TotalProblems: 2,
	}))

	require.Equal(t, int64(1), repo.enrollment.TotalSubmissions)
	require.Equal(t, int64(1), repo.enrollment.CorrectSubmissions)
	require.Equal(t, 50, repo.enrollment.Progress)
}

func TestReconcilerStatusSequenceReflectsOnlyFinalState(t *testing.T) {
	repo := newMemEnrollmentRepo()
	svc := NewReconcilerService(repo, nil, zerolog.Nop())

	// wrong_answer, accepted, wrong_answer, accepted against one slot.
	require.NoError(t, svc.Apply(context.Background(), Transition{
		UserID: 1, ProblemSetID: 7, ProblemID: 10,
		NewSlot: true, NewStatus: models.SubmissionStatusWrongAnswer, TotalProblems: 4,
	}))
	require.NoError(t, svc.Apply(context.Background(), Transition{
		UserID: 1, ProblemSetID: 7, ProblemID: 10,
		PreviousStatus: wrongStatus(), NewStatus: models.SubmissionStatusAccepted, TotalProblems: 4,
	}))
	require.NoError(t, svc.Apply(context.Background(), Transition{
		UserID: 1, ProblemSetID: 7, ProblemID: 10,
		PreviousStatus: acceptedStatus(), NewStatus: models.SubmissionStatusWrongAnswer, TotalProblems: 4,
	}))
	require.NoError(t, svc.Apply(context.Background(), Transition{
		UserID: 1, ProblemSetID: 7, ProblemID: 10,
		PreviousStatus: wrongStatus(), NewStatus: models.SubmissionStatusAccepted, TotalProblems: 4,
	}))

	require.Equal(t, int64(1), repo.enrollment.TotalSubmissions)
	require.Equal(t, int64(1), repo.enrollment.CorrectSubmissions, "only the final state counts, never the history")
	require.Len(t, repo.completions, 1)
	require.Equal(t, 25, repo.enrollment.Progress)
}

func TestReconcilerDeleteMirrorsTheSlot(t *testing.T) {
	repo := newMemEnrollmentRepo()
	svc := NewReconcilerService(repo, nil, zerolog.Nop())

	require.NoError(t, svc.Apply(context.Background(), Transition{
		UserID: 1, ProblemSetID: 7, ProblemID: 10,
		NewSlot: true, NewStatus: models.SubmissionStatusAccepted, TotalProblems: 2,
	}))
	require.NoError(t, svc.Apply(context.Background(), Transition{
		UserID: 1, ProblemSetID: 7, ProblemID: 10,
		Deleted: true, PreviousStatus: acceptedStatus(), TotalProblems: 2,
	}))

	require.Equal(t, int64(0), repo.enrollment.TotalSubmissions)
	require.Equal(t, int64(0), repo.enrollment.CorrectSubmissions)
	require.Empty(t, repo.completions)
	require.Equal(t, 0, repo.enrollment.Progress)
}

func TestReconcilerDeleteOfWrongSubmissionKeepsCorrectCount(t *testing.T) {
	repo := newMemEnrollmentRepo()
	svc := NewReconcilerService(repo, nil, zerolog.Nop())

	require.NoError(t, svc.Apply(context.Background(), Transition{
		UserID: 1, ProblemSetID: 7, ProblemID: 10,
		NewSlot: true, NewStatus: models.SubmissionStatusAccepted, TotalProblems: 2,
	}))
	require.NoError(t, svc.Apply(context.Background(), Transition{
		UserID: 1, ProblemSetID: 7, ProblemID: 11,
		NewSlot: true, NewStatus: models.SubmissionStatusWrongAnswer, TotalProblems: 2,
	}))
	require.NoError(t, svc.Apply(context.Background(), Transition{
		UserID: 1, ProblemSetID: 7, ProblemID: 11,
		Deleted: true, PreviousStatus: wrongStatus(), TotalProblems: 2,
	}))

	require.Equal(t, int64(1), repo.enrollment.TotalSubmissions)
	require.Equal(t, int64(1), repo.enrollment.CorrectSubmissions)
	require.True(t, repo.completions[10])
}

func TestReconcilerSnapshotMapsMissingEnrollment(t *testing.T) {
	svc := NewReconcilerService(newMemEnrollmentRepo(), nil, zerolog.Nop())

	_, err := svc.Snapshot(context.Background(), 7, 1)
	require.ErrorIs(t, err, ErrEnrollmentNotFound)
}
