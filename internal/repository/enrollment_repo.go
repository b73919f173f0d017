package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/solvearc/solvearc-api/internal/models"
)

// EnrollmentRepository exposes the storage-level primitives the reconciler
// builds its transition rule on. Counter adjustments and completed-set
// membership changes are single atomic statements; there is no client-side
// read-modify-write, so two problems graded concurrently for the same user
// cannot lose an update.
type EnrollmentRepository interface {
	GetBySetAndUser(ctx context.Context, problemSetID, userID uint) (models.ProblemSetEnrollment, error)
	EnsureExists(ctx context.Context, problemSetID, userID uint) (models.ProblemSetEnrollment, error)
	AdjustCounters(ctx context.Context, problemSetID, userID uint, deltaTotal, deltaCorrect int64) error
	AddCompletion(ctx context.Context, enrollmentID, problemID uint) (bool, error)
	RemoveCompletion(ctx context.Context, enrollmentID, problemID uint) (bool, error)
	ListCompletions(ctx context.Context, enrollmentID uint) ([]uint, error)
	RecomputeProgress(ctx context.Context, problemSetID, userID uint, totalProblems int) error
	Transact(ctx context.Context, fn func(EnrollmentRepository) error) error
}

type enrollmentRepository struct {
	db *gorm.DB
}

// NewEnrollmentRepository instantiates the repository.
func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (r *enrollmentRepository) GetBySetAndUser(ctx context.Context, problemSetID, userID uint) (models.ProblemSetEnrollment, error) {
	var enrollment models.ProblemSetEnrollment
	err := r.db.WithContext(ctx).
		Where("problem_set_id = ?", problemSetID).
		Where("user_id = ?", userID).
		First(&enrollment).Error
	if err != nil {
		return models.ProblemSetEnrollment{}, err
	}
	return enrollment, nil
}

// EnsureExists returns the enrollment for the pair, creating an empty one if
// the enrolling action has not run yet. The conflict clause makes concurrent
// first-submissions converge on a single row.
func (r *enrollmentRepository) EnsureExists(ctx context.Context, problemSetID, userID uint) (models.ProblemSetEnrollment, error) {
	enrollment, err := r.GetBySetAndUser(ctx, problemSetID, userID)
	if err == nil {
		return enrollment, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ProblemSetEnrollment{}, err
	}

	fresh := models.ProblemSetEnrollment{
		ProblemSetID: problemSetID,
		UserID:       userID,
		EnrolledAt:   time.Now().UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "problem_set_id"},
			{Name: "user_id"},
		},
		DoNothing: true,
	}).Create(&fresh)
	if create.Error != nil {
		return models.ProblemSetEnrollment{}, create.Error
	}
	if create.RowsAffected > 0 {
		return fresh, nil
	}
	return r.GetBySetAndUser(ctx, problemSetID, userID)
}

// AdjustCounters applies both deltas in one statement, flooring each counter
// at zero.
func (r *enrollmentRepository) AdjustCounters(ctx context.Context, problemSetID, userID uint, deltaTotal, deltaCorrect int64) error {
	if deltaTotal == 0 && deltaCorrect == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Exec(`
		UPDATE problem_set_enrollments
		SET total_submissions = CASE
		        WHEN total_submissions + ? < 0 THEN 0
		        ELSE total_submissions + ?
		    END,
		    correct_submissions = CASE
		        WHEN correct_submissions + ? < 0 THEN 0
		        ELSE correct_submissions + ?
		    END,
		    updated_at = ?
		WHERE problem_set_id = ? AND user_id = ?`,
		deltaTotal, deltaTotal,
		deltaCorrect, deltaCorrect,
		time.Now().UTC(),
		problemSetID, userID,
	).Error
}

// Transact runs fn against a repository bound to one database transaction, so
// a whole enrollment transition commits or rolls back as a unit.
func (r *enrollmentRepository) Transact(ctx context.Context, fn func(EnrollmentRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&enrollmentRepository{db: tx})
	})
}

// AddCompletion inserts the set member, ignoring the write when it is already
// present. The boolean reports whether membership actually changed, which is
// what lets a replayed transition skip its counter bump.
func (r *enrollmentRepository) AddCompletion(ctx context.Context, enrollmentID, problemID uint) (bool, error) {
	member := models.EnrollmentCompletion{
		EnrollmentID: enrollmentID,
		ProblemID:    problemID,
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "enrollment_id"},
			{Name: "problem_id"},
		},
		DoNothing: true,
	}).Create(&member)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *enrollmentRepository) RemoveCompletion(ctx context.Context, enrollmentID, problemID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("enrollment_id = ?", enrollmentID).
		Where("problem_id = ?", problemID).
		Delete(&models.EnrollmentCompletion{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *enrollmentRepository) ListCompletions(ctx context.Context, enrollmentID uint) ([]uint, error) {
	var problemIDs []uint
	err := r.db.WithContext(ctx).
		Model(&models.EnrollmentCompletion{}).
		Where("enrollment_id = ?", enrollmentID).
		Order("problem_id ASC").
		Pluck("problem_id", &problemIDs).Error
	if err != nil {
		return nil, err
	}
	return problemIDs, nil
}

// RecomputeProgress folds the completed-set size into the progress percentage
// in a single statement: round(100 * |completed| / total) clamped to [0,100],
// or zero when the set has no problems.
func (r *enrollmentRepository) RecomputeProgress(ctx context.Context, problemSetID, userID uint, totalProblems int) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE problem_set_enrollments
		SET progress = CASE
		        WHEN ? <= 0 THEN 0
		        WHEN (SELECT COUNT(*) FROM enrollment_completions
		              WHERE enrollment_id = problem_set_enrollments.id) >= ? THEN 100
		        ELSE CAST(ROUND(100.0 * (SELECT COUNT(*) FROM enrollment_completions
		                                 WHERE enrollment_id = problem_set_enrollments.id) / ?) AS INTEGER)
		    END,
		    updated_at = ?
		WHERE problem_set_id = ? AND user_id = ?`,
		totalProblems, totalProblems, totalProblems,
		time.Now().UTC(),
		problemSetID, userID,
	).Error
}
