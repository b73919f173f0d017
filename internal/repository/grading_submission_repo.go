package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/solvearc/solvearc-api/internal/models"
)

// SubmissionFilter narrows submission queries.
type SubmissionFilter struct {
	UserID       *uint
	ProblemID    *uint
	ProblemSetID *uint
	Status       *string
}

// UpsertOutcome reports how a slot write landed. Created and PreviousStatus
// are captured by the same statement that performs the write; callers never
// re-read the row to learn what it replaced.
type UpsertOutcome struct {
	ID             uint
	Created        bool
	PreviousStatus *string
}

// SubmissionRepository defines persistence operations for graded submissions.
type SubmissionRepository interface {
	Upsert(ctx context.Context, submission *models.Submission) (UpsertOutcome, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	Delete(ctx context.Context, id uint) (bool, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates a GORM-backed repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

type slotUpdateRow struct {
	ID             uint
	PreviousStatus *string
}

// Upsert writes the submission into its slot. Standalone submissions (empty
// slot key) always insert a new row. Assignment submissions overwrite the
// existing slot row when one exists; the overwritten row's status is stashed
// into previous_status by the same UPDATE, so the prior status comes back
// without a separate read. A concurrent create racing the insert trips the
// slot unique index and the write falls back to the overwrite path.
func (r *submissionRepository) Upsert(ctx context.Context, submission *models.Submission) (UpsertOutcome, error) {
	if submission.SlotKey == "" {
		if err := r.db.WithContext(ctx).Create(submission).Error; err != nil {
			return UpsertOutcome{}, err
		}
		return UpsertOutcome{ID: submission.ID, Created: true}, nil
	}

	for attempt := 0; attempt < 2; attempt++ {
		var row slotUpdateRow
		result := r.db.WithContext(ctx).Raw(`
			UPDATE submissions
			SET previous_status = status,
			    code = ?,
			    language = ?,
			    status = ?,
			    score = ?,
			    runtime_ms = ?,
			    memory_kb = ?,
			    feedback = ?,
			    test_results = ?,
			    submitted_at = ?,
			    updated_at = ?
			WHERE user_id = ? AND problem_id = ? AND slot_key = ?
			RETURNING id, previous_status`,
			submission.Code,
			submission.Language,
			submission.Status,
			submission.Score,
			submission.RuntimeMs,
			submission.MemoryKB,
			submission.Feedback,
			submission.TestResults,
			submission.SubmittedAt,
			submission.SubmittedAt,
			submission.UserID,
			submission.ProblemID,
			submission.SlotKey,
		).Scan(&row)
		if result.Error != nil {
			return UpsertOutcome{}, result.Error
		}
		if result.RowsAffected > 0 {
			submission.ID = row.ID
			return UpsertOutcome{ID: row.ID, Created: false, PreviousStatus: row.PreviousStatus}, nil
		}

		insert := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"},
				{Name: "problem_id"},
				{Name: "slot_key"},
			},
			TargetWhere: clause.Where{Exprs: []clause.Expression{
				gorm.Expr("slot_key <> ''"),
			}},
			DoNothing: true,
		}).Create(submission)
		if insert.Error != nil {
			return UpsertOutcome{}, insert.Error
		}
		if insert.RowsAffected > 0 {
			return UpsertOutcome{ID: submission.ID, Created: true}, nil
		}
		// Lost the insert race; the slot row exists now, overwrite it.
	}

	return UpsertOutcome{}, fmt.Errorf("slot upsert did not converge for user %d problem %d", submission.UserID, submission.ProblemID)
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.db.WithContext(ctx).Model(&models.Submission{})

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.ProblemID != nil {
		query = query.Where("problem_id = ?", *filter.ProblemID)
	}
	if filter.ProblemSetID != nil {
		query = query.Where("problem_set_id = ?", *filter.ProblemSetID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var submissions []models.Submission
	if err := query.Order("submitted_at DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

// Delete removes the submission row. The boolean reports whether this call
// actually deleted it, so a concurrent double-delete reconciles only once.
func (r *submissionRepository) Delete(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&models.Submission{}, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
