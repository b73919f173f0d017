package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/solvearc/solvearc-api/internal/models"
)

// SetAnalyticsRepository feeds the reporting aggregator. It reads submission
// history only; enrollment counters are never consulted, so a momentarily
// inconsistent enrollment cannot skew the statistics.
type SetAnalyticsRepository interface {
	ListSubmissionsBySet(ctx context.Context, problemSetID uint) ([]models.Submission, error)
	CountEnrollments(ctx context.Context, problemSetID uint) (int64, error)
}

type setAnalyticsRepository struct {
	db *gorm.DB
}

// NewSetAnalyticsRepository instantiates the repository.
func NewSetAnalyticsRepository(db *gorm.DB) SetAnalyticsRepository {
	return &setAnalyticsRepository{db: db}
}

func (r *setAnalyticsRepository) ListSubmissionsBySet(ctx context.Context, problemSetID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("problem_set_id = ?", problemSetID).
		Order("submitted_at ASC").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *setAnalyticsRepository) CountEnrollments(ctx context.Context, problemSetID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProblemSetEnrollment{}).
		Where("problem_set_id = ?", problemSetID).
		Count(&count).Error
	return count, err
}
