package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/solvearc/solvearc-api/internal/models"
)

// ReconciliationOutboxRepository persists enrollment transitions whose
// synchronous application failed, so a background worker can replay them.
type ReconciliationOutboxRepository interface {
	Enqueue(ctx context.Context, task *models.ReconciliationTask) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.ReconciliationTask, error)
	MarkDone(ctx context.Context, id uint, completedAt time.Time) error
	MarkFailed(ctx context.Context, id uint, attempts int, lastError string, nextAttemptAt time.Time, dead bool) error
}

type reconciliationOutboxRepository struct {
	db *gorm.DB
}

// NewReconciliationOutboxRepository instantiates the repository.
func NewReconciliationOutboxRepository(db *gorm.DB) ReconciliationOutboxRepository {
	return &reconciliationOutboxRepository{db: db}
}

func (r *reconciliationOutboxRepository) Enqueue(ctx context.Context, task *models.ReconciliationTask) error {
	if task.State == "" {
		task.State = models.ReconciliationTaskPending
	}
	if task.NextAttemptAt.IsZero() {
		task.NextAttemptAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *reconciliationOutboxRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.ReconciliationTask, error) {
	var tasks []models.ReconciliationTask
	err := r.db.WithContext(ctx).
		Where("state = ?", models.ReconciliationTaskPending).
		Where("next_attempt_at <= ?", now).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *reconciliationOutboxRepository) MarkDone(ctx context.Context, id uint, completedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ReconciliationTask{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"state":        models.ReconciliationTaskDone,
			"completed_at": completedAt,
		}).Error
}

func (r *reconciliationOutboxRepository) MarkFailed(ctx context.Context, id uint, attempts int, lastError string, nextAttemptAt time.Time, dead bool) error {
	state := models.ReconciliationTaskPending
	if dead {
		state = models.ReconciliationTaskDead
	}
	return r.db.WithContext(ctx).
		Model(&models.ReconciliationTask{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"state":           state,
			"attempts":        attempts,
			"last_error":      lastError,
			"next_attempt_at": nextAttemptAt,
		}).Error
}
