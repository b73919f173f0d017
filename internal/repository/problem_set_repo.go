package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/solvearc/solvearc-api/internal/models"
)

// ProblemSetRepository exposes lookup operations for problem sets and their
// embedded instances. Instance lookups go through the indexed problem_set_id
// column on problem_instances, so resolving an instance to its owning set is
// a point read rather than a scan over sets.
type ProblemSetRepository interface {
	GetByID(ctx context.Context, id uint) (models.ProblemSet, error)
	GetInstance(ctx context.Context, instanceID uint) (models.ProblemInstance, error)
	FindInstanceByProblem(ctx context.Context, problemSetID, problemID uint) (models.ProblemInstance, error)
	CountInstances(ctx context.Context, problemSetID uint) (int64, error)
}

type problemSetRepository struct {
	db *gorm.DB
}

// NewProblemSetRepository instantiates the repository.
func NewProblemSetRepository(db *gorm.DB) ProblemSetRepository {
	return &problemSetRepository{db: db}
}

func (r *problemSetRepository) GetByID(ctx context.Context, id uint) (models.ProblemSet, error) {
	var set models.ProblemSet
	err := r.db.WithContext(ctx).
		Preload("Instances", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&set, id).Error
	if err != nil {
		return models.ProblemSet{}, err
	}
	return set, nil
}

func (r *problemSetRepository) GetInstance(ctx context.Context, instanceID uint) (models.ProblemInstance, error) {
	var instance models.ProblemInstance
	if err := r.db.WithContext(ctx).First(&instance, instanceID).Error; err != nil {
		return models.ProblemInstance{}, err
	}
	return instance, nil
}

func (r *problemSetRepository) FindInstanceByProblem(ctx context.Context, problemSetID, problemID uint) (models.ProblemInstance, error) {
	var instance models.ProblemInstance
	err := r.db.WithContext(ctx).
		Where("problem_set_id = ?", problemSetID).
		Where("problem_id = ?", problemID).
		Order("position ASC").
		First(&instance).Error
	if err != nil {
		return models.ProblemInstance{}, err
	}
	return instance, nil
}

func (r *problemSetRepository) CountInstances(ctx context.Context, problemSetID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProblemInstance{}).
		Where("problem_set_id = ?", problemSetID).
		Count(&count).Error
	return count, err
}
