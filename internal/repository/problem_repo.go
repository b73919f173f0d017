package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/solvearc/solvearc-api/internal/models"
)

// ProblemRepository exposes read operations for canonical problems.
type ProblemRepository interface {
	GetWithTestCases(ctx context.Context, id uint) (models.Problem, error)
}

type problemRepository struct {
	db *gorm.DB
}

// NewProblemRepository instantiates the repository.
func NewProblemRepository(db *gorm.DB) ProblemRepository {
	return &problemRepository{db: db}
}

func (r *problemRepository) GetWithTestCases(ctx context.Context, id uint) (models.Problem, error) {
	var problem models.Problem
	err := r.db.WithContext(ctx).
		Preload("TestCases", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&problem, id).Error
	if err != nil {
		return models.Problem{}, err
	}
	return problem, nil
}
