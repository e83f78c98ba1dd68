package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sheet-tracker/backend/internal/domain"
)

// problemRepository implements domain.ProblemRepository using GORM
type problemRepository struct {
	db *gorm.DB
}

// NewProblemRepository creates a new problem repository
func NewProblemRepository(db *gorm.DB) domain.ProblemRepository {
	return &problemRepository{db: db}
}

// CreateBatch creates multiple problems in a single transaction
func (r *problemRepository) CreateBatch(ctx context.Context, problems []domain.Problem) error {
	return domain.StorageError(r.db.WithContext(ctx).CreateInBatches(problems, 50).Error)
}

// FindByID finds a problem by its ID
func (r *problemRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Problem, error) {
	var problem domain.Problem
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&problem)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProblemNotFound
		}
		return nil, domain.StorageError(result.Error)
	}
	return &problem, nil
}

// FindByIDs returns the problems with the given IDs; unknown IDs are skipped
func (r *problemRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Problem, error) {
	var problems []domain.Problem
	if len(ids) == 0 {
		return problems, nil
	}
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Order("order_index ASC").Find(&problems)
	return problems, domain.StorageError(result.Error)
}

// FindAll returns all problems ordered by order_index
func (r *problemRepository) FindAll(ctx context.Context) ([]domain.Problem, error) {
	var problems []domain.Problem
	result := r.db.WithContext(ctx).Order("order_index ASC").Find(&problems)
	return problems, domain.StorageError(result.Error)
}

// FindUnsolvedByUser returns all problems not yet solved by the user
func (r *problemRepository) FindUnsolvedByUser(ctx context.Context, userID uuid.UUID) ([]domain.Problem, error) {
	var problems []domain.Problem

	// Subquery to get solved problem IDs
	solvedSubquery := r.db.Model(&domain.ProgressRecord{}).
		Select("problem_id").
		Where("user_id = ? AND solved = ?", userID, true)

	result := r.db.WithContext(ctx).Where("id NOT IN (?)", solvedSubquery).
		Order("order_index ASC").
		Find(&problems)

	return problems, domain.StorageError(result.Error)
}

// Count returns the total number of problems
func (r *problemRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&domain.Problem{}).Count(&count)
	return count, domain.StorageError(result.Error)
}
