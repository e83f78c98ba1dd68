package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sheet-tracker/backend/internal/domain"
)

// revisionRepository implements domain.RevisionRepository using GORM
type revisionRepository struct {
	db *gorm.DB
}

// NewRevisionRepository creates a new revision task repository
func NewRevisionRepository(db *gorm.DB) domain.RevisionRepository {
	return &revisionRepository{db: db}
}

// CreateBatch inserts the whole batch in one statement
func (r *revisionRepository) CreateBatch(ctx context.Context, tasks []domain.RevisionTask) error {
	if len(tasks) == 0 {
		return nil
	}
	return domain.StorageError(r.db.WithContext(ctx).Omit(clause.Associations).Create(&tasks).Error)
}

// FindByID finds a revision task by its ID
func (r *revisionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.RevisionTask, error) {
	var task domain.RevisionTask
	result := r.db.WithContext(ctx).Preload("Problem").Where("id = ?", id).First(&task)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRevisionNotFound
		}
		return nil, domain.StorageError(result.Error)
	}
	return &task, nil
}

// Find returns the tasks matching the query ordered by scheduled date
func (r *revisionRepository) Find(ctx context.Context, query domain.RevisionQuery) ([]domain.RevisionTask, error) {
	var tasks []domain.RevisionTask
	result := r.scope(ctx, query).
		Preload("Problem").
		Order("scheduled_date ASC").
		Find(&tasks)
	return tasks, domain.StorageError(result.Error)
}

// Count returns how many tasks match the query
func (r *revisionRepository) Count(ctx context.Context, query domain.RevisionQuery) (int64, error) {
	var count int64
	result := r.scope(ctx, query).Count(&count)
	return count, domain.StorageError(result.Error)
}

func (r *revisionRepository) scope(ctx context.Context, query domain.RevisionQuery) *gorm.DB {
	db := r.db.WithContext(ctx).Model(&domain.RevisionTask{}).Where("user_id = ?", query.UserID)
	if query.ProblemID != uuid.Nil {
		db = db.Where("problem_id = ?", query.ProblemID)
	}
	if query.Completed != nil {
		db = db.Where("completed = ?", *query.Completed)
	}
	if !query.ScheduledFrom.IsZero() {
		db = db.Where("scheduled_date >= ?", query.ScheduledFrom)
	}
	if !query.ScheduledBefore.IsZero() {
		db = db.Where("scheduled_date < ?", query.ScheduledBefore)
	}
	return db
}

// MarkCompleted flips completed only while the task is still pending
func (r *revisionRepository) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&domain.RevisionTask{}).
		Where("id = ? AND completed = ?", id, false).
		Updates(map[string]interface{}{
			"completed":    true,
			"completed_at": at,
		})
	if result.Error != nil {
		return domain.StorageError(result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&domain.RevisionTask{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return domain.StorageError(err)
		}
		if count == 0 {
			return domain.ErrRevisionNotFound
		}
		return domain.ErrRevisionAlreadyCompleted
	}
	return nil
}

// Delete deletes a revision task by its ID
func (r *revisionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&domain.RevisionTask{}, "id = ?", id)
	if result.Error != nil {
		return domain.StorageError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrRevisionNotFound
	}
	return nil
}

// DeletePendingByUserAndProblem drops the still-pending tasks of one revision track
func (r *revisionRepository) DeletePendingByUserAndProblem(ctx context.Context, userID, problemID uuid.UUID) error {
	return domain.StorageError(r.db.WithContext(ctx).
		Delete(&domain.RevisionTask{}, "user_id = ? AND problem_id = ? AND completed = ?", userID, problemID, false).
		Error)
}

// DeleteByUserID removes every task owned by the user
func (r *revisionRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	return domain.StorageError(r.db.WithContext(ctx).Delete(&domain.RevisionTask{}, "user_id = ?", userID).Error)
}
