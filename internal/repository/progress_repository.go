package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sheet-tracker/backend/internal/domain"
)

// progressRepository implements domain.ProgressRepository using GORM
type progressRepository struct {
	db *gorm.DB
}

// NewProgressRepository creates a new progress ledger repository
func NewProgressRepository(db *gorm.DB) domain.ProgressRepository {
	return &progressRepository{db: db}
}

// Create inserts a new record. Losing a race on the (user_id, problem_id)
// unique index is reported as a stale write so the caller can retry and
// update the winner's row instead.
func (r *progressRepository) Create(ctx context.Context, record *domain.ProgressRecord) error {
	result := r.db.WithContext(ctx).Omit(clause.Associations).Create(record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return domain.ErrStaleWrite
		}
		return domain.StorageError(result.Error)
	}
	return nil
}

// FindByID finds a progress record by its ID
func (r *progressRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ProgressRecord, error) {
	var record domain.ProgressRecord
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProgressNotFound
		}
		return nil, domain.StorageError(result.Error)
	}
	return &record, nil
}

// FindByUserAndProblem finds the record for a specific user and problem
func (r *progressRepository) FindByUserAndProblem(ctx context.Context, userID, problemID uuid.UUID) (*domain.ProgressRecord, error) {
	var record domain.ProgressRecord
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND problem_id = ?", userID, problemID).
		First(&record)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil // Not found is not an error here
		}
		return nil, domain.StorageError(result.Error)
	}
	return &record, nil
}

// FindByUserID returns all records for a user, most recently solved first
func (r *progressRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]domain.ProgressRecord, error) {
	var records []domain.ProgressRecord
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("solved_at DESC").
		Find(&records)
	return records, domain.StorageError(result.Error)
}

// FindMarkedForRevision returns the user's records on a revision track
func (r *progressRepository) FindMarkedForRevision(ctx context.Context, userID uuid.UUID) ([]domain.ProgressRecord, error) {
	var records []domain.ProgressRecord
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND marked_for_revision = ?", userID, true).
		Order("created_at ASC").
		Find(&records)
	return records, domain.StorageError(result.Error)
}

// Update writes all mutable columns guarded by the version column
func (r *progressRepository) Update(ctx context.Context, record *domain.ProgressRecord) error {
	result := r.db.WithContext(ctx).Model(&domain.ProgressRecord{}).
		Where("id = ? AND version = ?", record.ID, record.Version).
		Updates(map[string]interface{}{
			"solved":              record.Solved,
			"solved_at":           record.SolvedAt,
			"time_taken_minutes":  record.TimeTakenMinutes,
			"notes":               record.Notes,
			"approach":            record.Approach,
			"code":                record.Code,
			"marked_for_revision": record.MarkedForRevision,
			"next_revision_date":  record.NextRevisionDate,
			"revision_count":      record.RevisionCount,
			"revision_dates":      record.RevisionDates,
			"version":             gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return domain.StorageError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrStaleWrite
	}
	record.Version++
	return nil
}

// CountSolvedByDifficulty returns the count of solved problems by difficulty
func (r *progressRepository) CountSolvedByDifficulty(ctx context.Context, userID uuid.UUID, difficulty domain.Difficulty) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&domain.ProgressRecord{}).
		Joins("JOIN problems ON progress_records.problem_id = problems.id").
		Where("progress_records.user_id = ? AND progress_records.solved = ? AND problems.difficulty = ?", userID, true, difficulty).
		Count(&count)
	return count, domain.StorageError(result.Error)
}

// DeleteByUserID removes every record owned by the user
func (r *progressRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	return domain.StorageError(r.db.WithContext(ctx).Delete(&domain.ProgressRecord{}, "user_id = ?", userID).Error)
}
