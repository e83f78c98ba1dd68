package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/sheet-tracker/backend/internal/domain"
)

// sheetRepository implements domain.SheetRepository using GORM
type sheetRepository struct {
	db *gorm.DB
}

// NewSheetRepository creates a new sheet repository
func NewSheetRepository(db *gorm.DB) domain.SheetRepository {
	return &sheetRepository{db: db}
}

// Create inserts a sheet and links the problems attached to it
func (r *sheetRepository) Create(ctx context.Context, sheet *domain.Sheet) error {
	return domain.StorageError(r.db.WithContext(ctx).Create(sheet).Error)
}

// FindAll returns every sheet without its problems
func (r *sheetRepository) FindAll(ctx context.Context) ([]domain.Sheet, error) {
	var sheets []domain.Sheet
	result := r.db.WithContext(ctx).Order("name ASC").Find(&sheets)
	return sheets, domain.StorageError(result.Error)
}

// FindBySlugWithProblems loads a sheet and its problems in catalog order
func (r *sheetRepository) FindBySlugWithProblems(ctx context.Context, slug string) (*domain.Sheet, error) {
	var sheet domain.Sheet
	result := r.db.WithContext(ctx).
		Preload("Problems", func(db *gorm.DB) *gorm.DB {
			return db.Order("problems.order_index ASC")
		}).
		Where("slug = ?", slug).
		First(&sheet)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSheetNotFound
		}
		return nil, domain.StorageError(result.Error)
	}
	return &sheet, nil
}
