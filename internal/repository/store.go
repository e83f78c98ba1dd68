package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/sheet-tracker/backend/internal/domain"
)

// store implements domain.Store on top of a GORM connection or transaction
type store struct {
	db        *gorm.DB
	users     domain.UserRepository
	problems  domain.ProblemRepository
	sheets    domain.SheetRepository
	progress  domain.ProgressRepository
	revisions domain.RevisionRepository
}

// NewStore creates a store whose repositories share db
func NewStore(db *gorm.DB) domain.Store {
	return &store{
		db:        db,
		users:     NewUserRepository(db),
		problems:  NewProblemRepository(db),
		sheets:    NewSheetRepository(db),
		progress:  NewProgressRepository(db),
		revisions: NewRevisionRepository(db),
	}
}

func (s *store) Users() domain.UserRepository         { return s.users }
func (s *store) Problems() domain.ProblemRepository   { return s.problems }
func (s *store) Sheets() domain.SheetRepository       { return s.sheets }
func (s *store) Progress() domain.ProgressRepository  { return s.progress }
func (s *store) Revisions() domain.RevisionRepository { return s.revisions }

// Atomic runs fn in a database transaction. Nested calls become savepoints.
func (s *store) Atomic(ctx context.Context, fn func(tx domain.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
