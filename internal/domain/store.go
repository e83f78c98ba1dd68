package domain

import "context"

// Store groups the repositories of one storage backend. Atomic runs fn in a
// single unit of work: the Store passed to fn is bound to that unit, and
// every write made through it is rolled back if fn returns an error.
type Store interface {
	Users() UserRepository
	Problems() ProblemRepository
	Sheets() SheetRepository
	Progress() ProgressRepository
	Revisions() RevisionRepository
	Atomic(ctx context.Context, fn func(tx Store) error) error
}
