// Package memory provides an in-process implementation of domain.Store.
// It backs the "memory" database driver used for local runs and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sheet-tracker/backend/internal/domain"
)

// state is the full dataset. It is copied on Atomic and swapped in on commit.
type state struct {
	users         map[uuid.UUID]domain.User
	problems      map[uuid.UUID]domain.Problem
	sheets        map[uuid.UUID]domain.Sheet
	sheetProblems map[uuid.UUID][]uuid.UUID
	progress      map[uuid.UUID]domain.ProgressRecord
	revisions     map[uuid.UUID]domain.RevisionTask
	// seq preserves insertion order for ties on timestamps
	seq     map[uuid.UUID]int64
	nextSeq int64
}

func newState() *state {
	return &state{
		users:         make(map[uuid.UUID]domain.User),
		problems:      make(map[uuid.UUID]domain.Problem),
		sheets:        make(map[uuid.UUID]domain.Sheet),
		sheetProblems: make(map[uuid.UUID][]uuid.UUID),
		progress:      make(map[uuid.UUID]domain.ProgressRecord),
		revisions:     make(map[uuid.UUID]domain.RevisionTask),
		seq:           make(map[uuid.UUID]int64),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.problems {
		c.problems[k] = cloneProblem(v)
	}
	for k, v := range st.sheets {
		c.sheets[k] = v
	}
	for k, v := range st.sheetProblems {
		c.sheetProblems[k] = append([]uuid.UUID(nil), v...)
	}
	for k, v := range st.progress {
		c.progress[k] = cloneProgress(v)
	}
	for k, v := range st.revisions {
		c.revisions[k] = v
	}
	for k, v := range st.seq {
		c.seq[k] = v
	}
	c.nextSeq = st.nextSeq
	return c
}

func (st *state) stamp(id uuid.UUID) {
	st.nextSeq++
	st.seq[id] = st.nextSeq
}

// Store is an in-memory domain.Store. Atomic holds the store lock for the
// whole unit of work, so transactions are serialized; fn must only use the
// Store it is handed.
type Store struct {
	mu  sync.RWMutex
	st  *state
	now func() time.Time
}

var _ domain.Store = (*Store)(nil)

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

func (s *Store) Users() domain.UserRepository         { return &userRepository{s: s} }
func (s *Store) Problems() domain.ProblemRepository   { return &problemRepository{s: s} }
func (s *Store) Sheets() domain.SheetRepository       { return &sheetRepository{s: s} }
func (s *Store) Progress() domain.ProgressRepository  { return &progressRepository{s: s} }
func (s *Store) Revisions() domain.RevisionRepository { return &revisionRepository{s: s} }

// Atomic runs fn against a private copy of the data and publishes the copy
// only if fn succeeds
func (s *Store) Atomic(ctx context.Context, fn func(tx domain.Store) error) error {
	if err := ctx.Err(); err != nil {
		return domain.StorageError(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{st: s.st.clone(), now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

// HealthCheck reports whether the store can serve requests
func (s *Store) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) read(fn func(st *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.st)
}

func (s *Store) write(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

func cloneProblem(p domain.Problem) domain.Problem {
	p.Topics = append([]string(nil), p.Topics...)
	return p
}

func cloneProgress(p domain.ProgressRecord) domain.ProgressRecord {
	if p.RevisionDates != nil {
		p.RevisionDates = append(p.RevisionDates[:0:0], p.RevisionDates...)
	}
	return p
}
