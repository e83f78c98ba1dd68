package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sheet-tracker/backend/internal/domain"
)

type userRepository struct{ s *Store }

func (r *userRepository) Create(_ context.Context, user *domain.User) error {
	return r.s.write(func(st *state) error {
		for _, u := range st.users {
			if u.Email == user.Email {
				return domain.ErrUserAlreadyExists
			}
		}
		if user.ID == uuid.Nil {
			user.ID = uuid.New()
		}
		if user.Role == "" {
			user.Role = domain.RoleUser
		}
		if user.Level == 0 {
			user.Level = 1
		}
		now := r.s.now()
		user.CreatedAt, user.UpdatedAt = now, now
		st.users[user.ID] = *user
		st.stamp(user.ID)
		return nil
	})
}

func (r *userRepository) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	var out *domain.User
	err := r.s.read(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return domain.ErrUserNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r *userRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	var out *domain.User
	err := r.s.read(func(st *state) error {
		for _, u := range st.users {
			if u.Email == email {
				u := u
				out = &u
				return nil
			}
		}
		return domain.ErrUserNotFound
	})
	return out, err
}

func (r *userRepository) UpdateGameState(_ context.Context, user *domain.User) error {
	return r.s.write(func(st *state) error {
		stored, ok := st.users[user.ID]
		if !ok || stored.Version != user.Version {
			return domain.ErrStaleWrite
		}
		stored.XPPoints = user.XPPoints
		stored.Level = user.Level
		stored.Streak = user.Streak
		stored.LastActiveDate = user.LastActiveDate
		stored.Version++
		stored.UpdatedAt = r.s.now()
		st.users[user.ID] = stored
		user.Version = stored.Version
		return nil
	})
}

func (r *userRepository) UpdateRole(_ context.Context, id uuid.UUID, role domain.Role) error {
	return r.s.write(func(st *state) error {
		stored, ok := st.users[id]
		if !ok {
			return domain.ErrUserNotFound
		}
		stored.Role = role
		stored.UpdatedAt = r.s.now()
		st.users[id] = stored
		return nil
	})
}

type problemRepository struct{ s *Store }

func (r *problemRepository) CreateBatch(_ context.Context, problems []domain.Problem) error {
	return r.s.write(func(st *state) error {
		for i := range problems {
			if problems[i].ID == uuid.Nil {
				problems[i].ID = uuid.New()
			}
			st.problems[problems[i].ID] = cloneProblem(problems[i])
			st.stamp(problems[i].ID)
		}
		return nil
	})
}

func (r *problemRepository) FindByID(_ context.Context, id uuid.UUID) (*domain.Problem, error) {
	var out *domain.Problem
	err := r.s.read(func(st *state) error {
		p, ok := st.problems[id]
		if !ok {
			return domain.ErrProblemNotFound
		}
		p = cloneProblem(p)
		out = &p
		return nil
	})
	return out, err
}

func (r *problemRepository) FindByIDs(_ context.Context, ids []uuid.UUID) ([]domain.Problem, error) {
	var out []domain.Problem
	err := r.s.read(func(st *state) error {
		for _, id := range ids {
			if p, ok := st.problems[id]; ok {
				out = append(out, cloneProblem(p))
			}
		}
		sortProblems(out)
		return nil
	})
	return out, err
}

func (r *problemRepository) FindAll(_ context.Context) ([]domain.Problem, error) {
	var out []domain.Problem
	err := r.s.read(func(st *state) error {
		for _, p := range st.problems {
			out = append(out, cloneProblem(p))
		}
		sortProblems(out)
		return nil
	})
	return out, err
}

func (r *problemRepository) FindUnsolvedByUser(_ context.Context, userID uuid.UUID) ([]domain.Problem, error) {
	var out []domain.Problem
	err := r.s.read(func(st *state) error {
		solved := make(map[uuid.UUID]bool)
		for _, rec := range st.progress {
			if rec.UserID == userID && rec.Solved {
				solved[rec.ProblemID] = true
			}
		}
		for _, p := range st.problems {
			if !solved[p.ID] {
				out = append(out, cloneProblem(p))
			}
		}
		sortProblems(out)
		return nil
	})
	return out, err
}

func (r *problemRepository) Count(_ context.Context) (int64, error) {
	var n int64
	err := r.s.read(func(st *state) error {
		n = int64(len(st.problems))
		return nil
	})
	return n, err
}

func sortProblems(problems []domain.Problem) {
	sort.SliceStable(problems, func(i, j int) bool {
		if problems[i].OrderIndex != problems[j].OrderIndex {
			return problems[i].OrderIndex < problems[j].OrderIndex
		}
		return problems[i].Slug < problems[j].Slug
	})
}

type sheetRepository struct{ s *Store }

func (r *sheetRepository) Create(_ context.Context, sheet *domain.Sheet) error {
	return r.s.write(func(st *state) error {
		for _, existing := range st.sheets {
			if existing.Slug == sheet.Slug {
				return domain.NewDomainError(domain.ErrStorage, "duplicate sheet slug")
			}
		}
		if sheet.ID == uuid.Nil {
			sheet.ID = uuid.New()
		}
		ids := make([]uuid.UUID, 0, len(sheet.Problems))
		for i := range sheet.Problems {
			p := &sheet.Problems[i]
			if p.ID == uuid.Nil {
				p.ID = uuid.New()
			}
			if _, ok := st.problems[p.ID]; !ok {
				st.problems[p.ID] = cloneProblem(*p)
				st.stamp(p.ID)
			}
			ids = append(ids, p.ID)
		}
		stored := *sheet
		stored.Problems = nil
		st.sheets[sheet.ID] = stored
		st.sheetProblems[sheet.ID] = ids
		st.stamp(sheet.ID)
		return nil
	})
}

func (r *sheetRepository) FindAll(_ context.Context) ([]domain.Sheet, error) {
	var out []domain.Sheet
	err := r.s.read(func(st *state) error {
		for _, sh := range st.sheets {
			out = append(out, sh)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return nil
	})
	return out, err
}

func (r *sheetRepository) FindBySlugWithProblems(_ context.Context, slug string) (*domain.Sheet, error) {
	var out *domain.Sheet
	err := r.s.read(func(st *state) error {
		for id, sh := range st.sheets {
			if sh.Slug != slug {
				continue
			}
			for _, pid := range st.sheetProblems[id] {
				if p, ok := st.problems[pid]; ok {
					sh.Problems = append(sh.Problems, cloneProblem(p))
				}
			}
			sortProblems(sh.Problems)
			out = &sh
			return nil
		}
		return domain.ErrSheetNotFound
	})
	return out, err
}

type progressRepository struct{ s *Store }

func (r *progressRepository) Create(_ context.Context, record *domain.ProgressRecord) error {
	return r.s.write(func(st *state) error {
		for _, existing := range st.progress {
			if existing.UserID == record.UserID && existing.ProblemID == record.ProblemID {
				return domain.ErrStaleWrite
			}
		}
		if record.ID == uuid.Nil {
			record.ID = uuid.New()
		}
		now := r.s.now()
		record.CreatedAt, record.UpdatedAt = now, now
		st.progress[record.ID] = cloneProgress(*record)
		st.stamp(record.ID)
		return nil
	})
}

func (r *progressRepository) FindByID(_ context.Context, id uuid.UUID) (*domain.ProgressRecord, error) {
	var out *domain.ProgressRecord
	err := r.s.read(func(st *state) error {
		rec, ok := st.progress[id]
		if !ok {
			return domain.ErrProgressNotFound
		}
		rec = cloneProgress(rec)
		out = &rec
		return nil
	})
	return out, err
}

func (r *progressRepository) FindByUserAndProblem(_ context.Context, userID, problemID uuid.UUID) (*domain.ProgressRecord, error) {
	var out *domain.ProgressRecord
	err := r.s.read(func(st *state) error {
		for _, rec := range st.progress {
			if rec.UserID == userID && rec.ProblemID == problemID {
				rec = cloneProgress(rec)
				out = &rec
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *progressRepository) FindByUserID(_ context.Context, userID uuid.UUID) ([]domain.ProgressRecord, error) {
	records, err := r.filter(userID, func(domain.ProgressRecord) bool { return true })
	sort.SliceStable(records, func(i, j int) bool {
		return timeOrZero(records[i].SolvedAt).After(timeOrZero(records[j].SolvedAt))
	})
	return records, err
}

func (r *progressRepository) FindMarkedForRevision(_ context.Context, userID uuid.UUID) ([]domain.ProgressRecord, error) {
	return r.filter(userID, func(rec domain.ProgressRecord) bool { return rec.MarkedForRevision })
}

// filter returns the user's matching records in insertion order
func (r *progressRepository) filter(userID uuid.UUID, keep func(domain.ProgressRecord) bool) ([]domain.ProgressRecord, error) {
	var out []domain.ProgressRecord
	err := r.s.read(func(st *state) error {
		for _, rec := range st.progress {
			if rec.UserID == userID && keep(rec) {
				out = append(out, cloneProgress(rec))
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return st.seq[out[i].ID] < st.seq[out[j].ID] })
		return nil
	})
	return out, err
}

func (r *progressRepository) Update(_ context.Context, record *domain.ProgressRecord) error {
	return r.s.write(func(st *state) error {
		stored, ok := st.progress[record.ID]
		if !ok || stored.Version != record.Version {
			return domain.ErrStaleWrite
		}
		record.Version++
		record.UpdatedAt = r.s.now()
		updated := cloneProgress(*record)
		updated.UserID, updated.ProblemID, updated.CreatedAt = stored.UserID, stored.ProblemID, stored.CreatedAt
		st.progress[record.ID] = updated
		return nil
	})
}

func (r *progressRepository) CountSolvedByDifficulty(_ context.Context, userID uuid.UUID, difficulty domain.Difficulty) (int64, error) {
	var n int64
	err := r.s.read(func(st *state) error {
		for _, rec := range st.progress {
			if rec.UserID != userID || !rec.Solved {
				continue
			}
			if p, ok := st.problems[rec.ProblemID]; ok && p.Difficulty == difficulty {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *progressRepository) DeleteByUserID(_ context.Context, userID uuid.UUID) error {
	return r.s.write(func(st *state) error {
		for id, rec := range st.progress {
			if rec.UserID == userID {
				delete(st.progress, id)
				delete(st.seq, id)
			}
		}
		return nil
	})
}

type revisionRepository struct{ s *Store }

func (r *revisionRepository) CreateBatch(_ context.Context, tasks []domain.RevisionTask) error {
	return r.s.write(func(st *state) error {
		now := r.s.now()
		for i := range tasks {
			if tasks[i].ID == uuid.Nil {
				tasks[i].ID = uuid.New()
			}
			if _, exists := st.revisions[tasks[i].ID]; exists {
				return domain.NewDomainError(domain.ErrStorage, "duplicate revision id")
			}
		}
		for i := range tasks {
			tasks[i].CreatedAt = now
			stored := tasks[i]
			stored.Problem = domain.Problem{}
			st.revisions[stored.ID] = stored
			st.stamp(stored.ID)
		}
		return nil
	})
}

func (r *revisionRepository) FindByID(_ context.Context, id uuid.UUID) (*domain.RevisionTask, error) {
	var out *domain.RevisionTask
	err := r.s.read(func(st *state) error {
		t, ok := st.revisions[id]
		if !ok {
			return domain.ErrRevisionNotFound
		}
		t.Problem = cloneProblem(st.problems[t.ProblemID])
		out = &t
		return nil
	})
	return out, err
}

func (r *revisionRepository) Find(_ context.Context, query domain.RevisionQuery) ([]domain.RevisionTask, error) {
	var out []domain.RevisionTask
	err := r.s.read(func(st *state) error {
		for _, t := range st.revisions {
			if matches(t, query) {
				t.Problem = cloneProblem(st.problems[t.ProblemID])
				out = append(out, t)
			}
		}
		sort.SliceStable(out, func(i, j int) bool {
			if !out[i].ScheduledDate.Equal(out[j].ScheduledDate) {
				return out[i].ScheduledDate.Before(out[j].ScheduledDate)
			}
			return st.seq[out[i].ID] < st.seq[out[j].ID]
		})
		return nil
	})
	return out, err
}

func (r *revisionRepository) Count(_ context.Context, query domain.RevisionQuery) (int64, error) {
	var n int64
	err := r.s.read(func(st *state) error {
		for _, t := range st.revisions {
			if matches(t, query) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func matches(t domain.RevisionTask, q domain.RevisionQuery) bool {
	if t.UserID != q.UserID {
		return false
	}
	if q.ProblemID != uuid.Nil && t.ProblemID != q.ProblemID {
		return false
	}
	if q.Completed != nil && t.Completed != *q.Completed {
		return false
	}
	if !q.ScheduledFrom.IsZero() && t.ScheduledDate.Before(q.ScheduledFrom) {
		return false
	}
	if !q.ScheduledBefore.IsZero() && !t.ScheduledDate.Before(q.ScheduledBefore) {
		return false
	}
	return true
}

func (r *revisionRepository) MarkCompleted(_ context.Context, id uuid.UUID, at time.Time) error {
	return r.s.write(func(st *state) error {
		t, ok := st.revisions[id]
		if !ok {
			return domain.ErrRevisionNotFound
		}
		if t.Completed {
			return domain.ErrRevisionAlreadyCompleted
		}
		t.Completed = true
		t.CompletedAt = &at
		st.revisions[id] = t
		return nil
	})
}

func (r *revisionRepository) Delete(_ context.Context, id uuid.UUID) error {
	return r.s.write(func(st *state) error {
		if _, ok := st.revisions[id]; !ok {
			return domain.ErrRevisionNotFound
		}
		delete(st.revisions, id)
		delete(st.seq, id)
		return nil
	})
}

func (r *revisionRepository) DeletePendingByUserAndProblem(_ context.Context, userID, problemID uuid.UUID) error {
	return r.s.write(func(st *state) error {
		for id, t := range st.revisions {
			if t.UserID == userID && t.ProblemID == problemID && !t.Completed {
				delete(st.revisions, id)
				delete(st.seq, id)
			}
		}
		return nil
	})
}

func (r *revisionRepository) DeleteByUserID(_ context.Context, userID uuid.UUID) error {
	return r.s.write(func(st *state) error {
		for id, t := range st.revisions {
			if t.UserID == userID {
				delete(st.revisions, id)
				delete(st.seq, id)
			}
		}
		return nil
	})
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
