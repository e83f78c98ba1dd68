package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RevisionTask is one scheduled spaced-repetition follow-up for a solved problem.
// Its only transition is pending -> completed.
type RevisionTask struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID         uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index:idx_revision_user_schedule"`
	ProblemID      uuid.UUID  `json:"problem_id" gorm:"type:uuid;not null;index"`
	ScheduledDate  time.Time  `json:"scheduled_date" gorm:"not null;index:idx_revision_user_schedule"`
	Completed      bool       `json:"completed" gorm:"not null;default:false"`
	CompletedAt    *time.Time `json:"completed_at"`
	RevisionNumber int        `json:"revision_number" gorm:"not null"`
	CreatedAt      time.Time  `json:"created_at"`

	// Relationships
	Problem Problem `json:"-" gorm:"foreignKey:ProblemID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for GORM
func (RevisionTask) TableName() string {
	return "revision_tasks"
}

// IsOverdue reports whether the task is pending and scheduled before the
// given day boundary
func (t *RevisionTask) IsOverdue(startOfToday time.Time) bool {
	return !t.Completed && t.ScheduledDate.Before(startOfToday)
}

// RevisionStatus filters revision listings
type RevisionStatus string

const (
	RevisionStatusAll       RevisionStatus = "all"
	RevisionStatusPending   RevisionStatus = "pending"
	RevisionStatusCompleted RevisionStatus = "completed"
	RevisionStatusOverdue   RevisionStatus = "overdue"
)

// ParseRevisionStatus maps a query value to a status filter; empty means all
func ParseRevisionStatus(s string) (RevisionStatus, error) {
	switch RevisionStatus(s) {
	case "", RevisionStatusAll:
		return RevisionStatusAll, nil
	case RevisionStatusPending, RevisionStatusCompleted, RevisionStatusOverdue:
		return RevisionStatus(s), nil
	default:
		return "", ErrInvalidStatusFilter
	}
}

// RevisionQuery selects a user's tasks. Zero times are unbounded.
type RevisionQuery struct {
	UserID uuid.UUID
	// ProblemID restricts to one revision track when not uuid.Nil
	ProblemID uuid.UUID
	// Completed restricts by state when non-nil
	Completed *bool
	// ScheduledFrom is inclusive, ScheduledBefore exclusive
	ScheduledFrom   time.Time
	ScheduledBefore time.Time
}

// RevisionRepository defines the interface for revision task data access
type RevisionRepository interface {
	// CreateBatch inserts all tasks or none.
	CreateBatch(ctx context.Context, tasks []RevisionTask) error
	FindByID(ctx context.Context, id uuid.UUID) (*RevisionTask, error)
	// Find returns matching tasks ordered by scheduled date ascending.
	Find(ctx context.Context, query RevisionQuery) ([]RevisionTask, error)
	Count(ctx context.Context, query RevisionQuery) (int64, error)
	// MarkCompleted flips a pending task to completed. A task that is
	// already completed yields ErrRevisionAlreadyCompleted.
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeletePendingByUserAndProblem(ctx context.Context, userID, problemID uuid.UUID) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

// RevisionResponse represents a revision task in API responses
type RevisionResponse struct {
	ID             uuid.UUID        `json:"id"`
	ProblemID      uuid.UUID        `json:"problem_id"`
	ScheduledDate  time.Time        `json:"scheduled_date"`
	Completed      bool             `json:"completed"`
	CompletedAt    *time.Time       `json:"completed_at"`
	RevisionNumber int              `json:"revision_number"`
	Problem        *ProblemResponse `json:"problem,omitempty"`
}

// ToResponse converts a RevisionTask to a RevisionResponse
func (t *RevisionTask) ToResponse() RevisionResponse {
	resp := RevisionResponse{
		ID:             t.ID,
		ProblemID:      t.ProblemID,
		ScheduledDate:  t.ScheduledDate,
		Completed:      t.Completed,
		CompletedAt:    t.CompletedAt,
		RevisionNumber: t.RevisionNumber,
	}
	if t.Problem.ID != uuid.Nil {
		problem := t.Problem.ToResponse()
		resp.Problem = &problem
	}
	return resp
}

// RevisionStats summarises a user's revision dashboard
type RevisionStats struct {
	DueToday     int      `json:"due_today"`
	Overdue      int      `json:"overdue"`
	TotalPending int      `json:"total_pending"`
	WeakTopics   []string `json:"weak_topics"`
}

// CompleteRevisionResult carries both aggregates touched by a completion
type CompleteRevisionResult struct {
	Revision RevisionTask
	Progress ProgressRecord
}

// RevisionStatsCache stores computed dashboards per user and calendar day.
// Implementations must treat a miss and a failure alike; the scheduler
// always falls back to recomputing.
//
// Every user has a generation that Invalidate bumps. Get reports it even on
// a miss, and Set only writes while the generation is unchanged, so stats
// computed before a concurrent write are never cached after it.
type RevisionStatsCache interface {
	Get(ctx context.Context, userID uuid.UUID, day string) (stats *RevisionStats, generation int64, ok bool)
	Set(ctx context.Context, userID uuid.UUID, day string, generation int64, stats *RevisionStats)
	Invalidate(ctx context.Context, userID uuid.UUID)
}

// UnknownGeneration is reported when the cache could not be read. Set
// ignores it.
const UnknownGeneration int64 = -1
