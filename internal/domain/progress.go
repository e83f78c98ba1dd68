package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ProgressRecord is one user's solve and revision state for one problem.
// At most one record exists per (user, problem).
type ProgressRecord struct {
	ID                uuid.UUID                      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID            uuid.UUID                      `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_progress_user_problem"`
	ProblemID         uuid.UUID                      `json:"problem_id" gorm:"type:uuid;not null;uniqueIndex:idx_progress_user_problem;index"`
	Solved            bool                           `json:"solved" gorm:"not null;default:false"`
	SolvedAt          *time.Time                     `json:"solved_at"`
	TimeTakenMinutes  int                            `json:"time_taken_minutes" gorm:"not null;default:0"`
	Notes             string                         `json:"notes" gorm:"type:text"`
	Approach          string                         `json:"approach" gorm:"type:text"`
	Code              string                         `json:"code" gorm:"type:text"`
	MarkedForRevision bool                           `json:"marked_for_revision" gorm:"not null;default:false;index"`
	NextRevisionDate  *time.Time                     `json:"next_revision_date"`
	RevisionCount     int                            `json:"revision_count" gorm:"not null;default:0"`
	RevisionDates     datatypes.JSONSlice[time.Time] `json:"revision_dates"`
	Version           int                            `json:"-" gorm:"not null;default:0"`
	CreatedAt         time.Time                      `json:"created_at"`
	UpdatedAt         time.Time                      `json:"updated_at"`

	// Relationships
	User    User    `json:"-" gorm:"foreignKey:UserID"`
	Problem Problem `json:"-" gorm:"foreignKey:ProblemID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for GORM
func (ProgressRecord) TableName() string {
	return "progress_records"
}

// ProgressRepository defines the interface for progress ledger data access
type ProgressRepository interface {
	Create(ctx context.Context, record *ProgressRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*ProgressRecord, error)
	// FindByUserAndProblem returns nil, nil when the pair has no record yet.
	FindByUserAndProblem(ctx context.Context, userID, problemID uuid.UUID) (*ProgressRecord, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]ProgressRecord, error)
	FindMarkedForRevision(ctx context.Context, userID uuid.UUID) ([]ProgressRecord, error)
	// Update writes every mutable column if the stored version still matches
	// record.Version, then bumps record.Version. A mismatch is ErrStaleWrite.
	Update(ctx context.Context, record *ProgressRecord) error
	CountSolvedByDifficulty(ctx context.Context, userID uuid.UUID, difficulty Difficulty) (int64, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

// RecordSolveRequest is the input of the "mark problem solved" operation.
// Nil pointer fields are omitted and keep their stored value on re-solve.
type RecordSolveRequest struct {
	ProblemID         uuid.UUID `json:"problem_id"`
	TimeTakenMinutes  *int      `json:"time_taken"`
	Notes             *string   `json:"notes"`
	Approach          *string   `json:"approach"`
	Code              *string   `json:"code"`
	MarkedForRevision *bool     `json:"marked_for_revision"`
	RevisionDays      []int     `json:"revision_days"`
}

// ProgressPatch is a partial edit of an already solved problem's metadata.
// Nil means "leave unchanged"; a pointer to the zero value clears the field.
type ProgressPatch struct {
	TimeTakenMinutes  *int    `json:"time_taken"`
	Notes             *string `json:"notes"`
	Approach          *string `json:"approach"`
	Code              *string `json:"code"`
	MarkedForRevision *bool   `json:"marked_for_revision"`
}

// Apply copies the supplied fields onto the record
func (p *ProgressPatch) Apply(record *ProgressRecord) {
	if p.TimeTakenMinutes != nil {
		record.TimeTakenMinutes = *p.TimeTakenMinutes
	}
	if p.Notes != nil {
		record.Notes = *p.Notes
	}
	if p.Approach != nil {
		record.Approach = *p.Approach
	}
	if p.Code != nil {
		record.Code = *p.Code
	}
	if p.MarkedForRevision != nil {
		record.MarkedForRevision = *p.MarkedForRevision
	}
}

// Validate checks the supplied fields
func (p *ProgressPatch) Validate() error {
	if p.TimeTakenMinutes != nil && *p.TimeTakenMinutes < 0 {
		return ErrInvalidTimeTaken
	}
	return nil
}

// Patch returns the optional metadata fields of a solve request
func (r *RecordSolveRequest) Patch() ProgressPatch {
	return ProgressPatch{
		TimeTakenMinutes:  r.TimeTakenMinutes,
		Notes:             r.Notes,
		Approach:          r.Approach,
		Code:              r.Code,
		MarkedForRevision: r.MarkedForRevision,
	}
}

// ProgressResponse represents a progress record in API responses
type ProgressResponse struct {
	ID                uuid.UUID   `json:"id"`
	ProblemID         uuid.UUID   `json:"problem_id"`
	Solved            bool        `json:"solved"`
	SolvedAt          *time.Time  `json:"solved_at"`
	TimeTakenMinutes  int         `json:"time_taken"`
	Notes             string      `json:"notes"`
	Approach          string      `json:"approach"`
	Code              string      `json:"code"`
	MarkedForRevision bool        `json:"marked_for_revision"`
	NextRevisionDate  *time.Time  `json:"next_revision_date"`
	RevisionCount     int         `json:"revision_count"`
	RevisionDates     []time.Time `json:"revision_dates"`
}

// ToResponse converts a ProgressRecord to a ProgressResponse
func (p *ProgressRecord) ToResponse() ProgressResponse {
	dates := []time.Time(p.RevisionDates)
	if dates == nil {
		dates = []time.Time{}
	}
	return ProgressResponse{
		ID:                p.ID,
		ProblemID:         p.ProblemID,
		Solved:            p.Solved,
		SolvedAt:          p.SolvedAt,
		TimeTakenMinutes:  p.TimeTakenMinutes,
		Notes:             p.Notes,
		Approach:          p.Approach,
		Code:              p.Code,
		MarkedForRevision: p.MarkedForRevision,
		NextRevisionDate:  p.NextRevisionDate,
		RevisionCount:     p.RevisionCount,
		RevisionDates:     dates,
	}
}
