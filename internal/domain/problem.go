package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Difficulty represents the difficulty level of a problem
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Difficulties lists the catalog difficulty levels in ascending order
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Weight returns a numeric weight for sorting by difficulty
func (d Difficulty) Weight() int {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyMedium:
		return 2
	case DifficultyHard:
		return 3
	default:
		return 0
	}
}

// Problem is one catalog entry sourced from an external coding platform.
// The progress core references it by ID only and never mutates it.
type Problem struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Title      string         `json:"title" gorm:"not null"`
	Slug       string         `json:"slug" gorm:"uniqueIndex;not null"`
	Difficulty Difficulty     `json:"difficulty" gorm:"type:varchar(10);not null"`
	Topics     pq.StringArray `json:"topics" gorm:"type:text[]"`
	Platform   string         `json:"platform" gorm:"type:varchar(40);not null"`
	URL        string         `json:"url" gorm:"not null"`
	OrderIndex int            `json:"order_index" gorm:"not null"`
}

// TableName specifies the table name for GORM
func (Problem) TableName() string {
	return "problems"
}

// Sheet is a named, curated ordered collection of problems
type Sheet struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name        string    `json:"name" gorm:"not null"`
	Slug        string    `json:"slug" gorm:"uniqueIndex;not null"`
	Description string    `json:"description"`

	Problems []Problem `json:"problems,omitempty" gorm:"many2many:sheet_problems;"`
}

// TableName specifies the table name for GORM
func (Sheet) TableName() string {
	return "sheets"
}

// ProblemRepository defines the read side of the catalog used by the core,
// plus the batch insert used by the seeder
type ProblemRepository interface {
	CreateBatch(ctx context.Context, problems []Problem) error
	FindByID(ctx context.Context, id uuid.UUID) (*Problem, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Problem, error)
	FindAll(ctx context.Context) ([]Problem, error)
	FindUnsolvedByUser(ctx context.Context, userID uuid.UUID) ([]Problem, error)
	Count(ctx context.Context) (int64, error)
}

// SheetRepository defines data access for curated sheets
type SheetRepository interface {
	Create(ctx context.Context, sheet *Sheet) error
	FindAll(ctx context.Context) ([]Sheet, error)
	FindBySlugWithProblems(ctx context.Context, slug string) (*Sheet, error)
}

// ProblemResponse represents a problem in API responses
type ProblemResponse struct {
	ID         uuid.UUID  `json:"id"`
	Title      string     `json:"title"`
	Slug       string     `json:"slug"`
	Difficulty Difficulty `json:"difficulty"`
	Topics     []string   `json:"topics"`
	Platform   string     `json:"platform"`
	URL        string     `json:"url"`
}

// ToResponse converts a Problem to a ProblemResponse
func (p *Problem) ToResponse() ProblemResponse {
	topics := []string(p.Topics)
	if topics == nil {
		topics = []string{}
	}
	return ProblemResponse{
		ID:         p.ID,
		Title:      p.Title,
		Slug:       p.Slug,
		Difficulty: p.Difficulty,
		Topics:     topics,
		Platform:   p.Platform,
		URL:        p.URL,
	}
}

// SheetResponse represents a sheet in API responses
type SheetResponse struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	Description string            `json:"description"`
	Problems    []ProblemResponse `json:"problems,omitempty"`
}

// ToResponse converts a Sheet to a SheetResponse
func (s *Sheet) ToResponse() SheetResponse {
	var problems []ProblemResponse
	for i := range s.Problems {
		problems = append(problems, s.Problems[i].ToResponse())
	}
	return SheetResponse{
		ID:          s.ID,
		Name:        s.Name,
		Slug:        s.Slug,
		Description: s.Description,
		Problems:    problems,
	}
}

// ProblemStats represents statistics about the problem set
type ProblemStats struct {
	Total        int                `json:"total"`
	ByDifficulty map[Difficulty]int `json:"by_difficulty"`
	ByTopic      map[string]int     `json:"by_topic"`
	ByPlatform   map[string]int     `json:"by_platform"`
}
