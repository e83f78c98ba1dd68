package data

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sheet-tracker/backend/internal/domain"
)

//go:embed sheets.json
var sheetsData []byte

// problemJSON represents the JSON structure for problems
type problemJSON struct {
	Title      string   `json:"title"`
	Slug       string   `json:"slug"`
	Difficulty string   `json:"difficulty"`
	Topics     []string `json:"topics"`
	Platform   string   `json:"platform"`
	URL        string   `json:"url"`
	OrderIndex int      `json:"order_index"`
}

// sheetJSON represents one curated sheet; problems may appear in several sheets
type sheetJSON struct {
	Name        string        `json:"name"`
	Slug        string        `json:"slug"`
	Description string        `json:"description"`
	Problems    []problemJSON `json:"problems"`
}

// Seeder handles database seeding operations
type Seeder struct {
	store  domain.Store
	logger *zap.Logger
}

// NewSeeder creates a new database seeder
func NewSeeder(store domain.Store, logger *zap.Logger) *Seeder {
	return &Seeder{
		store:  store,
		logger: logger,
	}
}

// SeedCatalog loads the embedded sheets and their problems.
// It is a no-op when the catalog already has problems.
func (s *Seeder) SeedCatalog(ctx context.Context) error {
	s.logger.Info("Starting to seed catalog...")

	// Check if problems already exist
	count, err := s.store.Problems().Count(ctx)
	if err != nil {
		return err
	}

	if count > 0 {
		s.logger.Info("Catalog already seeded, skipping",
			zap.Int64("count", count),
		)
		return nil
	}

	sheets, problems, err := EmbeddedCatalog()
	if err != nil {
		return err
	}

	err = s.store.Atomic(ctx, func(tx domain.Store) error {
		if err := tx.Problems().CreateBatch(ctx, problems); err != nil {
			return err
		}
		for i := range sheets {
			if err := tx.Sheets().Create(ctx, &sheets[i]); err != nil {
				return fmt.Errorf("seed sheet %s: %w", sheets[i].Slug, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Successfully seeded catalog",
		zap.Int("sheets", len(sheets)),
		zap.Int("problems", len(problems)),
	)

	return nil
}

// EmbeddedCatalog returns the embedded sheets together with the distinct
// problems they reference. Problems shared between sheets carry one ID.
func EmbeddedCatalog() ([]domain.Sheet, []domain.Problem, error) {
	var sheetsJSON []sheetJSON
	if err := json.Unmarshal(sheetsData, &sheetsJSON); err != nil {
		return nil, nil, err
	}

	bySlug := make(map[string]domain.Problem)
	var problems []domain.Problem
	sheets := make([]domain.Sheet, len(sheetsJSON))

	for i, sh := range sheetsJSON {
		sheets[i] = domain.Sheet{
			ID:          uuid.New(),
			Name:        sh.Name,
			Slug:        sh.Slug,
			Description: sh.Description,
		}
		for _, p := range sh.Problems {
			problem, ok := bySlug[p.Slug]
			if !ok {
				problem = domain.Problem{
					ID:         uuid.New(),
					Title:      p.Title,
					Slug:       p.Slug,
					Difficulty: domain.Difficulty(p.Difficulty),
					Topics:     p.Topics,
					Platform:   p.Platform,
					URL:        p.URL,
					OrderIndex: p.OrderIndex,
				}
				bySlug[p.Slug] = problem
				problems = append(problems, problem)
			}
			sheets[i].Problems = append(sheets[i].Problems, problem)
		}
	}

	return sheets, problems, nil
}
