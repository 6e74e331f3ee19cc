// Package store persists run history and the product snapshot of each run.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pricespy/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// NewRun describes a run about to start. An empty ID is generated.
type NewRun struct {
	ID     string
	Pages  int
	Format string
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for pipeline runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run NewRun) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Product snapshots
	SaveProducts(ctx context.Context, runID string, ds model.Dataset) (int64, error)
	ListProducts(ctx context.Context, runID string) (model.Dataset, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

// productColumns is the column order of run_products after run_id.
var productColumns = []string{
	"run_id", "position", "title", "price", "price_numeric", "price_parsed", "rating", "availability", "url",
}

func productRow(runID string, pos int, r model.NormalizedRecord) []any {
	var rating any
	if r.Rating != nil {
		rating = *r.Rating
	}
	return []any{
		runID, pos, r.Title, r.Price, r.PriceNumeric.Value, r.PriceNumeric.Parsed, rating, r.Availability, r.URL,
	}
}
