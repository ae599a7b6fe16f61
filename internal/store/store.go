package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/recordmatch/internal/model"
	"github.com/sells-group/recordmatch/internal/resilience"
)

// ErrNotFound is returned when a comparison ID does not exist.
var ErrNotFound = eris.New("comparison not found")

// ListFilter pages through comparison history.
type ListFilter struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Store persists comparisons and their per-row outcomes.
type Store interface {
	// SaveComparison writes c and its rows atomically. An empty c.ID is
	// replaced with a new UUID; timestamps are set by the store.
	SaveComparison(ctx context.Context, c *model.Comparison, rows []model.RowResult) error
	GetComparison(ctx context.Context, id string) (*model.Comparison, error)
	// ListComparisons returns summaries newest first.
	ListComparisons(ctx context.Context, filter ListFilter) ([]model.ComparisonSummary, error)
	// ListRows returns a window of rows and the number of rows matching the
	// status filter before paging.
	ListRows(ctx context.Context, id string, filter model.RowFilter) ([]model.RowResult, int, error)
	DeleteComparison(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// SaveWithRetry assigns c an ID and timestamps, then saves it, retrying
// transient failures. Each attempt writes the same ID so a retried save
// cannot duplicate a comparison.
func SaveWithRetry(ctx context.Context, s Store, cfg resilience.RetryConfig, c *model.Comparison, rows []model.RowResult) error {
	prepare(c)
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("store", "save_comparison")
	}
	return resilience.Do(ctx, cfg, func(ctx context.Context) error {
		return s.SaveComparison(ctx, c, rows)
	})
}

// prepare fills in the ID and timestamps of a comparison about to be saved.
func prepare(c *model.Comparison) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
}

func listLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

// statusMatched maps a row filter to a matched flag. ok is false for "all".
func statusMatched(s model.RowStatus) (matched bool, ok bool) {
	switch s {
	case model.RowsMatched:
		return true, true
	case model.RowsUnmatched:
		return false, true
	}
	return false, false
}
