package model

import (
	"time"

	"github.com/sells-group/recordmatch/internal/match"
)

// Method is the persisted comparison method.
type Method string

const (
	MethodExact Method = "exact"
	MethodFuzzy Method = "fuzzy"
)

// Comparison is one stored comparison run.
type Comparison struct {
	ID               string    `json:"id"`
	MasterFile       string    `json:"masterFile"`
	SecondaryFile    string    `json:"secondaryFile"`
	TotalRows        int       `json:"totalRows"`
	MatchedRows      int       `json:"matchedRows"`
	UnmatchedRows    int       `json:"unmatchedRows"`
	MasterColumns    []string  `json:"masterColumns"`
	SecondaryColumns []string  `json:"secondaryColumns"`
	SecondaryHeader  []string  `json:"secondaryHeader"`
	Method           Method    `json:"comparisonMethod"`
	Threshold        *float64  `json:"similarityThreshold,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Summary returns the list view of c.
func (c *Comparison) Summary() ComparisonSummary {
	return ComparisonSummary{
		ID:            c.ID,
		MasterFile:    c.MasterFile,
		SecondaryFile: c.SecondaryFile,
		TotalRows:     c.TotalRows,
		MatchedRows:   c.MatchedRows,
		UnmatchedRows: c.UnmatchedRows,
		Method:        c.Method,
		Threshold:     c.Threshold,
		CreatedAt:     c.CreatedAt,
	}
}

// ComparisonSummary is the history list view of a comparison.
type ComparisonSummary struct {
	ID            string    `json:"id"`
	MasterFile    string    `json:"masterFile"`
	SecondaryFile string    `json:"secondaryFile"`
	TotalRows     int       `json:"totalRows"`
	MatchedRows   int       `json:"matchedRows"`
	UnmatchedRows int       `json:"unmatchedRows"`
	Method        Method    `json:"comparisonMethod"`
	Threshold     *float64  `json:"similarityThreshold,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Row status labels used in exports and filters.
const (
	StatusMatched   = "Matched"
	StatusUnmatched = "Unmatched"
)

// RowResult is the stored outcome for one secondary row. Data holds the
// secondary cells as text, aligned with Comparison.SecondaryHeader.
type RowResult struct {
	Row       int                `json:"row"`
	Matched   bool               `json:"matched"`
	MasterRow int                `json:"masterRow,omitempty"`
	Score     *float64           `json:"similarityScore,omitempty"`
	PerColumn map[string]float64 `json:"perColumnSimilarity,omitempty"`
	Data      []string           `json:"data"`
}

// Status returns the export label for r.
func (r RowResult) Status() string {
	if r.Matched {
		return StatusMatched
	}
	return StatusUnmatched
}

// FromResult converts an engine result into a comparison and its rows ready
// to be saved. ID and timestamps are left to the store.
func FromResult(masterFile, secondaryFile string, secondaryHeader []string, cfg match.Config, res *match.Result) (*Comparison, []RowResult) {
	c := &Comparison{
		MasterFile:       masterFile,
		SecondaryFile:    secondaryFile,
		TotalRows:        res.TotalRows,
		MatchedRows:      res.MatchedRows,
		UnmatchedRows:    res.UnmatchedRows,
		MasterColumns:    append([]string(nil), cfg.MasterColumns...),
		SecondaryColumns: append([]string(nil), cfg.SecondaryColumns...),
		SecondaryHeader:  append([]string(nil), secondaryHeader...),
		Method:           MethodExact,
	}
	if res.Mode == match.ModeFuzzy {
		c.Method = MethodFuzzy
		if res.Threshold != nil {
			t := *res.Threshold
			c.Threshold = &t
		}
	}

	rows := make([]RowResult, len(res.Rows))
	for i, o := range res.Rows {
		rows[i] = RowResult{
			Row:       o.Row,
			Matched:   o.Matched,
			MasterRow: o.MasterRow,
			Score:     o.Score,
			PerColumn: o.PerColumn,
			Data:      o.Data.Strings(),
		}
	}
	return c, rows
}
