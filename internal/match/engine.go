package match

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Options tunes a comparison run without changing its result.
type Options struct {
	// Progress receives stage events. Nil disables reporting.
	Progress ProgressFunc
	// ChunkSize is the number of records between progress events.
	ChunkSize int
	// Workers parallelizes fuzzy scoring when greater than one.
	Workers int
	// MaxRecords caps master plus secondary records; zero means no cap.
	MaxRecords int
}

// RowOutcome classifies one secondary record.
type RowOutcome struct {
	// Row is the 1-based position in the secondary set.
	Row     int  `json:"row"`
	Matched bool `json:"matched"`
	// MasterRow is the 1-based position of the matched (exact) or best
	// scoring (fuzzy) master record, or 0.
	MasterRow int                `json:"masterRow,omitempty"`
	Score     *float64           `json:"similarityScore,omitempty"`
	PerColumn map[string]float64 `json:"perColumnSimilarity,omitempty"`
	Data      Record             `json:"data"`
}

// Result is the full classification of a secondary set.
type Result struct {
	TotalRows     int          `json:"totalRows"`
	MatchedRows   int          `json:"matchedRows"`
	UnmatchedRows int          `json:"unmatchedRows"`
	Mode          Mode         `json:"comparisonMethod"`
	Threshold     *float64     `json:"similarityThreshold,omitempty"`
	Rows          []RowOutcome `json:"comparisonData"`
}

// Compare classifies every secondary record as matched or unmatched against
// the master set. The configuration is validated before any work starts.
// Nothing is retained between calls.
func Compare(ctx context.Context, master, secondary *RecordSet, cfg Config, opts Options) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxRecords > 0 && master.Len()+secondary.Len() > opts.MaxRecords {
		return nil, eris.Wrapf(ErrResourceExhausted, "match: %d records exceed the limit of %d",
			master.Len()+secondary.Len(), opts.MaxRecords)
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}

	mode := cfg.mode()
	log := zap.L().With(zap.String("mode", string(mode)))
	start := time.Now()
	log.Debug("match: building index", zap.Int("master_rows", master.Len()))

	var (
		rows []RowOutcome
		err  error
	)
	switch mode {
	case ModeFuzzy:
		var ix *phoneticIndex
		if ix, err = buildPhoneticIndex(ctx, master, cfg, opts); err != nil {
			return nil, eris.Wrap(err, "match: build phonetic index")
		}
		log.Debug("match: comparing", zap.Int("buckets", len(ix.buckets)), zap.Int("secondary_rows", secondary.Len()))
		rows, err = matchRows(ctx, ix, secondary, cfg, opts)
	default:
		var index map[string]int
		if index, err = buildHashIndex(ctx, master, cfg, opts); err != nil {
			return nil, eris.Wrap(err, "match: build hash index")
		}
		log.Debug("match: comparing", zap.Int("keys", len(index)), zap.Int("secondary_rows", secondary.Len()))
		rows, err = probeHashIndex(ctx, index, secondary, cfg, opts)
	}
	if err != nil {
		return nil, eris.Wrap(err, "match: compare rows")
	}

	res := &Result{TotalRows: len(rows), Mode: mode, Rows: rows}
	if mode == ModeFuzzy {
		t := cfg.Threshold
		res.Threshold = &t
	}
	for _, r := range rows {
		if r.Matched {
			res.MatchedRows++
		}
	}
	res.UnmatchedRows = res.TotalRows - res.MatchedRows

	opts.Progress.Emit(StageComplete, ProgressTotal, "Comparison complete!")
	log.Info("match: comparison complete",
		zap.Int("total", res.TotalRows),
		zap.Int("matched", res.MatchedRows),
		zap.Int("unmatched", res.UnmatchedRows),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}
