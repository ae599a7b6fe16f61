// Package runner executes one comparison end to end: parse both
// spreadsheets, run the match engine and optionally persist the outcome.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/recordmatch/internal/match"
	"github.com/sells-group/recordmatch/internal/model"
	"github.com/sells-group/recordmatch/internal/resilience"
	"github.com/sells-group/recordmatch/internal/sheet"
	"github.com/sells-group/recordmatch/internal/store"
)

// Input is one spreadsheet to compare, already read into memory.
type Input struct {
	Name  string
	Data  []byte
	Sheet sheet.Options
}

// Request describes a single comparison.
type Request struct {
	Master    Input
	Secondary Input
	Config    match.Config
	// Save persists the outcome when the runner has a store.
	Save bool
	// Progress receives parsing events followed by the engine's events.
	Progress match.ProgressFunc
}

// Outcome is the result of a run. Comparison.ID is set only when saved.
type Outcome struct {
	Comparison *model.Comparison
	Rows       []model.RowResult
	Result     *match.Result
	Saved      bool
}

// ParseError reports a spreadsheet that could not be read.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Runner runs comparisons with fixed engine options.
type Runner struct {
	store store.Store
	retry resilience.RetryConfig
	opts  match.Options
}

// New creates a Runner. st may be nil, in which case nothing is saved.
func New(st store.Store, retry resilience.RetryConfig, opts match.Options) *Runner {
	return &Runner{store: st, retry: retry, opts: opts}
}

// Run parses both inputs concurrently, compares them and saves the outcome
// when requested.
func (r *Runner) Run(ctx context.Context, req Request) (*Outcome, error) {
	log := zap.L().With(zap.String("master", req.Master.Name), zap.String("secondary", req.Secondary.Name))
	start := time.Now()

	if err := req.Config.Validate(); err != nil {
		return nil, err
	}

	var master, secondary *match.RecordSet
	g, gCtx := errgroup.WithContext(ctx)

	req.Progress.Emit(match.StageParsing, 0, "Parsing master file...")
	g.Go(func() error {
		rs, err := parse(gCtx, req.Master)
		master = rs
		return err
	})
	req.Progress.Emit(match.StageParsing, 20, "Parsing secondary file...")
	g.Go(func() error {
		rs, err := parse(gCtx, req.Secondary)
		secondary = rs
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Debug("runner: parsed inputs",
		zap.Int("master_rows", master.Len()),
		zap.Int("secondary_rows", secondary.Len()),
	)

	opts := r.opts
	opts.Progress = req.Progress
	res, err := match.Compare(ctx, master, secondary, req.Config, opts)
	if err != nil {
		return nil, eris.Wrap(err, "runner: compare")
	}

	c, rows := model.FromResult(req.Master.Name, req.Secondary.Name, secondary.Columns(), req.Config, res)
	out := &Outcome{Comparison: c, Rows: rows, Result: res}

	if req.Save && r.store != nil {
		if err := store.SaveWithRetry(ctx, r.store, r.retry, c, rows); err != nil {
			return nil, eris.Wrap(err, "runner: save comparison")
		}
		out.Saved = true
	}

	log.Info("runner: comparison finished",
		zap.String("comparison_id", c.ID),
		zap.String("method", string(c.Method)),
		zap.Int("total_rows", c.TotalRows),
		zap.Int("matched_rows", c.MatchedRows),
		zap.Bool("saved", out.Saved),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

func parse(ctx context.Context, in Input) (*match.RecordSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rs, err := sheet.Open(in.Name, in.Data, in.Sheet)
	if err != nil {
		return nil, &ParseError{File: in.Name, Err: err}
	}
	return rs, nil
}
