package match

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// fallbackSampleSize bounds how many master records are scored for a
// secondary record whose phonetic bucket is empty.
const fallbackSampleSize = 100

// phoneticIndex buckets master records by phonetic key. It is built once per
// run and read-only afterwards.
type phoneticIndex struct {
	buckets map[string][]int
	values  [][]string // selected master values, by master position
	sample  []int
}

func buildPhoneticIndex(ctx context.Context, master *RecordSet, cfg Config, opts Options) (*phoneticIndex, error) {
	n := master.Len()
	m := newMeter(opts.Progress, StageBuildingIndex, "Building phonetic index",
		bandIndexStart, bandIndexWidth, n, opts.ChunkSize)

	ix := &phoneticIndex{
		buckets: make(map[string][]int),
		values:  make([][]string, n),
		sample:  samplePositions(n),
	}
	for i := 0; i < n; i++ {
		if i%m.chunkSize == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		rec := master.Records[i]
		key := PhoneticKey(rec, cfg.MasterColumns)
		ix.buckets[key] = append(ix.buckets[key], i)
		ix.values[i] = rec.Values(cfg.MasterColumns)
		m.add(1)
	}
	return ix, nil
}

// samplePositions returns evenly spaced master positions used when a phonetic
// lookup misses. The stride depends only on the master count.
func samplePositions(count int) []int {
	size := min(fallbackSampleSize, count)
	if size == 0 {
		return nil
	}
	stride := count / size
	out := make([]int, size)
	for i := range out {
		out[i] = i * stride
	}
	return out
}

// candidate is the best-scoring master record for one secondary record.
type candidate struct {
	pos       int
	score     float64
	perColumn []float64
}

// best scores every position in positions against values and keeps the
// highest. Ties keep the earliest position. ok is false when positions is empty.
func (ix *phoneticIndex) best(values []string, positions []int) (c candidate, ok bool) {
	for _, pos := range positions {
		scores, err := FieldSimilarities(values, ix.values[pos])
		if err != nil {
			continue
		}
		s := mean(scores)
		if !ok || s > c.score {
			c = candidate{pos: pos, score: s, perColumn: scores}
			ok = true
			if s == 100 {
				break
			}
		}
	}
	return c, ok
}

func (ix *phoneticIndex) match(rec Record, row int, cfg Config) RowOutcome {
	out := RowOutcome{Row: row, Data: rec}

	positions := ix.buckets[PhoneticKey(rec, cfg.SecondaryColumns)]
	if len(positions) == 0 {
		positions = ix.sample
	}

	c, ok := ix.best(rec.Values(cfg.SecondaryColumns), positions)
	if !ok {
		return out
	}

	score := c.score
	out.Score = &score
	out.MasterRow = c.pos + 1
	out.PerColumn = make(map[string]float64, len(cfg.SecondaryColumns))
	for i, col := range cfg.SecondaryColumns {
		out.PerColumn[col] = c.perColumn[i]
	}
	out.Matched = score >= cfg.Threshold
	return out
}

// matchRows finds the best master candidate for every secondary record.
// With more than one worker, blocks of rows are scored concurrently; each
// outcome is written to its own slot so order follows the secondary set.
func matchRows(ctx context.Context, ix *phoneticIndex, secondary *RecordSet, cfg Config, opts Options) ([]RowOutcome, error) {
	n := secondary.Len()
	m := newMeter(opts.Progress, StageComparing, "Comparing",
		bandCompareStart, bandCompareWidth, n, opts.ChunkSize)

	rows := make([]RowOutcome, n)
	block := func(ctx context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			if (i-lo)%m.chunkSize == 0 && ctx.Err() != nil {
				return ctx.Err()
			}
			rows[i] = ix.match(secondary.Records[i], i+1, cfg)
			m.add(1)
		}
		return nil
	}

	if opts.Workers <= 1 {
		if err := block(ctx, 0, n); err != nil {
			return nil, err
		}
		return rows, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	step := max(1, min(m.chunkSize, (n+opts.Workers-1)/opts.Workers))
	for lo := 0; lo < n; lo += step {
		hi := min(lo+step, n)
		g.Go(func() error { return block(gctx, lo, hi) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}
