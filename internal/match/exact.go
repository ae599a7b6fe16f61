package match

import "context"

// buildHashIndex maps each master key to the position of the last master
// record carrying it. Duplicate keys are not an error: last write wins.
func buildHashIndex(ctx context.Context, master *RecordSet, cfg Config, opts Options) (map[string]int, error) {
	n := master.Len()
	m := newMeter(opts.Progress, StageBuildingIndex, "Building hash index",
		bandIndexStart, bandIndexWidth, n, opts.ChunkSize)

	index := make(map[string]int, n)
	for i := 0; i < n; i++ {
		if i%m.chunkSize == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		index[HashKey(master.Records[i], cfg.MasterColumns, cfg.CaseSensitive, cfg.TrimWhitespace)] = i
		m.add(1)
	}
	return index, nil
}

// probeHashIndex classifies every secondary record by key membership.
func probeHashIndex(ctx context.Context, index map[string]int, secondary *RecordSet, cfg Config, opts Options) ([]RowOutcome, error) {
	n := secondary.Len()
	m := newMeter(opts.Progress, StageComparing, "Comparing",
		bandCompareStart, bandCompareWidth, n, opts.ChunkSize)

	rows := make([]RowOutcome, n)
	for i := 0; i < n; i++ {
		if i%m.chunkSize == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		rec := secondary.Records[i]
		out := RowOutcome{Row: i + 1, Data: rec}
		if pos, ok := index[HashKey(rec, cfg.SecondaryColumns, cfg.CaseSensitive, cfg.TrimWhitespace)]; ok {
			out.Matched = true
			out.MasterRow = pos + 1
		}
		rows[i] = out
		m.add(1)
	}
	return rows, nil
}
