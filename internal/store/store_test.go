package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/recordmatch/internal/model"
	"github.com/sells-group/recordmatch/internal/resilience"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func ptr(f float64) *float64 { return &f }

func sampleComparison() (*model.Comparison, []model.RowResult) {
	c := &model.Comparison{
		MasterFile:       "master.xlsx",
		SecondaryFile:    "secondary.xlsx",
		TotalRows:        4,
		MatchedRows:      2,
		UnmatchedRows:    2,
		MasterColumns:    []string{"Name"},
		SecondaryColumns: []string{"Full Name"},
		SecondaryHeader:  []string{"Full Name", "City"},
		Method:           model.MethodFuzzy,
		Threshold:        ptr(85),
	}
	rows := []model.RowResult{
		{Row: 1, Matched: true, MasterRow: 3, Score: ptr(97.3), PerColumn: map[string]float64{"Full Name": 97.3}, Data: []string{"John Smith", "Oslo"}},
		{Row: 2, Matched: false, MasterRow: 1, Score: ptr(40), PerColumn: map[string]float64{"Full Name": 40}, Data: []string{"Zed", ""}},
		{Row: 3, Matched: true, MasterRow: 2, Score: ptr(100), PerColumn: map[string]float64{"Full Name": 100}, Data: []string{"Ann Lee", "Bergen"}},
		{Row: 4, Matched: false, Data: []string{"", "Lund"}},
	}
	return c, rows
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("SaveAndGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		c, rows := sampleComparison()
		require.NoError(t, s.SaveComparison(ctx, c, rows))
		require.NotEmpty(t, c.ID)
		assert.False(t, c.CreatedAt.IsZero())

		got, err := s.GetComparison(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.ID, got.ID)
		assert.Equal(t, "master.xlsx", got.MasterFile)
		assert.Equal(t, 2, got.MatchedRows)
		assert.Equal(t, []string{"Name"}, got.MasterColumns)
		assert.Equal(t, []string{"Full Name"}, got.SecondaryColumns)
		assert.Equal(t, []string{"Full Name", "City"}, got.SecondaryHeader)
		assert.Equal(t, model.MethodFuzzy, got.Method)
		require.NotNil(t, got.Threshold)
		assert.Equal(t, 85.0, *got.Threshold)
		assert.WithinDuration(t, c.CreatedAt, got.CreatedAt, time.Second)
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetComparison(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ExactHasNoThreshold", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		c := &model.Comparison{MasterFile: "a.csv", SecondaryFile: "b.csv", Method: model.MethodExact}
		require.NoError(t, s.SaveComparison(ctx, c, nil))

		got, err := s.GetComparison(ctx, c.ID)
		require.NoError(t, err)
		assert.Nil(t, got.Threshold)
		assert.Equal(t, []string{}, got.SecondaryHeader)
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var ids []string
		for i := 0; i < 3; i++ {
			c, rows := sampleComparison()
			c.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Minute)
			require.NoError(t, s.SaveComparison(ctx, c, rows))
			ids = append(ids, c.ID)
		}

		list, err := s.ListComparisons(ctx, ListFilter{})
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, ids[2], list[0].ID)
		assert.Equal(t, ids[0], list[2].ID)
		require.NotNil(t, list[0].Threshold)

		page, err := s.ListComparisons(ctx, ListFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, ids[1], page[0].ID)
	})

	t.Run("ListEmpty", func(t *testing.T) {
		s := newStore(t)
		list, err := s.ListComparisons(context.Background(), ListFilter{})
		require.NoError(t, err)
		assert.NotNil(t, list)
		assert.Empty(t, list)
	})

	t.Run("ListRowsFilterAndPage", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		c, rows := sampleComparison()
		require.NoError(t, s.SaveComparison(ctx, c, rows))

		all, total, err := s.ListRows(ctx, c.ID, model.RowFilter{Status: model.RowsAll})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		require.Len(t, all, 4)
		assert.Equal(t, rows[0], all[0])
		assert.Equal(t, rows[3], all[3])

		matched, total, err := s.ListRows(ctx, c.ID, model.RowFilter{Status: model.RowsMatched})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, matched, 2)
		assert.Equal(t, 1, matched[0].Row)
		assert.Equal(t, 3, matched[1].Row)

		page, total, err := s.ListRows(ctx, c.ID, model.RowFilter{Status: model.RowsUnmatched, Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, page, 1)
		assert.Equal(t, 4, page[0].Row)
		assert.Nil(t, page[0].Score)
		assert.Nil(t, page[0].PerColumn)
	})

	t.Run("ListRowsMissing", func(t *testing.T) {
		s := newStore(t)
		_, _, err := s.ListRows(context.Background(), "nope", model.RowFilter{})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		c, rows := sampleComparison()
		require.NoError(t, s.SaveComparison(ctx, c, rows))
		require.NoError(t, s.DeleteComparison(ctx, c.ID))

		_, err := s.GetComparison(ctx, c.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, _, err = s.ListRows(ctx, c.ID, model.RowFilter{})
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, s.DeleteComparison(ctx, c.ID), ErrNotFound)
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(context.Background()))
	})
}

func TestSQLiteStore_Suite(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

// flakyStore fails the first saves with a transient error.
type flakyStore struct {
	Store
	failures int
	ids      []string
}

func (f *flakyStore) SaveComparison(ctx context.Context, c *model.Comparison, rows []model.RowResult) error {
	f.ids = append(f.ids, c.ID)
	if f.failures > 0 {
		f.failures--
		return resilience.NewTransientError(errors.New("database is locked"))
	}
	return f.Store.SaveComparison(ctx, c, rows)
}

func TestSaveWithRetry_KeepsIDAcrossAttempts(t *testing.T) {
	inner := newTestSQLite(t)
	fs := &flakyStore{Store: inner, failures: 2}
	cfg := resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}

	c, rows := sampleComparison()
	require.NoError(t, SaveWithRetry(context.Background(), fs, cfg, c, rows))

	require.Len(t, fs.ids, 3)
	assert.Equal(t, fs.ids[0], fs.ids[2])

	list, err := inner.ListComparisons(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSaveWithRetry_GivesUp(t *testing.T) {
	fs := &flakyStore{Store: newTestSQLite(t), failures: 5}
	cfg := resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond}

	c, rows := sampleComparison()
	err := SaveWithRetry(context.Background(), fs, cfg, c, rows)
	require.Error(t, err)
	assert.Len(t, fs.ids, 2)
}
