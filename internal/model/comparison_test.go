package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/recordmatch/internal/match"
)

func TestFromResult_Fuzzy(t *testing.T) {
	master := match.NewRecordSet([]string{"Name"}, [][]match.Value{{match.Str("Jon Smith")}})
	secondary := match.NewRecordSet([]string{"Name", "Age"}, [][]match.Value{
		{match.Str("John Smith"), match.Number(41)},
		{match.Str("Zed")},
	})
	cfg := match.Config{
		MasterColumns:    []string{"Name"},
		SecondaryColumns: []string{"Name"},
		Mode:             match.ModeFuzzy,
		Threshold:        85,
	}
	res, err := match.Compare(context.Background(), master, secondary, cfg, match.Options{})
	require.NoError(t, err)

	c, rows := FromResult("m.xlsx", "s.xlsx", secondary.Columns(), cfg, res)
	assert.Equal(t, MethodFuzzy, c.Method)
	require.NotNil(t, c.Threshold)
	assert.Equal(t, 85.0, *c.Threshold)
	assert.Equal(t, 2, c.TotalRows)
	assert.Equal(t, []string{"Name", "Age"}, c.SecondaryHeader)
	assert.Empty(t, c.ID)

	require.Len(t, rows, 2)
	assert.Equal(t, []string{"John Smith", "41"}, rows[0].Data)
	assert.Equal(t, StatusMatched, rows[0].Status())
	assert.Equal(t, 1, rows[0].MasterRow)
	assert.Equal(t, []string{"Zed", ""}, rows[1].Data)
}

func TestFromResult_ExactHasNoThreshold(t *testing.T) {
	rs := match.NewRecordSet([]string{"ID"}, [][]match.Value{{match.Number(7)}})
	cfg := match.Config{MasterColumns: []string{"ID"}, SecondaryColumns: []string{"ID"}, Threshold: 90}
	res, err := match.Compare(context.Background(), rs, rs, cfg, match.Options{})
	require.NoError(t, err)

	c, rows := FromResult("a.csv", "b.csv", rs.Columns(), cfg, res)
	assert.Equal(t, MethodExact, c.Method)
	assert.Nil(t, c.Threshold)
	assert.Nil(t, rows[0].Score)
	assert.Equal(t, StatusMatched, rows[0].Status())
}

func TestComparison_Summary(t *testing.T) {
	th := 70.0
	c := &Comparison{ID: "x", MasterFile: "m", TotalRows: 3, MatchedRows: 1, UnmatchedRows: 2, Method: MethodFuzzy, Threshold: &th}
	s := c.Summary()
	assert.Equal(t, "x", s.ID)
	assert.Equal(t, 2, s.UnmatchedRows)
	assert.Equal(t, &th, s.Threshold)
}
