package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/recordmatch/internal/match"
	"github.com/sells-group/recordmatch/internal/sheet"
)

func TestFormatPreview(t *testing.T) {
	rs, err := sheet.ReadCSV(strings.NewReader(secondaryCSV), sheet.Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	formatPreview(&buf, "people.csv", match.PreviewFirstRows(rs, 2))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "people.csv: 3 rows, 2 columns", lines[0])
	assert.Contains(t, lines[2], "Full Name")
	assert.Contains(t, lines[3], "alice")
	assert.Contains(t, lines[4], "Carol")
}

func TestFormatPreview_NoColumns(t *testing.T) {
	var buf bytes.Buffer
	formatPreview(&buf, "empty.csv", match.Preview{})
	assert.Equal(t, "empty.csv: 0 rows, 0 columns\n\n", buf.String())
}

func TestFormatPairs(t *testing.T) {
	var buf bytes.Buffer
	formatPairs(&buf, nil)
	assert.Equal(t, "No matching column names found.\n", buf.String())

	buf.Reset()
	formatPairs(&buf, match.SuggestPairs([]string{"Full Name"}, []string{"full_name"}, match.DefaultPairScore))
	out := buf.String()
	assert.Contains(t, out, "MASTER")
	assert.Contains(t, out, "full_name")
	assert.Contains(t, out, "1.00")
}
