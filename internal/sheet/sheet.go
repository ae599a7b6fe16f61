// Package sheet turns uploaded spreadsheets (XLSX, CSV) into match record sets
// and writes stored comparisons back out as XLSX.
package sheet

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/recordmatch/internal/match"
)

// ErrUnsupportedFormat is returned for files that are neither XLSX nor CSV.
var ErrUnsupportedFormat = eris.New("unsupported file format")

// emptyHeader names header cells that carry no text.
const emptyHeader = "__EMPTY"

// Options configures how a file is read.
type Options struct {
	SheetName  string // XLSX: if set, overrides SheetIndex
	SheetIndex int    // XLSX: default 0
	Delimiter  rune   // CSV: default ','
	Charset    string // CSV: htmlindex name, default utf-8
}

// Supported reports whether name has an extension Open can read.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".csv":
		return true
	}
	return false
}

// Open parses data according to the extension of name.
func Open(name string, data []byte, opts Options) (*match.RecordSet, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".xlsx":
		return ReadXLSX(data, opts)
	case ".csv":
		return ReadCSV(bytes.NewReader(data), opts)
	default:
		return nil, eris.Wrapf(ErrUnsupportedFormat, "sheet: %q (want .xlsx or .csv)", filepath.Base(name))
	}
}

// ReadFile reads and parses the file at path.
func ReadFile(path string, opts Options) (*match.RecordSet, error) {
	if !Supported(path) {
		return nil, eris.Wrapf(ErrUnsupportedFormat, "sheet: %q (want .xlsx or .csv)", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "sheet: read file")
	}
	return Open(path, data, opts)
}

// build assembles a record set from a raw header row and data rows. The
// header is widened to the longest row, blank names become __EMPTY,
// __EMPTY_1, ... and repeated names get _1, _2 suffixes. Rows whose cells
// are all empty are dropped; whitespace counts as content.
func build(header []string, rows [][]match.Value) *match.RecordSet {
	width := len(header)
	for _, r := range rows {
		width = max(width, len(r))
	}
	raw := make([]string, width)
	copy(raw, header)

	kept := rows[:0]
	for _, r := range rows {
		if !blankRow(r) {
			kept = append(kept, r)
		}
	}
	return match.NewRecordSet(uniqueHeaders(raw), kept)
}

func uniqueHeaders(raw []string) []string {
	out := make([]string, len(raw))
	used := make(map[string]bool, len(raw))
	next := make(map[string]int, len(raw))
	for i, name := range raw {
		base := name
		if strings.TrimSpace(base) == "" {
			base = emptyHeader
		}
		candidate := base
		for used[candidate] {
			next[base]++
			candidate = base + "_" + strconv.Itoa(next[base])
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out
}

func blankRow(r []match.Value) bool {
	for _, v := range r {
		if !v.IsBlank() {
			return false
		}
	}
	return true
}
