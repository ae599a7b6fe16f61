package sheet

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/recordmatch/internal/match"
)

// ReadCSV parses delimited text. The first record is the header; every cell
// is read as text.
func ReadCSV(r io.Reader, opts Options) (*match.RecordSet, error) {
	charset := opts.Charset
	if charset == "" {
		charset = "utf-8"
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: unsupported charset %q", charset)
	}
	// A byte order mark, when present, overrides the declared charset.
	decoded := transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder()))

	reader := csv.NewReader(decoded)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // allow variable fields

	var (
		header []string
		rows   [][]match.Value
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		if header == nil {
			header = record
			continue
		}
		cells := make([]match.Value, len(record))
		for i, field := range record {
			cells[i] = match.Str(field)
		}
		rows = append(rows, cells)
	}
	return build(header, rows), nil
}
