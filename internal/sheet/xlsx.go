package sheet

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/recordmatch/internal/match"
)

// ReadXLSX parses an XLSX workbook. The first row of the selected sheet is
// the header.
func ReadXLSX(data []byte, opts Options) (*match.RecordSet, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open workbook")
	}

	sh, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if len(sh.Rows) == 0 {
		return match.NewRecordSet(nil, nil), nil
	}

	header := make([]string, len(sh.Rows[0].Cells))
	for i, cell := range sh.Rows[0].Cells {
		header[i] = cell.String()
	}

	rows := make([][]match.Value, 0, len(sh.Rows)-1)
	for _, row := range sh.Rows[1:] {
		if row == nil {
			continue
		}
		rows = append(rows, rowToValues(row))
	}
	return build(header, rows), nil
}

func getSheet(f *xlsx.File, opts Options) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sh, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sh, nil
	}

	if opts.SheetIndex < 0 || opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (workbook has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func rowToValues(row *xlsx.Row) []match.Value {
	cells := make([]match.Value, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cellValue(cell)
	}
	return cells
}

// cellValue keeps numbers and booleans typed; everything else is read as
// its formatted text.
func cellValue(cell *xlsx.Cell) match.Value {
	if cell == nil {
		return match.Blank()
	}
	switch cell.Type() {
	case xlsx.CellTypeNumeric:
		if cell.Value == "" {
			return match.Blank()
		}
		if f, err := cell.Float(); err == nil {
			return match.Number(f)
		}
	case xlsx.CellTypeBool:
		return match.Bool(cell.Bool())
	}
	return match.Str(cell.String())
}
