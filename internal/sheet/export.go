package sheet

import (
	"io"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/recordmatch/internal/model"
)

// Export layout.
const (
	ResultSheetName   = "Comparison Results"
	MatchStatusColumn = "MATCH_STATUS"
	ScoreColumn       = "SIMILARITY_SCORE"
)

// ResultFileName is the download name for an export made on day t.
func ResultFileName(t time.Time) string {
	return "comparison_result_" + t.Format("2006-01-02") + ".xlsx"
}

// WriteResultXLSX writes the secondary rows of a comparison with their match
// status. Fuzzy comparisons also carry the best similarity score.
func WriteResultXLSX(w io.Writer, c *model.Comparison, rows []model.RowResult) error {
	f := xlsx.NewFile()
	sh, err := f.AddSheet(ResultSheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	withScore := c.Method == model.MethodFuzzy

	head := sh.AddRow()
	for _, name := range c.SecondaryHeader {
		head.AddCell().SetString(name)
	}
	head.AddCell().SetString(MatchStatusColumn)
	if withScore {
		head.AddCell().SetString(ScoreColumn)
	}

	for _, r := range rows {
		row := sh.AddRow()
		for i := range c.SecondaryHeader {
			cell := row.AddCell()
			if i < len(r.Data) {
				cell.SetString(r.Data[i])
			}
		}
		row.AddCell().SetString(r.Status())
		if withScore {
			cell := row.AddCell()
			if r.Score != nil {
				cell.SetFloat(math.Round(*r.Score*100) / 100)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}
