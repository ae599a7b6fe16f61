package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/recordmatch/internal/match"
	"github.com/sells-group/recordmatch/internal/sheet"
)

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Show the columns and first rows of a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sheetName, _ := cmd.Flags().GetString("sheet")
		rows, _ := cmd.Flags().GetInt("rows")
		if rows <= 0 {
			rows = cfg.Match.PreviewRows
		}

		rs, err := sheet.ReadFile(args[0], sheet.Options{SheetName: sheetName})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		formatPreview(out, args[0], match.PreviewFirstRows(rs, rows))

		against, _ := cmd.Flags().GetString("against")
		if against == "" {
			return nil
		}
		other, err := sheet.ReadFile(against, sheet.Options{})
		if err != nil {
			return err
		}
		minScore, _ := cmd.Flags().GetFloat64("min-score")
		fmt.Fprintln(out)
		formatPairs(out, match.SuggestPairs(rs.Columns(), other.Columns(), minScore))
		return nil
	},
}

func init() {
	previewCmd.Flags().Int("rows", 0, "number of sample rows (default from config)")
	previewCmd.Flags().String("sheet", "", "worksheet name (default first sheet)")
	previewCmd.Flags().String("against", "", "suggest column pairs against this spreadsheet")
	previewCmd.Flags().Float64("min-score", match.DefaultPairScore, "minimum header similarity for suggested pairs")
	rootCmd.AddCommand(previewCmd)
}

// formatPreview writes the row count, columns and sample rows of a file.
func formatPreview(out io.Writer, name string, p match.Preview) {
	_, _ = fmt.Fprintf(out, "%s: %d rows, %d columns\n\n", name, p.TotalRows, len(p.Columns))
	if len(p.Columns) == 0 {
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(p.Columns, "\t"))
	for _, rec := range p.SampleRows {
		_, _ = fmt.Fprintln(w, strings.Join(rec.Values(p.Columns), "\t"))
	}
	_ = w.Flush()
}

// formatPairs writes suggested master/secondary column pairs.
func formatPairs(out io.Writer, pairs []match.ColumnPair) {
	if len(pairs) == 0 {
		_, _ = fmt.Fprintln(out, "No matching column names found.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "MASTER\tSECONDARY\tSCORE")
	_, _ = fmt.Fprintln(w, "------\t---------\t-----")
	for _, p := range pairs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\n", p.Master, p.Secondary, p.Score)
	}
	_ = w.Flush()
}
