package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/recordmatch/internal/model"
	"github.com/sells-group/recordmatch/internal/sheet"
)

var exportCmd = &cobra.Command{
	Use:   "export <comparison-id>",
	Short: "Export a saved comparison to XLSX",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		c, err := st.GetComparison(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "export")
		}
		rows, _, err := st.ListRows(ctx, c.ID, model.RowFilter{Status: model.RowsAll})
		if err != nil {
			return eris.Wrap(err, "export")
		}

		path, _ := cmd.Flags().GetString("output")
		if path == "" {
			path = sheet.ResultFileName(time.Now())
		}
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrap(err, "export: create file")
		}
		if err := sheet.WriteResultXLSX(f, c, rows); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrap(err, "export: close file")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rows to %s\n", len(rows), path)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("output", "", "output file (default comparison_result_<date>.xlsx)")
	rootCmd.AddCommand(exportCmd)
}
