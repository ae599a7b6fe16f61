package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/recordmatch/internal/model"
	"github.com/sells-group/recordmatch/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect saved comparisons",
	Long:  "Commands for listing, viewing, summarizing and deleting saved comparisons.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate("store")
	},
}

// -- history list --

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved comparisons, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		list, err := st.ListComparisons(ctx, store.ListFilter{Limit: limit, Offset: offset})
		if err != nil {
			return eris.Wrap(err, "history list")
		}

		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No comparisons found.")
			return nil
		}

		formatHistoryList(cmd.OutOrStdout(), list)
		return nil
	},
}

// -- history show --

var historyShowCmd = &cobra.Command{
	Use:   "show <comparison-id>",
	Short: "Show a comparison and a page of its rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter, _ := cmd.Flags().GetString("filter")
		status, err := model.ParseRowStatus(filter)
		if err != nil {
			return err
		}
		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")

		c, err := st.GetComparison(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "history show")
		}
		p := model.NewPagination(page, limit, 0)
		rows, total, err := st.ListRows(ctx, c.ID, p.Filter(status))
		if err != nil {
			return eris.Wrap(err, "history show")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*model.Comparison
			Rows       []model.RowResult `json:"comparisonData"`
			Pagination model.Pagination  `json:"pagination"`
		}{c, rows, model.NewPagination(p.Page, p.Limit, total)})
	},
}

// -- history delete --

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <comparison-id>",
	Short: "Delete a saved comparison and its rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteComparison(ctx, args[0]); err != nil {
			return eris.Wrap(err, "history delete")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

// -- history stats --

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate statistics over saved comparisons",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		list, err := st.ListComparisons(ctx, store.ListFilter{Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "history stats")
		}

		formatHistoryStats(cmd.OutOrStdout(), computeHistoryStats(list))
		return nil
	},
}

func init() {
	historyListCmd.Flags().Int("limit", 50, "max number of comparisons to display")
	historyListCmd.Flags().Int("offset", 0, "number of comparisons to skip")

	historyShowCmd.Flags().String("filter", "all", "row filter: all, matched or unmatched")
	historyShowCmd.Flags().Int("page", 1, "page of rows to show")
	historyShowCmd.Flags().Int("limit", model.DefaultPageLimit, "rows per page")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyStatsCmd)
	rootCmd.AddCommand(historyCmd)
}

// historyStats holds aggregate statistics over saved comparisons.
type historyStats struct {
	Comparisons int
	Exact       int
	Fuzzy       int
	TotalRows   int
	MatchedRows int
}

// MatchRate is the share of matched rows across all comparisons, in percent.
func (s historyStats) MatchRate() float64 {
	if s.TotalRows == 0 {
		return 0
	}
	return float64(s.MatchedRows) * 100 / float64(s.TotalRows)
}

func computeHistoryStats(list []model.ComparisonSummary) historyStats {
	var s historyStats
	s.Comparisons = len(list)
	for _, c := range list {
		if c.Method == model.MethodFuzzy {
			s.Fuzzy++
		} else {
			s.Exact++
		}
		s.TotalRows += c.TotalRows
		s.MatchedRows += c.MatchedRows
	}
	return s
}

// formatHistoryList writes a tabular list of comparisons to out.
func formatHistoryList(out io.Writer, list []model.ComparisonSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tMASTER\tSECONDARY\tMETHOD\tMATCHED\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t------\t---------\t------\t-------\t-------")

	for _, c := range list {
		method := string(c.Method)
		if c.Threshold != nil {
			method = fmt.Sprintf("%s@%g", c.Method, *c.Threshold)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\n",
			truncateID(c.ID),
			truncateName(c.MasterFile),
			truncateName(c.SecondaryFile),
			method,
			c.MatchedRows, c.TotalRows,
			c.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatHistoryStats writes aggregate stats to out.
func formatHistoryStats(out io.Writer, s historyStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Comparisons:\t%d\n", s.Comparisons)
	_, _ = fmt.Fprintf(w, "  Exact:\t%d\n", s.Exact)
	_, _ = fmt.Fprintf(w, "  Fuzzy:\t%d\n", s.Fuzzy)
	_, _ = fmt.Fprintf(w, "Rows compared:\t%d\n", s.TotalRows)
	_, _ = fmt.Fprintf(w, "Rows matched:\t%d\n", s.MatchedRows)
	if s.TotalRows > 0 {
		_, _ = fmt.Fprintf(w, "Match rate:\t%.1f%%\n", s.MatchRate())
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncateName(name string) string {
	if len(name) > 30 {
		return name[:27] + "..."
	}
	return name
}
