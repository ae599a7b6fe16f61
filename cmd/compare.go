package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/recordmatch/internal/config"
	"github.com/sells-group/recordmatch/internal/match"
	"github.com/sells-group/recordmatch/internal/resilience"
	"github.com/sells-group/recordmatch/internal/runner"
	"github.com/sells-group/recordmatch/internal/sheet"
	"github.com/sells-group/recordmatch/internal/store"
)

// fileSpec names an input spreadsheet and how to read it.
type fileSpec struct {
	File       string `yaml:"file"`
	Sheet      string `yaml:"sheet"`
	SheetIndex int    `yaml:"sheet_index"`
	Delimiter  string `yaml:"delimiter"`
	Charset    string `yaml:"charset"`
}

func (f fileSpec) options() (sheet.Options, error) {
	opts := sheet.Options{SheetName: f.Sheet, SheetIndex: f.SheetIndex, Charset: f.Charset}
	if f.Delimiter != "" {
		r, size := utf8.DecodeRuneInString(f.Delimiter)
		if size != len(f.Delimiter) {
			return opts, eris.Errorf("delimiter %q must be a single character", f.Delimiter)
		}
		opts.Delimiter = r
	}
	return opts, nil
}

// compareJob is a comparison described by a YAML job file, flags, or both.
type compareJob struct {
	Master       fileSpec `yaml:"master"`
	Secondary    fileSpec `yaml:"secondary"`
	match.Config `yaml:",inline"`
	Save         bool   `yaml:"save"`
	Output       string `yaml:"output"`
}

// newCompareJob returns a job carrying the configured match defaults.
func newCompareJob(mc config.MatchConfig) compareJob {
	return compareJob{
		Config: match.Config{
			Mode:           match.ModeExact,
			Threshold:      mc.DefaultThreshold,
			CaseSensitive:  mc.CaseSensitive,
			TrimWhitespace: mc.TrimWhitespace,
		},
	}
}

// loadCompareJob reads a YAML job file over the defaults in job.
func loadCompareJob(path string, job compareJob) (compareJob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return job, eris.Wrap(err, "read job file")
	}
	if err := yaml.Unmarshal(data, &job); err != nil {
		return job, eris.Wrap(err, "parse job file")
	}
	return job, nil
}

// applyCompareFlags overrides job fields with flags the user set.
func applyCompareFlags(cmd *cobra.Command, job *compareJob) {
	fl := cmd.Flags()
	if fl.Changed("master") {
		job.Master.File, _ = fl.GetString("master")
	}
	if fl.Changed("secondary") {
		job.Secondary.File, _ = fl.GetString("secondary")
	}
	if fl.Changed("master-sheet") {
		job.Master.Sheet, _ = fl.GetString("master-sheet")
	}
	if fl.Changed("secondary-sheet") {
		job.Secondary.Sheet, _ = fl.GetString("secondary-sheet")
	}
	if fl.Changed("delimiter") {
		d, _ := fl.GetString("delimiter")
		job.Master.Delimiter, job.Secondary.Delimiter = d, d
	}
	if fl.Changed("charset") {
		c, _ := fl.GetString("charset")
		job.Master.Charset, job.Secondary.Charset = c, c
	}
	if fl.Changed("master-cols") {
		job.MasterColumns, _ = fl.GetStringSlice("master-cols")
	}
	if fl.Changed("secondary-cols") {
		job.SecondaryColumns, _ = fl.GetStringSlice("secondary-cols")
	}
	if fuzzy, _ := fl.GetBool("fuzzy"); fuzzy {
		job.Mode = match.ModeFuzzy
	}
	if fl.Changed("threshold") {
		job.Threshold, _ = fl.GetFloat64("threshold")
	}
	if fl.Changed("case-sensitive") {
		job.CaseSensitive, _ = fl.GetBool("case-sensitive")
	}
	if noTrim, _ := fl.GetBool("no-trim"); noTrim {
		job.TrimWhitespace = false
	}
	if fl.Changed("save") {
		job.Save, _ = fl.GetBool("save")
	}
	if fl.Changed("output") {
		job.Output, _ = fl.GetString("output")
	}
}

// request reads both input files and builds the runner request.
func (j compareJob) request() (runner.Request, error) {
	var req runner.Request
	if j.Master.File == "" || j.Secondary.File == "" {
		return req, eris.New("both --master and --secondary files are required")
	}
	master, err := readInput(j.Master)
	if err != nil {
		return req, err
	}
	secondary, err := readInput(j.Secondary)
	if err != nil {
		return req, err
	}
	req.Master = master
	req.Secondary = secondary
	req.Config = j.Config
	req.Save = j.Save
	return req, nil
}

func readInput(f fileSpec) (runner.Input, error) {
	opts, err := f.options()
	if err != nil {
		return runner.Input{}, err
	}
	data, err := os.ReadFile(f.File)
	if err != nil {
		return runner.Input{}, eris.Wrapf(err, "read %s", f.File)
	}
	return runner.Input{Name: f.File, Data: data, Sheet: opts}, nil
}

// newRunner builds a runner from the loaded configuration. st may be nil.
func newRunner(st store.Store, c *config.Config) *runner.Runner {
	return runner.New(st,
		resilience.FromRetryConfig(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs),
		match.Options{
			ChunkSize:  c.Match.ChunkSize,
			Workers:    c.Match.Workers,
			MaxRecords: c.Match.MaxRecords,
		},
	)
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare a secondary spreadsheet against a master spreadsheet",
	Long: `Classifies every secondary row as matched or unmatched against the master rows.
Inputs may be given with flags or a YAML job file (--job); flags override the file.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("compare"); err != nil {
			return err
		}
		ctx := cmd.Context()

		job := newCompareJob(cfg.Match)
		if path, _ := cmd.Flags().GetString("job"); path != "" {
			var err error
			if job, err = loadCompareJob(path, job); err != nil {
				return err
			}
		}
		applyCompareFlags(cmd, &job)

		req, err := job.request()
		if err != nil {
			return err
		}
		if showProgress, _ := cmd.Flags().GetBool("progress"); showProgress {
			req.Progress = progressPrinter(cmd.ErrOrStderr())
		}

		var st store.Store
		if job.Save {
			if st, err = openStore(ctx, cfg.Store); err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		out, err := newRunner(st, cfg).Run(ctx, req)
		if err != nil {
			return eris.Wrap(err, "compare")
		}

		formatCompareSummary(cmd.OutOrStdout(), out)

		if job.Output != "" {
			if err := writeResultJSON(job.Output, out.Result); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", job.Output)
		}
		return nil
	},
}

func init() {
	registerCompareFlags(compareCmd)
	rootCmd.AddCommand(compareCmd)
}

func registerCompareFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("master", "", "master spreadsheet (.xlsx or .csv)")
	f.String("secondary", "", "secondary spreadsheet (.xlsx or .csv)")
	f.String("master-sheet", "", "master worksheet name (default first sheet)")
	f.String("secondary-sheet", "", "secondary worksheet name (default first sheet)")
	f.String("delimiter", "", "CSV field delimiter (default ,)")
	f.String("charset", "", "CSV character set, e.g. windows-1252 (default utf-8)")
	f.StringSlice("master-cols", nil, "master columns to compare, in pairing order")
	f.StringSlice("secondary-cols", nil, "secondary columns to compare, in pairing order")
	f.Bool("fuzzy", false, "use fuzzy (phonetic + Jaro-Winkler) matching")
	f.Float64("threshold", 85, "fuzzy similarity threshold, 0-100")
	f.Bool("case-sensitive", false, "compare keys case-sensitively")
	f.Bool("no-trim", false, "keep surrounding whitespace in keys")
	f.Bool("save", false, "save the comparison to history")
	f.String("output", "", "write the full result as JSON to this file")
	f.String("job", "", "YAML job file describing the comparison")
	f.Bool("progress", false, "print progress to stderr")
}

func progressPrinter(w io.Writer) match.ProgressFunc {
	return func(e match.ProgressEvent) {
		fmt.Fprintf(w, "[%3d%%] %-14s %s\n", e.Current*100/max(e.Total, 1), e.Stage, e.Message)
	}
}

// formatCompareSummary writes the outcome counts of a run to out.
func formatCompareSummary(out io.Writer, o *runner.Outcome) {
	c := o.Comparison
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if o.Saved {
		_, _ = fmt.Fprintf(w, "Comparison:\t%s\n", c.ID)
	}
	_, _ = fmt.Fprintf(w, "Master:\t%s (%s)\n", c.MasterFile, joinColumns(c.MasterColumns))
	_, _ = fmt.Fprintf(w, "Secondary:\t%s (%s)\n", c.SecondaryFile, joinColumns(c.SecondaryColumns))
	method := string(c.Method)
	if c.Threshold != nil {
		method = fmt.Sprintf("%s (threshold %g)", c.Method, *c.Threshold)
	}
	_, _ = fmt.Fprintf(w, "Method:\t%s\n", method)
	_, _ = fmt.Fprintf(w, "Total rows:\t%d\n", c.TotalRows)
	_, _ = fmt.Fprintf(w, "Matched:\t%d\n", c.MatchedRows)
	_, _ = fmt.Fprintf(w, "Unmatched:\t%d\n", c.UnmatchedRows)
	if c.TotalRows > 0 {
		_, _ = fmt.Fprintf(w, "Match rate:\t%.1f%%\n", float64(c.MatchedRows)*100/float64(c.TotalRows))
	}
	_ = w.Flush()
}

func joinColumns(cols []string) string {
	b, _ := json.Marshal(cols)
	return string(b)
}

func writeResultJSON(path string, res *match.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "create output")
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "write output")
	}
	return eris.Wrap(f.Close(), "close output")
}
