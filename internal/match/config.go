package match

import (
	"github.com/rotisserie/eris"
)

var (
	// ErrInvalidArgument marks a rejected comparison configuration or a
	// violated input contract.
	ErrInvalidArgument = eris.New("invalid argument")

	// ErrResourceExhausted marks inputs larger than the configured record budget.
	ErrResourceExhausted = eris.New("resource exhausted")
)

// Mode selects the comparison strategy.
type Mode string

const (
	ModeExact Mode = "exact"
	ModeFuzzy Mode = "fuzzy"
)

// Config describes one comparison run.
type Config struct {
	MasterColumns    []string `json:"masterColumns" yaml:"master_columns"`
	SecondaryColumns []string `json:"secondaryColumns" yaml:"secondary_columns"`
	Mode             Mode     `json:"mode" yaml:"mode"`
	// Threshold is the minimum similarity percentage for a fuzzy match.
	Threshold      float64 `json:"threshold" yaml:"threshold"`
	CaseSensitive  bool    `json:"caseSensitive" yaml:"case_sensitive"`
	TrimWhitespace bool    `json:"trimWhitespace" yaml:"trim_whitespace"`
}

// Validate checks column pairing and threshold range.
func (c Config) Validate() error {
	if len(c.MasterColumns) == 0 || len(c.SecondaryColumns) == 0 {
		return eris.Wrap(ErrInvalidArgument, "match: at least one column must be selected from each set")
	}
	if len(c.MasterColumns) != len(c.SecondaryColumns) {
		return eris.Wrapf(ErrInvalidArgument, "match: column selections differ in length (master %d, secondary %d)",
			len(c.MasterColumns), len(c.SecondaryColumns))
	}
	switch c.Mode {
	case ModeExact, "":
	case ModeFuzzy:
		if c.Threshold < 0 || c.Threshold > 100 {
			return eris.Wrapf(ErrInvalidArgument, "match: similarity threshold %v must be between 0 and 100", c.Threshold)
		}
	default:
		return eris.Wrapf(ErrInvalidArgument, "match: unknown mode %q", c.Mode)
	}
	return nil
}

func (c Config) mode() Mode {
	if c.Mode == "" {
		return ModeExact
	}
	return c.Mode
}
