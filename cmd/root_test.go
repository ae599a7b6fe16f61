package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"compare", "preview", "serve", "history", "export", "migrate"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "recordmatch", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCompareCommand_Flags(t *testing.T) {
	for _, name := range []string{"master", "secondary", "master-cols", "secondary-cols", "fuzzy", "threshold", "case-sensitive", "no-trim", "save", "output", "job"} {
		assert.NotNil(t, compareCmd.Flags().Lookup(name), "compare should have --%s flag", name)
	}
	assert.Equal(t, "85", compareCmd.Flags().Lookup("threshold").DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestHistoryCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range historyCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "delete", "stats"} {
		assert.True(t, names[name], "history should have subcommand %q", name)
	}
}

func TestPreviewCommand_Args(t *testing.T) {
	assert.Error(t, previewCmd.Args(previewCmd, nil))
	assert.NoError(t, previewCmd.Args(previewCmd, []string{"a.xlsx"}))
	assert.NotNil(t, previewCmd.Flags().Lookup("against"))
}
