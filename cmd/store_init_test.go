package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/recordmatch/internal/config"
	"github.com/sells-group/recordmatch/internal/store"
)

func TestInitStore_UnsupportedDriver(t *testing.T) {
	_, err := initStore(context.Background(), config.StoreConfig{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestOpenStore_SQLite(t *testing.T) {
	ctx := context.Background()
	st, err := openStore(ctx, config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "rm.db")})
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	require.NoError(t, st.Ping(ctx))
	list, err := st.ListComparisons(ctx, store.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}
