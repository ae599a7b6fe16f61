package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "recordmatch.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(50<<20), cfg.Server.MaxUploadBytes())
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 10000, cfg.Match.ChunkSize)
	assert.InDelta(t, 85, cfg.Match.DefaultThreshold, 0.001)
	assert.False(t, cfg.Match.CaseSensitive)
	assert.True(t, cfg.Match.TrimWhitespace)
	assert.Equal(t, 3, cfg.Match.PreviewRows)
	assert.Equal(t, 5*time.Minute, cfg.Progress.Retention())
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 100, cfg.Retry.InitialBackoffMs)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/recordmatch
log:
  level: debug
  format: console
server:
  port: 9090
match:
  case_sensitive: true
  chunk_size: 500
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/recordmatch", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Match.CaseSensitive)
	assert.Equal(t, 500, cfg.Match.ChunkSize)
	// Defaults still apply for unset values
	assert.True(t, cfg.Match.TrimWhitespace)
	assert.Equal(t, 300, cfg.Progress.RetentionSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("RECORDMATCH_STORE_DRIVER", "sqlite")
	t.Setenv("RECORDMATCH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("RECORDMATCH_SERVER_PORT", "3000")
	t.Setenv("RECORDMATCH_MATCH_DEFAULT_THRESHOLD", "72.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.InDelta(t, 72.5, cfg.Match.DefaultThreshold, 0.001)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "recordmatch.db"
	cfg.Server.Port = 8080
	cfg.Server.MaxUploadMB = 50
	cfg.Match.ChunkSize = 10000
	cfg.Match.DefaultThreshold = 85
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"compare", "serve", "store"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "mysql" must be sqlite or postgres`)
}

func TestValidate_MissingDatabaseURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("compare")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidate_ThresholdBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Match.DefaultThreshold = -1
	err := cfg.Validate("compare")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match.default_threshold must be between 0 and 100")

	cfg.Match.DefaultThreshold = 100.5
	assert.Error(t, cfg.Validate("compare"))

	cfg.Match.DefaultThreshold = 100
	assert.NoError(t, cfg.Validate("compare"))

	cfg.Match.DefaultThreshold = 0
	assert.NoError(t, cfg.Validate("compare"))
}

func TestValidate_ChunkSize(t *testing.T) {
	cfg := validDefaults()
	cfg.Match.ChunkSize = 0

	err := cfg.Validate("compare")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match.chunk_size must be > 0")

	assert.NoError(t, cfg.Validate("store"), "store commands do not run the engine")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
	assert.NoError(t, cfg.Validate("compare"))
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = -1
	cfg.Server.MaxUploadMB = 0
	cfg.Match.ChunkSize = -5

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "server.max_upload_mb")
	assert.Contains(t, err.Error(), "match.chunk_size")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
