package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Match    MatchConfig    `yaml:"match" mapstructure:"match"`
	Progress ProgressConfig `yaml:"progress" mapstructure:"progress"`
	Retry    RetryConfig    `yaml:"retry" mapstructure:"retry"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig selects and configures the comparison history store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port         int      `yaml:"port" mapstructure:"port"`
	MaxUploadMB  int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	CompareRPS   float64  `yaml:"compare_rps" mapstructure:"compare_rps"`
	CompareBurst int      `yaml:"compare_burst" mapstructure:"compare_burst"`
	CORSOrigins  []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MaxUploadBytes returns the upload limit in bytes.
func (s ServerConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// MatchConfig holds engine defaults applied when a request leaves them unset.
type MatchConfig struct {
	ChunkSize        int     `yaml:"chunk_size" mapstructure:"chunk_size"`
	Workers          int     `yaml:"workers" mapstructure:"workers"`
	MaxRecords       int     `yaml:"max_records" mapstructure:"max_records"`
	DefaultThreshold float64 `yaml:"default_threshold" mapstructure:"default_threshold"`
	CaseSensitive    bool    `yaml:"case_sensitive" mapstructure:"case_sensitive"`
	TrimWhitespace   bool    `yaml:"trim_whitespace" mapstructure:"trim_whitespace"`
	PreviewRows      int     `yaml:"preview_rows" mapstructure:"preview_rows"`
}

// ProgressConfig configures the in-memory job tracker.
type ProgressConfig struct {
	RetentionSecs int `yaml:"retention_secs" mapstructure:"retention_secs"`
}

// Retention returns how long finished jobs are kept.
func (p ProgressConfig) Retention() time.Duration {
	return time.Duration(p.RetentionSecs) * time.Second
}

// RetryConfig configures retries of store writes.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RECORDMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "recordmatch.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_mb", 50)
	v.SetDefault("server.compare_rps", 2)
	v.SetDefault("server.compare_burst", 5)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("match.chunk_size", 10000)
	v.SetDefault("match.workers", 4)
	v.SetDefault("match.max_records", 0)
	v.SetDefault("match.default_threshold", 85)
	v.SetDefault("match.case_sensitive", false)
	v.SetDefault("match.trim_whitespace", true)
	v.SetDefault("match.preview_rows", 3)
	v.SetDefault("progress.retention_secs", 300)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 100)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command depends on. mode is one of
// "compare", "serve" or "store".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	switch mode {
	case "store":
	case "compare", "serve":
		if c.Match.ChunkSize <= 0 {
			problems = append(problems, "match.chunk_size must be > 0")
		}
		if c.Match.Workers < 0 {
			problems = append(problems, "match.workers must be >= 0")
		}
		if c.Match.MaxRecords < 0 {
			problems = append(problems, "match.max_records must be >= 0")
		}
		if c.Match.DefaultThreshold < 0 || c.Match.DefaultThreshold > 100 {
			problems = append(problems, "match.default_threshold must be between 0 and 100")
		}
		if mode == "serve" {
			if c.Server.Port <= 0 {
				problems = append(problems, "server.port must be > 0")
			}
			if c.Server.MaxUploadMB <= 0 {
				problems = append(problems, "server.max_upload_mb must be > 0")
			}
			if c.Server.CompareRPS < 0 {
				problems = append(problems, "server.compare_rps must be >= 0")
			}
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
