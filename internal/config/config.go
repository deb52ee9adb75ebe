// Package config loads runtime settings from a YAML file, SEGMENTS_*
// environment variables and .env files.
//
// Precedence, highest first: process environment, .env.local, .env,
// config file, defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SEGMENTS"

// Config keys.
const (
	KeyDatabaseDriver   = "database.driver"
	KeyDatabaseURL      = "database.url"
	KeyStorePath        = "store.path"
	KeyCatalogDir       = "catalog.dir"
	KeyForbiddenTables  = "forbidden_tables"
	KeyNestingEnabled   = "nesting.enabled"
	KeyNestingMaxDepth  = "nesting.max_depth"
	KeyPageSize         = "page_size"
	KeyStatementTimeout = "statement_timeout"
	KeySlowThreshold    = "segment_slow_recalculate_threshold"
)

var keys = []string{
	KeyDatabaseDriver,
	KeyDatabaseURL,
	KeyStorePath,
	KeyCatalogDir,
	KeyForbiddenTables,
	KeyNestingEnabled,
	KeyNestingMaxDepth,
	KeyPageSize,
	KeyStatementTimeout,
	KeySlowThreshold,
}

// Config holds the application configuration.
type Config struct {
	DatabaseDriver  string
	DatabaseURL     string
	StorePath       string
	CatalogDir      string // Empty uses the built-in catalog
	ForbiddenTables []string
	NestingEnabled  bool
	NestingMaxDepth int
	PageSize        int

	// StatementTimeout bounds every segment statement; zero disables it.
	StatementTimeout time.Duration

	// SlowRecalculateThreshold marks recalculations worth a warning;
	// zero means no threshold.
	SlowRecalculateThreshold time.Duration
}

// Loader reads configuration through an afero filesystem.
type Loader struct {
	fs   afero.Fs
	home func() (string, error)
}

// NewLoader creates a loader over fsys.
func NewLoader(fsys afero.Fs) *Loader {
	return &Loader{fs: fsys, home: homedir.Dir}
}

// Load reads configuration from the OS filesystem. file overrides the
// config file search when non-empty.
func Load(file string) (*Config, error) {
	return NewLoader(afero.NewOsFs()).Load(file)
}

// Load reads configuration. file overrides the config file search when
// non-empty; a missing explicit file is an error, a missing searched
// file is not.
func (l *Loader) Load(file string) (*Config, error) {
	v := viper.New()
	v.SetFs(l.fs)
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("segments")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := l.home(); err == nil {
			v.AddConfigPath(home)
			v.AddConfigPath(filepath.Join(home, ".config", "segments"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	dotenv, err := l.readDotenv()
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		name := envName(key)
		if _, ok := os.LookupEnv(name); ok {
			continue
		}
		if value, ok := dotenv[name]; ok {
			v.Set(key, value)
		}
	}

	cfg := &Config{
		DatabaseDriver:           v.GetString(KeyDatabaseDriver),
		DatabaseURL:              v.GetString(KeyDatabaseURL),
		StorePath:                v.GetString(KeyStorePath),
		CatalogDir:               v.GetString(KeyCatalogDir),
		ForbiddenTables:          stringList(v.Get(KeyForbiddenTables)),
		NestingEnabled:           v.GetBool(KeyNestingEnabled),
		NestingMaxDepth:          v.GetInt(KeyNestingMaxDepth),
		PageSize:                 v.GetInt(KeyPageSize),
		StatementTimeout:         v.GetDuration(KeyStatementTimeout),
		SlowRecalculateThreshold: SlowThreshold(v.GetString(KeySlowThreshold)),
	}
	if cfg.DatabaseURL == "" {
		if url, ok := os.LookupEnv("DATABASE_URL"); ok {
			cfg.DatabaseURL = url
		} else {
			cfg.DatabaseURL = dotenv["DATABASE_URL"]
		}
	}
	if cfg.PageSize < 0 {
		return nil, fmt.Errorf("%s must not be negative, got %d", KeyPageSize, cfg.PageSize)
	}
	if cfg.NestingMaxDepth <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %d", KeyNestingMaxDepth, cfg.NestingMaxDepth)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyDatabaseDriver, "sqlite3")
	v.SetDefault(KeyStorePath, "segments.db")
	v.SetDefault(KeyNestingEnabled, true)
	v.SetDefault(KeyNestingMaxDepth, 16)
	v.SetDefault(KeyPageSize, 1000)
	v.SetDefault(KeyStatementTimeout, "0s")
}

// readDotenv merges .env and .env.local; .env.local wins.
func (l *Loader) readDotenv() (map[string]string, error) {
	values := make(map[string]string)
	for _, name := range []string{".env", ".env.local"} {
		if _, err := l.fs.Stat(name); err != nil {
			continue
		}
		f, err := l.fs.Open(name)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		parsed, err := godotenv.Parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		for k, val := range parsed {
			values[k] = val
		}
	}
	return values, nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// stringList accepts a YAML list or a comma-separated string.
func stringList(raw any) []string {
	var items []string
	switch v := raw.(type) {
	case string:
		items = strings.Split(v, ",")
	case []string:
		items = v
	case []any:
		for _, item := range v {
			items = append(items, fmt.Sprint(item))
		}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// SlowThreshold parses a threshold in seconds. Non-numeric or negative
// values are logged and mean no threshold.
func SlowThreshold(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		slog.Warn("bad value in configuration", "key", KeySlowThreshold, "value", raw, "error", "threshold must be a number")
		return 0
	}
	if seconds < 0 {
		slog.Warn("bad value in configuration", "key", KeySlowThreshold, "value", raw, "error", "threshold must be a positive number")
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
