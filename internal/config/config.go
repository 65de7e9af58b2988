// Package config loads flowlens configuration from defaults, the user
// settings file, and environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rendis/flowlens/pkg/schema"
)

// Config holds all flowlens configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	DBPath         string   `json:"db_path"`
	LogLevel       string   `json:"log_level"`
	Modules        []string `json:"modules"`
	IncludeSpans   bool     `json:"include_spans"`
	AssumeImported bool     `json:"assume_imported"`
	Engine         string   `json:"engine"`
	WatchSchedule  string   `json:"watch_schedule"`
	HistoryLimit   int      `json:"history_limit"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath:        filepath.Join(Dir(), "flowlens.db"),
		LogLevel:      "info",
		Modules:       []string{"flowscript", "@flowscript/core"},
		Engine:        "cel",
		WatchSchedule: "@every 1m",
		HistoryLimit:  100,
	}
}

// Dir returns the flowlens configuration directory (~/.flowlens).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowlens"
	}
	return filepath.Join(home, ".flowlens")
}

// SettingsPath returns the path of the user settings file.
func SettingsPath() string {
	return filepath.Join(Dir(), "settings.json")
}

// Load builds the effective configuration. A malformed or schema-invalid
// settings file is a CONFIG_ERROR; a missing one is not.
func Load() (Config, error) {
	cfg := Default()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(SettingsPath()); err == nil {
		if err := validateSettings(data); err != nil {
			return cfg, err
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, schema.NewError(schema.ErrCodeConfig, "malformed settings file").WithCause(err)
		}
	}

	// Layer 3: env vars override.
	if v := os.Getenv("FLOWLENS_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("FLOWLENS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FLOWLENS_MODULES"); v != "" {
		cfg.Modules = splitList(v)
	}
	if v := os.Getenv("FLOWLENS_INCLUDE_SPANS"); v != "" {
		cfg.IncludeSpans = v == "true" || v == "1"
	}
	if v := os.Getenv("FLOWLENS_ASSUME_IMPORTED"); v != "" {
		cfg.AssumeImported = v == "true" || v == "1"
	}
	if v := os.Getenv("FLOWLENS_ENGINE"); v != "" {
		cfg.Engine = v
	}
	if v := os.Getenv("FLOWLENS_WATCH_SCHEDULE"); v != "" {
		cfg.WatchSchedule = v
	}
	if v := os.Getenv("FLOWLENS_HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HistoryLimit = n
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints the settings schema cannot express.
func (c Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return schema.NewErrorf(schema.ErrCodeConfig, "unknown log level %q", c.LogLevel)
	}
	switch c.Engine {
	case "cel", "expr", "jq":
	default:
		return schema.NewErrorf(schema.ErrCodeConfig, "unknown query engine %q", c.Engine)
	}
	if len(c.Modules) == 0 {
		return schema.NewError(schema.ErrCodeConfig, "at least one module name is required")
	}
	if c.HistoryLimit < 0 {
		return schema.NewErrorf(schema.ErrCodeConfig, "history limit must be non-negative, got %d", c.HistoryLimit)
	}
	return nil
}

// DSN returns the libSQL connection string for the configured database path.
func (c Config) DSN() string {
	if strings.HasPrefix(c.DBPath, "file:") || strings.HasPrefix(c.DBPath, "libsql:") {
		return c.DBPath
	}
	return fmt.Sprintf("file:%s", c.DBPath)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
