package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowlens/pkg/schema"
)

// isolateEnv points HOME at a temp dir and clears every FLOWLENS_* override.
func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"FLOWLENS_DB_PATH", "FLOWLENS_LOG_LEVEL", "FLOWLENS_MODULES",
		"FLOWLENS_INCLUDE_SPANS", "FLOWLENS_ASSUME_IMPORTED",
		"FLOWLENS_ENGINE", "FLOWLENS_WATCH_SCHEDULE", "FLOWLENS_HISTORY_LIMIT",
	} {
		t.Setenv(key, "")
	}
	return home
}

func writeSettings(t *testing.T, home, content string) {
	t.Helper()
	dir := filepath.Join(home, ".flowlens")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), []byte(content), 0o644))
}

func configErrCode(t *testing.T, err error) string {
	t.Helper()
	var ferr *schema.FlowlensError
	require.True(t, errors.As(err, &ferr))
	return ferr.Code
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"flowscript", "@flowscript/core"}, cfg.Modules)
	assert.Equal(t, "cel", cfg.Engine)
	assert.Equal(t, "@every 1m", cfg.WatchSchedule)
	assert.Equal(t, 100, cfg.HistoryLimit)
	assert.NoError(t, cfg.Validate())
}

func TestLoadDefaultsWithoutSettingsFile(t *testing.T) {
	home := isolateEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".flowlens", "flowlens.db"), cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadSettingsFile(t *testing.T) {
	home := isolateEnv(t)
	writeSettings(t, home, `{"log_level": "debug", "engine": "jq", "history_limit": 5}`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "jq", cfg.Engine)
	assert.Equal(t, 5, cfg.HistoryLimit)
	// Untouched fields keep their defaults.
	assert.Equal(t, []string{"flowscript", "@flowscript/core"}, cfg.Modules)
}

func TestLoadMalformedSettings(t *testing.T) {
	home := isolateEnv(t)
	writeSettings(t, home, `{not json`)

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConfig, configErrCode(t, err))
}

func TestLoadSchemaViolations(t *testing.T) {
	home := isolateEnv(t)
	writeSettings(t, home, `{"log_level": "verbose", "surprise": true}`)

	_, err := Load()
	require.Error(t, err)

	var ferr *schema.FlowlensError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, schema.ErrCodeConfig, ferr.Code)
	violations, ok := ferr.Details["violations"].([]string)
	require.True(t, ok)
	assert.NotEmpty(t, violations)
}

func TestLoadEnvOverridesSettings(t *testing.T) {
	home := isolateEnv(t)
	writeSettings(t, home, `{"engine": "jq"}`)

	t.Setenv("FLOWLENS_ENGINE", "expr")
	t.Setenv("FLOWLENS_MODULES", " flowscript , @acme/flows ,")
	t.Setenv("FLOWLENS_INCLUDE_SPANS", "1")
	t.Setenv("FLOWLENS_HISTORY_LIMIT", "7")
	t.Setenv("FLOWLENS_DB_PATH", "/tmp/custom.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "expr", cfg.Engine)
	assert.Equal(t, []string{"flowscript", "@acme/flows"}, cfg.Modules)
	assert.True(t, cfg.IncludeSpans)
	assert.Equal(t, 7, cfg.HistoryLimit)
	assert.Equal(t, "/tmp/custom.db", cfg.DBPath)
}

func TestLoadInvalidEnvValueFailsValidation(t *testing.T) {
	isolateEnv(t)
	t.Setenv("FLOWLENS_ENGINE", "lua")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConfig, configErrCode(t, err))
}

func TestValidate(t *testing.T) {
	base := Default()

	bad := base
	bad.LogLevel = "verbose"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Engine = "lua"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Modules = nil
	assert.Error(t, bad.Validate())

	bad = base
	bad.HistoryLimit = -1
	assert.Error(t, bad.Validate())
}

func TestDSN(t *testing.T) {
	cfg := Config{DBPath: "/data/flowlens.db"}
	assert.Equal(t, "file:/data/flowlens.db", cfg.DSN())

	cfg.DBPath = "file:/data/flowlens.db"
	assert.Equal(t, "file:/data/flowlens.db", cfg.DSN())

	cfg.DBPath = "libsql://remote/db"
	assert.Equal(t, "libsql://remote/db", cfg.DSN())
}

func TestValidateSettingsSchema(t *testing.T) {
	assert.NoError(t, validateSettings([]byte(`{"engine": "cel"}`)))

	err := validateSettings([]byte(`{"engine": "lua"}`))
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConfig, configErrCode(t, err))

	err = validateSettings([]byte(`{"history_limit": -1}`))
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConfig, configErrCode(t, err))
}
