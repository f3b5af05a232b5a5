package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/apiaudit/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
entries:
  - name: web
    roots: [src, lib]
  - name: admin
    roots: [admin]
plugins: [vue, report, policy]
skip_tests: true
report:
  format: json
  max_libs: 5
policy:
  deny: [moment, lodash/fp]
  min_modules: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []model.Entry{
		{Name: "web", Roots: []string{"src", "lib"}},
		{Name: "admin", Roots: []string{"admin"}},
	}, cfg.Entries)
	assert.Equal(t, []string{"vue", "report", "policy"}, cfg.Plugins)
	assert.True(t, cfg.SkipTests)
	assert.Equal(t, "json", cfg.Report.Format)
	assert.Equal(t, 5, cfg.Report.MaxLibs)
	assert.Equal(t, []string{"moment", "lodash/fp"}, cfg.Policy.Deny)
	assert.Equal(t, 2, cfg.Policy.MinModules)

	// Unset keys keep their defaults.
	assert.Equal(t, int64(DefaultMaxFileSize), cfg.MaxFileSize)
	assert.Equal(t, "apiaudit.db", cfg.SQLite.Path)
	assert.Equal(t, LogConfig{Level: "info", Format: "auto"}, cfg.Log)
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "report:\n  format: json\n")
	t.Setenv("APIAUDIT_REPORT_FORMAT", "yaml")
	t.Setenv("APIAUDIT_MAX_FILE_SIZE", "42")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "yaml", cfg.Report.Format)
	assert.Equal(t, int64(42), cfg.MaxFileSize)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "reading config")
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	want := Default()
	assert.Equal(t, want.Plugins, cfg.Plugins)
	assert.Equal(t, want.Report, cfg.Report)
	assert.Equal(t, want.Metrics, cfg.Metrics)
	assert.Empty(t, cfg.Entries)
}

func TestLoadMalformed(t *testing.T) {
	path := writeConfig(t, "entries: [\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Entries = []model.Entry{{Name: "app", Roots: []string{"."}}}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no entries", mutate: func(c *Config) { c.Entries = nil }, wantErr: ErrNoEntries.Error()},
		{name: "unnamed entry", mutate: func(c *Config) { c.Entries[0].Name = "" }, wantErr: "entries[0].name: missing value"},
		{name: "no roots", mutate: func(c *Config) { c.Entries[0].Roots = nil }, wantErr: "entries[0].roots: needs at least 1"},
		{name: "blank root", mutate: func(c *Config) { c.Entries[0].Roots = []string{""} }, wantErr: "entries[0].roots[0]: missing value"},
		{name: "unknown plugin", mutate: func(c *Config) { c.Plugins = []string{"vue", "graphql"} }, wantErr: `plugins[1]: unknown plugin "graphql"`},
		{name: "unknown format", mutate: func(c *Config) { c.Report.Format = "xml" }, wantErr: `report.format: unknown value "xml"`},
		{name: "negative size", mutate: func(c *Config) { c.MaxFileSize = -1 }, wantErr: "max_file_size: -1 is negative"},
		{name: "negative max libs", mutate: func(c *Config) { c.Report.MaxLibs = -3 }, wantErr: "report.max_libs"},
		{name: "blank deny", mutate: func(c *Config) { c.Policy.Deny = []string{"moment", ""} }, wantErr: "policy.deny[1]: missing value"},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
		{name: "empty log format", mutate: func(c *Config) { c.Log.Format = "" }},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLogLevel(t *testing.T) {
	cfg := Default()
	for in, want := range map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		cfg.Log.Level = in
		got, err := cfg.LogLevel()
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestEveryPluginPassesValidation(t *testing.T) {
	cfg := Default()
	cfg.Entries = []model.Entry{{Name: "app", Roots: []string{"."}}}
	cfg.Plugins = Plugins
	assert.NoError(t, cfg.Validate())
}

func TestEnabled(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.Enabled("vue"))
	assert.False(t, cfg.Enabled("sqlite"))
}
