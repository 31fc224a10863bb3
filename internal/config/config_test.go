package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, Version, cfg.Version)
	assert.Equal(t, time.Second, cfg.WatchInterval())
	assert.True(t, cfg.Export.Validate)
	assert.Contains(t, cfg.Storage.Path, "nativekeymap")
	assert.True(t, strings.HasSuffix(cfg.Storage.Path, "history.db"))
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	assert.True(t, strings.HasSuffix(path, "config.toml"))
	assert.Contains(t, path, "nativekeymap")
}

func TestDataDirOverride(t *testing.T) {
	t.Setenv("NATIVEKEYMAP_DATA_DIR", "/srv/keymaps")
	assert.Equal(t, "/srv/keymaps", DataDir())
	assert.Equal(t, filepath.Join("/srv/keymaps", "history.db"), DefaultConfig().Storage.Path)
}

func TestLoadNonexistent(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Watch, cfg.Watch)
}

func TestLoadFormats(t *testing.T) {
	files := map[string]string{
		"config.toml": `
[display]
name = ":1"

[watch]
interval_ms = 250
record = true

[logging]
level = "debug"
`,
		"config.json": `{"display": {"name": ":1"}, "watch": {"interval_ms": 250, "record": true}, "logging": {"level": "debug"}}`,
		"config.yaml": `
display:
  name: ":1"
watch:
  interval_ms: 250
  record: true
logging:
  level: debug
`,
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, ":1", cfg.Display.Name)
			assert.Equal(t, 250*time.Millisecond, cfg.WatchInterval())
			assert.True(t, cfg.Watch.Record)
			assert.True(t, cfg.Watch.Localed, "unset fields keep defaults")
			assert.Equal(t, "debug", cfg.Logging.Level)
			require.NoError(t, cfg.Validate())
		})
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[watch\ninterval_ms = "), 0o600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "decode TOML")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NATIVEKEYMAP_DISPLAY", ":7")
	t.Setenv("NATIVEKEYMAP_DB_PATH", "/tmp/h.db")
	t.Setenv("NATIVEKEYMAP_LOG_LEVEL", "warn")
	t.Setenv("NATIVEKEYMAP_WATCH_INTERVAL_MS", "500")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.toml"))
	require.NoError(t, err)
	assert.Equal(t, ":7", cfg.Display.Name)
	assert.Equal(t, "/tmp/h.db", cfg.Storage.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 500, cfg.Watch.IntervalMs)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"version", func(c *Config) { c.Version = 9 }, "version"},
		{"interval", func(c *Config) { c.Watch.IntervalMs = 10 }, "watch.interval_ms"},
		{"storage path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"keep", func(c *Config) { c.Storage.Keep = -1 }, "storage.keep"},
		{"level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"output", func(c *Config) { c.Logging.Output = "syslog" }, "logging.output"},
		{"file path", func(c *Config) { c.Logging.Output = "file"; c.Logging.FilePath = "" }, "logging.file_path"},
		{"max size", func(c *Config) { c.Logging.MaxSizeMB = 0 }, "logging.max_size_mb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			var verrs ValidationErrors
			require.True(t, errors.As(cfg.Validate(), &verrs))
			require.True(t, verrs.HasErrors())
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestValidateMissingTableIsWarning(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Keymap.Table = filepath.Join(t.TempDir(), "keys.yaml")

	var verrs ValidationErrors
	require.True(t, errors.As(cfg.Validate(), &verrs))
	assert.False(t, verrs.HasErrors())
	assert.Len(t, verrs.Warnings(), 1)
}

func TestSaveRoundTrip(t *testing.T) {
	for _, ext := range SupportedConfigFormats() {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sub", "config."+ext)
			want := DefaultConfig()
			want.Display.Name = ":3"
			want.Storage.Keep = 7

			require.NoError(t, Save(want, path))
			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestLoggerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "json"

	lc, err := cfg.LoggerConfig()
	require.NoError(t, err)
	assert.Equal(t, int64(10), lc.MaxSizeMB)
	assert.Equal(t, "stderr", lc.Output)

	cfg.Logging.Level = "verbose"
	_, err = cfg.LoggerConfig()
	assert.Error(t, err)
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Storage.Path = filepath.Join(dir, "data", "history.db")
	cfg.Logging.FilePath = filepath.Join(dir, "logs", "app.log")

	require.NoError(t, cfg.EnsureDirectories())
	assert.DirExists(t, filepath.Join(dir, "data"))
	assert.DirExists(t, filepath.Join(dir, "logs"))
}
