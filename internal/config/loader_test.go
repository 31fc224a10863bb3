package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoaderRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[watch]\ninterval_ms = 1\n"), 0o600))

	_, err := NewLoader(path, quietLogger()).Load()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nk", "config.toml")

	cfg, created, err := LoadOrCreate(path, quietLogger())
	require.NoError(t, err)
	assert.True(t, created)
	assert.FileExists(t, path)
	assert.Equal(t, DefaultConfig().Watch, cfg.Watch)

	_, created, err = LoadOrCreate(path, quietLogger())
	require.NoError(t, err)
	assert.False(t, created)
}

func TestLoaderWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[watch]\ninterval_ms = 1000\n"), 0o600))

	l := NewLoader(path, quietLogger())
	_, err := l.Load()
	require.NoError(t, err)

	changed := make(chan *Config, 8)
	l.OnChange(func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})
	require.NoError(t, l.Watch())
	defer l.Close()

	require.NoError(t, os.WriteFile(path, []byte("[watch]\ninterval_ms = 200\n"), 0o600))

	// A reload may observe the truncated file first.
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c := <-changed:
			if c.Watch.IntervalMs != 200 {
				continue
			}
			assert.Equal(t, 200, l.Config().Watch.IntervalMs)
			return
		case <-timeout:
			t.Fatal("config was not reloaded")
		}
	}
}

func TestLoaderWatchReportsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o600))

	l := NewLoader(path, quietLogger())
	_, err := l.Load()
	require.NoError(t, err)
	require.NoError(t, l.Watch())
	defer l.Close()

	require.NoError(t, os.WriteFile(path, []byte("[logging]\nlevel = \"loud\"\n"), 0o600))

	select {
	case err := <-l.Errors():
		assert.ErrorIs(t, err, ErrInvalidConfig)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload error reported")
	}
	assert.Equal(t, "info", l.Config().Logging.Level)
}
