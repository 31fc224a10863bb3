// Package config handles configuration loading and validation for the
// nativekeymap tools.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"nativekeymap/internal/logging"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete tool configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	Display DisplayConfig `toml:"display" json:"display" yaml:"display"`
	Keymap  KeymapConfig  `toml:"keymap" json:"keymap" yaml:"keymap"`
	Watch   WatchConfig   `toml:"watch" json:"watch" yaml:"watch"`
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`
	Export  ExportConfig  `toml:"export" json:"export" yaml:"export"`
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// DisplayConfig selects the display server connection.
type DisplayConfig struct {
	// Name is the X11 display, e.g. ":0". Empty means $DISPLAY.
	Name string `toml:"name" json:"name" yaml:"name"`
}

// KeymapConfig controls keymap queries.
type KeymapConfig struct {
	// Table is a YAML key table replacing the built-in one.
	Table string `toml:"table" json:"table" yaml:"table"`
}

// WatchConfig controls layout change detection.
type WatchConfig struct {
	// IntervalMs is the polling interval in milliseconds.
	IntervalMs int `toml:"interval_ms" json:"interval_ms" yaml:"interval_ms"`

	// Localed additionally re-checks when systemd-localed reports a change.
	Localed bool `toml:"localed" json:"localed" yaml:"localed"`

	// Record stores every detected change in the history database.
	Record bool `toml:"record" json:"record" yaml:"record"`
}

// StorageConfig holds snapshot history settings.
type StorageConfig struct {
	// Path is the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// Keep is how many snapshots are retained. Zero keeps all.
	Keep int `toml:"keep" json:"keep" yaml:"keep"`

	// BusyTimeoutMs is the SQLite busy timeout.
	BusyTimeoutMs int `toml:"busy_timeout_ms" json:"busy_timeout_ms" yaml:"busy_timeout_ms"`
}

// ExportConfig controls export documents.
type ExportConfig struct {
	// Indent pretty-prints exported JSON.
	Indent bool `toml:"indent" json:"indent" yaml:"indent"`

	// Validate checks documents against the schema before writing them.
	Validate bool `toml:"validate" json:"validate" yaml:"validate"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stderr", "stdout", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	FilePath   string `toml:"file_path" json:"file_path" yaml:"file_path"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	Compress   bool   `toml:"compress" json:"compress" yaml:"compress"`
}

// DefaultConfig returns a configuration with defaults for this platform.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Watch: WatchConfig{
			IntervalMs: 1000,
			Localed:    true,
		},
		Storage: StorageConfig{
			Path:          filepath.Join(DataDir(), "history.db"),
			Keep:          100,
			BusyTimeoutMs: 5000,
		},
		Export: ExportConfig{
			Indent:   true,
			Validate: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   logging.DefaultLogPath(),
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// DataDir returns the data directory, honoring NATIVEKEYMAP_DATA_DIR.
func DataDir() string {
	if dir := os.Getenv("NATIVEKEYMAP_DATA_DIR"); dir != "" {
		return dir
	}
	return PlatformDataDir()
}

// Load reads configuration from path. A missing file yields the defaults.
// The format follows the extension; anything else is read as TOML.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := decode(path, data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch filepath.Ext(path) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	}
	return nil
}

// Save writes cfg to path in the format implied by its extension.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	switch filepath.Ext(path) {
	case ".json":
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		err = enc.Encode(cfg)
	case ".yaml", ".yml":
		enc := yaml.NewEncoder(f)
		enc.SetIndent(2)
		err = enc.Encode(cfg)
		if err == nil {
			err = enc.Close()
		}
	default:
		err = toml.NewEncoder(f).Encode(cfg)
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return f.Close()
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories for the database and log file.
func (c *Config) EnsureDirectories() error {
	for _, p := range []string{c.Storage.Path, c.Logging.FilePath} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			return fmt.Errorf("create directory for %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies NATIVEKEYMAP_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("NATIVEKEYMAP_DISPLAY"); v != "" {
		c.Display.Name = v
	}
	if v := os.Getenv("NATIVEKEYMAP_KEY_TABLE"); v != "" {
		c.Keymap.Table = v
	}
	if v := os.Getenv("NATIVEKEYMAP_WATCH_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Watch.IntervalMs = ms
		}
	}
	if v := os.Getenv("NATIVEKEYMAP_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("NATIVEKEYMAP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("NATIVEKEYMAP_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("NATIVEKEYMAP_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// WatchInterval returns the polling interval.
func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.Watch.IntervalMs) * time.Millisecond
}

// LoggerConfig converts the logging section for logging.New.
func (c *Config) LoggerConfig() (*logging.Config, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Logging.Format)
	if err != nil {
		return nil, err
	}

	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Format = format
	lc.Output = c.Logging.Output
	lc.FilePath = c.Logging.FilePath
	lc.MaxSizeMB = int64(c.Logging.MaxSizeMB)
	lc.MaxBackups = c.Logging.MaxBackups
	lc.Compress = c.Logging.Compress
	return lc, nil
}
