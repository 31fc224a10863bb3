package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "nativekeymap"

// PlatformDataDir returns the directory holding the history database.
//
//   - macOS:   ~/Library/Application Support/nativekeymap/
//   - Linux:   $XDG_DATA_HOME/nativekeymap/ (~/.local/share/nativekeymap/)
//   - Windows: %LOCALAPPDATA%\nativekeymap\
func PlatformDataDir() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName)
	case "windows":
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, appName)
		}
		return filepath.Join(home, "AppData", "Local", appName)
	default:
		if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
			return filepath.Join(dir, appName)
		}
		return filepath.Join(home, ".local", "share", appName)
	}
}

// PlatformConfigDir returns the directory searched for config files.
//
//   - macOS:   ~/Library/Application Support/nativekeymap/
//   - Linux:   $XDG_CONFIG_HOME/nativekeymap/ (~/.config/nativekeymap/)
//   - Windows: %APPDATA%\nativekeymap\
func PlatformConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		return PlatformDataDir()
	case "windows":
		if dir := os.Getenv("APPDATA"); dir != "" {
			return filepath.Join(dir, appName)
		}
		return PlatformDataDir()
	default:
		if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
			return filepath.Join(dir, appName)
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", appName)
	}
}

// SupportedConfigFormats lists the config file extensions, in search order.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// FindConfigFile returns the first config file found in the working
// directory or the platform config directory, or "" if there is none.
func FindConfigFile() string {
	for _, dir := range []string{".", PlatformConfigDir()} {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
