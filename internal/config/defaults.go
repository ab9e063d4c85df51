package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// PlatformDataDir returns the platform-specific data directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/tapmeter/
//   - Linux:   ~/.local/share/tapmeter/
//   - Windows: %APPDATA%\tapmeter\
//
// Falls back to ~/.tapmeter if platform detection fails.
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		return macOSDir()
	case "linux":
		return xdgDir("XDG_DATA_HOME", ".local", "share")
	case "windows":
		return windowsDir()
	default:
		return fallbackDataDir()
	}
}

// PlatformConfigDir returns the platform-specific config directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/tapmeter/
//   - Linux:   ~/.config/tapmeter/
//   - Windows: %APPDATA%\tapmeter\
func PlatformConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		return macOSDir() // macOS uses same dir for config and data
	case "linux":
		return xdgDir("XDG_CONFIG_HOME", ".config")
	case "windows":
		return windowsDir()
	default:
		return fallbackDataDir()
	}
}

func macOSDir() string {
	return filepath.Join(homeDir(), "Library", "Application Support", "tapmeter")
}

// xdgDir follows the XDG Base Directory layout: $env/tapmeter, or the
// fallback path under the home directory.
func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, "tapmeter")
	}
	parts := append([]string{homeDir()}, fallback...)
	return filepath.Join(append(parts, "tapmeter")...)
}

func windowsDir() string {
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "tapmeter")
	}
	return filepath.Join(homeDir(), "AppData", "Roaming", "tapmeter")
}

func fallbackDataDir() string {
	return filepath.Join(homeDir(), ".tapmeter")
}

func homeDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return home
}

// SupportedConfigFormats returns the list of supported config file formats.
func SupportedConfigFormats() []string {
	return []string{
		"toml",
		"json",
		"yaml",
		"yml",
	}
}

// FindConfigFile searches for a config file in standard locations.
// Returns the path to the first found config file, or empty string if none found.
func FindConfigFile() string {
	// Search order:
	// 1. Current directory
	// 2. Config directory
	searchDirs := []string{
		".",
		PlatformConfigDir(),
	}

	for _, dir := range searchDirs {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "tapmeter."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
			path = filepath.Join(dir, "config."+ext)
			if dir != "." {
				if _, err := os.Stat(path); err == nil {
					return path
				}
			}
		}
	}

	return ""
}
