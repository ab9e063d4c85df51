// Package config handles configuration loading, validation, and management for tapmeter.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"tapmeter/internal/export"
	"tapmeter/internal/interval"
	"tapmeter/internal/keystroke"
	"tapmeter/internal/stats"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete tapmeter configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Capture configuration for the key source and interval buffer.
	Capture CaptureConfig `toml:"capture" json:"capture" yaml:"capture"`

	// Report configuration for the periodic live report.
	Report ReportConfig `toml:"report" json:"report" yaml:"report"`

	// Export configuration for the CSV report pair.
	Export ExportConfig `toml:"export" json:"export" yaml:"export"`

	// Storage configuration for the export catalogue.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Metrics configuration for the HTTP status endpoint.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`
}

// CaptureConfig holds key capture configuration.
type CaptureConfig struct {
	// Source is the input source: "terminal", "evdev" or "replay".
	Source string `toml:"source" json:"source" yaml:"source"`

	// Device is the evdev device path. Empty auto-detects a keyboard.
	Device string `toml:"device" json:"device" yaml:"device"`

	// Capacity is the number of intervals kept; older ones are overwritten.
	Capacity int `toml:"capacity" json:"capacity" yaml:"capacity"`

	// ReleaseThresholdMs is the minimum time between releasing a key and
	// pressing it again for the press to count.
	ReleaseThresholdMs int `toml:"release_threshold_ms" json:"release_threshold_ms" yaml:"release_threshold_ms"`

	// CalibrationMs is how long the tick rate is measured at startup.
	CalibrationMs int `toml:"calibration_ms" json:"calibration_ms" yaml:"calibration_ms"`
}

// ReportConfig holds live report configuration.
type ReportConfig struct {
	// IntervalSec is the report period in seconds.
	IntervalSec int `toml:"interval_sec" json:"interval_sec" yaml:"interval_sec"`

	// Windows are the window sizes reported with their best BPM and UR.
	Windows []int `toml:"windows" json:"windows" yaml:"windows"`

	// Recent is the size of the trailing "Cur" window.
	Recent int `toml:"recent" json:"recent" yaml:"recent"`
}

// ExportConfig holds CSV export configuration.
type ExportConfig struct {
	// Dir is the directory the report pairs are written to.
	Dir string `toml:"dir" json:"dir" yaml:"dir"`

	// Windows are the window sizes of the summary report.
	Windows []int `toml:"windows" json:"windows" yaml:"windows"`

	// SummaryMin is the number of intervals needed for a summary.
	SummaryMin int `toml:"summary_min" json:"summary_min" yaml:"summary_min"`

	// HistoryMin is the number of intervals needed for a history.
	HistoryMin int `toml:"history_min" json:"history_min" yaml:"history_min"`

	// HistoryWindow is the trailing window of the history stats.
	HistoryWindow int `toml:"history_window" json:"history_window" yaml:"history_window"`

	// FullResolution scans every window position instead of stepping
	// through large windows.
	FullResolution bool `toml:"full_resolution" json:"full_resolution" yaml:"full_resolution"`
}

// StorageConfig holds export catalogue configuration.
type StorageConfig struct {
	// Enabled indexes each export into the catalogue.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the path to the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log output: "stdout", "stderr", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file (when Output is "file" or "both").
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of old log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is the maximum age of log files in days.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`

	// Compress determines whether to compress rotated logs.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`
}

// MetricsConfig holds the HTTP metrics and health endpoint configuration.
type MetricsConfig struct {
	// Enabled starts the HTTP server during capture.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Listen is the host:port to serve on.
	Listen string `toml:"listen" json:"listen" yaml:"listen"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()

	return &Config{
		Version: Version,
		Capture: CaptureConfig{
			Source:             keystroke.SourceTerminal,
			Capacity:           interval.DefaultCapacity,
			ReleaseThresholdMs: int(keystroke.DefaultReleaseThreshold / time.Millisecond),
			CalibrationMs:      1000,
		},
		Report: ReportConfig{
			IntervalSec: 1,
			Windows:     slices.Clone(stats.MonitorWindows),
			Recent:      20,
		},
		Export: ExportConfig{
			Dir:           export.DefaultDir,
			Windows:       slices.Clone(stats.ExportWindows),
			SummaryMin:    export.DefaultSummaryMin,
			HistoryMin:    export.DefaultHistoryMin,
			HistoryWindow: export.DefaultHistoryWindow,
		},
		Storage: StorageConfig{
			Enabled: true,
			Path:    filepath.Join(dir, "tapmeter.db"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(dir, "logs", "tapmeter.log"),
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9464",
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
// Environment overrides are applied and the result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories the configuration writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Export.Dir}
	if c.Storage.Enabled {
		dirs = append(dirs, filepath.Dir(c.Storage.Path))
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DataDir returns the base tapmeter data directory.
// TAPMETER_DATA_DIR overrides the platform default.
func DataDir() string {
	if envDir := os.Getenv("TAPMETER_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with TAPMETER_.
func (c *Config) ApplyEnvOverrides() {
	// Capture overrides
	if v := os.Getenv("TAPMETER_SOURCE"); v != "" {
		c.Capture.Source = v
	}
	if v := os.Getenv("TAPMETER_DEVICE"); v != "" {
		c.Capture.Device = v
	}

	// Export and storage overrides
	if v := os.Getenv("TAPMETER_EXPORT_DIR"); v != "" {
		c.Export.Dir = v
	}
	if v := os.Getenv("TAPMETER_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}

	// Logging overrides
	if v := os.Getenv("TAPMETER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv("TAPMETER_METRICS_LISTEN"); v != "" {
		c.Metrics.Listen = v
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Report.Windows = slices.Clone(c.Report.Windows)
	clone.Export.Windows = slices.Clone(c.Export.Windows)
	return &clone
}

// ReportInterval returns the live report period.
func (c *Config) ReportInterval() time.Duration {
	return time.Duration(c.Report.IntervalSec) * time.Second
}

// ReleaseThreshold returns the anti-chatter threshold.
func (c *Config) ReleaseThreshold() time.Duration {
	return time.Duration(c.Capture.ReleaseThresholdMs) * time.Millisecond
}

// CalibrationDuration returns how long to measure the tick rate.
func (c *Config) CalibrationDuration() time.Duration {
	return time.Duration(c.Capture.CalibrationMs) * time.Millisecond
}

// ExportStep returns the window step schedule of the summary report.
func (c *Config) ExportStep() stats.StepFunc {
	if c.Export.FullResolution {
		return stats.UnitStep
	}
	return stats.ScheduledStep
}
