package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"tapmeter/internal/keystroke"
)

// ErrInvalidConfig matches any ValidationErrors with errors.Is.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Is reports whether target is ErrInvalidConfig.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Fields returns the names of the offending fields.
func (e ValidationErrors) Fields() []string {
	fields := make([]string, len(e))
	for i, err := range e {
		fields[i] = err.Field
	}
	return fields
}

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateCapture(&c.Capture)...)
	errs = append(errs, validateReport(&c.Report)...)
	errs = append(errs, validateExport(&c.Export)...)
	errs = append(errs, validateStorage(&c.Storage)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateMetrics(&c.Metrics)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateCapture(c *CaptureConfig) ValidationErrors {
	var errs ValidationErrors

	switch c.Source {
	case keystroke.SourceTerminal, keystroke.SourceEvdev, keystroke.SourceReplay:
	default:
		errs = append(errs, ValidationError{
			Field:   "capture.source",
			Message: fmt.Sprintf("invalid source: %s (valid: terminal, evdev, replay)", c.Source),
		})
	}

	if c.Capacity < 1 {
		errs = append(errs, ValidationError{
			Field:   "capture.capacity",
			Message: "capacity must be at least 1",
		})
	}
	if c.ReleaseThresholdMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "capture.release_threshold_ms",
			Message: "release threshold cannot be negative",
		})
	}
	if c.CalibrationMs < 1 {
		errs = append(errs, ValidationError{
			Field:   "capture.calibration_ms",
			Message: "calibration must last at least 1 ms",
		})
	}
	return errs
}

func validateReport(r *ReportConfig) ValidationErrors {
	var errs ValidationErrors

	if r.IntervalSec < 1 {
		errs = append(errs, ValidationError{
			Field:   "report.interval_sec",
			Message: "report interval must be at least 1 second",
		})
	}
	errs = append(errs, validateWindows("report.windows", r.Windows, true)...)
	if r.Recent < 2 {
		errs = append(errs, ValidationError{
			Field:   "report.recent",
			Message: "recent window must hold at least 2 intervals",
		})
	}
	return errs
}

func validateExport(e *ExportConfig) ValidationErrors {
	var errs ValidationErrors

	if e.Dir == "" {
		errs = append(errs, *RequiredFieldError("export.dir"))
	}
	errs = append(errs, validateWindows("export.windows", e.Windows, false)...)
	if e.SummaryMin < 2 {
		errs = append(errs, ValidationError{
			Field:   "export.summary_min",
			Message: "summary needs at least 2 intervals",
		})
	}
	if e.HistoryWindow < 2 {
		errs = append(errs, ValidationError{
			Field:   "export.history_window",
			Message: "history window must hold at least 2 intervals",
		})
	}
	if e.HistoryMin < 1 {
		errs = append(errs, ValidationError{
			Field:   "export.history_min",
			Message: "history needs at least 1 interval",
		})
	}
	return errs
}

// validateWindows checks that every window holds at least two intervals.
func validateWindows(field string, windows []int, allowEmpty bool) ValidationErrors {
	var errs ValidationErrors
	if len(windows) == 0 && !allowEmpty {
		errs = append(errs, ValidationError{Field: field, Message: "at least one window size is required"})
	}
	for i, w := range windows {
		if w < 2 {
			errs = append(errs, ValidationError{
				Field:   field + "[" + strconv.Itoa(i) + "]",
				Message: fmt.Sprintf("window size %d is below 2", w),
			})
		}
	}
	return errs
}

func validateStorage(s *StorageConfig) ValidationErrors {
	var errs ValidationErrors
	if s.Enabled && s.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "storage.path",
			Message: "database path is required when storage is enabled",
		})
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
		// Valid formats
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}

	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}

	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}

func validateMetrics(m *MetricsConfig) ValidationErrors {
	var errs ValidationErrors
	if !m.Enabled {
		return errs
	}
	if _, port, err := net.SplitHostPort(m.Listen); err != nil {
		errs = append(errs, ValidationError{
			Field:   "metrics.listen",
			Message: fmt.Sprintf("invalid listen address %q: %v", m.Listen, err),
		})
	} else if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		errs = append(errs, *RangeError("metrics.listen port", 0, 65535))
	}
	return errs
}

// RequiredFieldError creates a validation error for a missing required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}
