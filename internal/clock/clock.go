// Package clock provides the monotonic tick source used to timestamp key
// presses and the one-shot calibration of ticks per second.
//
// Ticks are opaque: only differences between two readings of the same Source
// are meaningful. A Rate converts them to wall time and is measured once at
// startup by timing a real sleep against the tick counter.
package clock

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUncalibrated is returned when a zero tick rate is used for conversion.
var ErrUncalibrated = errors.New("clock: tick rate not calibrated")

// DefaultCalibration is the sleep used by Calibrate when none is configured.
const DefaultCalibration = time.Second

// Rate is a calibrated number of ticks per second.
type Rate uint64

// Valid reports whether the rate can be used for conversions.
func (r Rate) Valid() bool {
	return r > 0
}

// Validate returns ErrUncalibrated for a zero rate.
func (r Rate) Validate() error {
	if !r.Valid() {
		return ErrUncalibrated
	}
	return nil
}

// String formats the rate as a frequency.
func (r Rate) String() string {
	return fmt.Sprintf("%.3f GHz", float64(r)/1e9)
}

// Source produces monotonic ticks.
type Source interface {
	Now() uint64
}

// SourceFunc adapts a function to Source.
type SourceFunc func() uint64

// Now calls f.
func (f SourceFunc) Now() uint64 {
	return f()
}

// System is the process-wide monotonic clock.
var System Source = SourceFunc(Now)

// Now returns the current monotonic tick count of the system clock.
func Now() uint64 {
	return now()
}

// Calibrate measures how many ticks of src elapse across a real sleep of d.
// The result is scaled to one second, so any d yields ticks per second.
func Calibrate(ctx context.Context, src Source, d time.Duration) (Rate, error) {
	if d <= 0 {
		d = DefaultCalibration
	}
	if src == nil {
		src = System
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	start := src.Now()
	wallStart := time.Now()
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("calibrate: %w", ctx.Err())
	case <-timer.C:
	}
	end := src.Now()
	elapsed := time.Since(wallStart)

	if end <= start {
		return 0, fmt.Errorf("calibrate: tick source did not advance: %w", ErrUncalibrated)
	}
	// Scale by the measured wall time rather than d: timers fire late, never early.
	if elapsed < d {
		elapsed = d
	}
	rate := Rate(float64(end-start) * float64(time.Second) / float64(elapsed))
	if !rate.Valid() {
		return 0, ErrUncalibrated
	}
	return rate, nil
}
