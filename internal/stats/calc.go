// Package stats computes tempo, unstable rate and Z/X balance over windows of
// press intervals, scans windows of many sizes across a capture and picks the
// best window for each metric.
package stats

import (
	"errors"
	"fmt"
	"math"

	"tapmeter/internal/interval"
)

// Subdivision is the number of presses per beat (1/16 notes at 4 per beat).
const Subdivision = 4

var (
	// ErrWindowTooShort is returned for windows with fewer than two intervals,
	// where the sample standard deviation is undefined.
	ErrWindowTooShort = errors.New("stats: window needs at least 2 intervals")

	// ErrInvalidStep is returned for a scan stride below one.
	ErrInvalidStep = errors.New("stats: step must be at least 1")

	// ErrSumMismatch is returned when the precomputed window sum is smaller
	// than the Z-key share of the same window.
	ErrSumMismatch = errors.New("stats: precomputed sum is inconsistent with window")
)

// Stats describes one window of intervals.
type Stats struct {
	// UR is the unstable rate: sample standard deviation of the intervals
	// around the window mean, times 10. Lower is steadier.
	UR float64 `json:"ur"`

	// BPM is the tempo derived from the mean interval.
	BPM float64 `json:"bpm"`

	// ZX is the X key's share of the window's time minus 0.5.
	// Zero is a perfect split; the range is [-0.5, 0.5].
	ZX float64 `json:"zx"`
}

// String formats s the way the live report prints it.
func (s Stats) String() string {
	return fmt.Sprintf("(BPM: %.0f, UR: %.0f, ZX: %.0f%%)", s.BPM, s.UR, s.ZX*100)
}

// HasNaN reports whether any field is NaN.
func (s Stats) HasNaN() bool {
	return math.IsNaN(s.UR) || math.IsNaN(s.BPM) || math.IsNaN(s.ZX)
}

// Calc computes Stats for window given the sum of its intervals.
//
// The mean uses truncating integer division. Deviations from that truncated
// mean are exact integers; their squares are accumulated as float64 so very
// long intervals cannot wrap.
func Calc(window []interval.Delta, sum uint64) (Stats, error) {
	n := uint64(len(window))
	if n < 2 {
		return Stats{}, ErrWindowTooShort
	}
	avg := sum / n

	var sqSum float64
	var sumZ uint64
	for _, d := range window {
		diff := float64(absDiff(d.Millis, avg))
		sqSum += diff * diff
		if d.Z {
			sumZ += d.Millis
		}
	}
	if sumZ > sum {
		return Stats{}, ErrSumMismatch
	}

	var zx float64
	if sum > 0 {
		zx = float64(sum-sumZ)/float64(sum) - 0.5
	}

	var bpm float64
	if avg > 0 {
		bpm = 60000.0 / float64(avg) / Subdivision
	}

	return Stats{
		UR:  math.Sqrt(sqSum/float64(n-1)) * 10,
		BPM: bpm,
		ZX:  zx,
	}, nil
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
