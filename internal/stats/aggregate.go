package stats

import (
	"fmt"
	"math"
	"strings"

	"tapmeter/internal/interval"
)

// Kind names the metric a best window was selected for.
type Kind int

const (
	KindBPM Kind = iota // highest tempo
	KindUR              // lowest unstable rate
	KindZX              // balance closest to zero
)

// Kinds lists every Kind in export order.
var Kinds = []Kind{KindBPM, KindUR, KindZX}

func (k Kind) String() string {
	switch k {
	case KindBPM:
		return "BPM"
	case KindUR:
		return "UR"
	case KindZX:
		return "ZX"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind parses a Kind name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BPM":
		return KindBPM, nil
	case "UR":
		return KindUR, nil
	case "ZX":
		return KindZX, nil
	}
	return 0, fmt.Errorf("stats: unknown kind %q", s)
}

// Better reports whether candidate beats current for this kind.
// A candidate with a NaN field never wins.
func (k Kind) Better(candidate, current Stats) bool {
	if candidate.HasNaN() {
		return false
	}
	switch k {
	case KindBPM:
		return candidate.BPM > current.BPM
	case KindUR:
		return candidate.UR < current.UR
	case KindZX:
		return math.Abs(candidate.ZX) < math.Abs(current.ZX)
	}
	return false
}

// Select returns the best entry of results for kind. Ties keep the earliest
// window. ok is false when results is empty or every entry has a NaN field.
func Select(results []Stats, kind Kind) (best Stats, ok bool) {
	for _, s := range results {
		if s.HasNaN() {
			continue
		}
		if !ok || kind.Better(s, best) {
			best, ok = s, true
		}
	}
	return best, ok
}

// ExportWindows is the window catalogue written to the summary export.
var ExportWindows = []int{
	20, 40, 60, 80, 100, 120, 140, 160, 180, 200,
	250, 300, 350, 400, 450, 500,
	600, 700, 800, 900, 1000, 1500, 2000,
}

// MonitorWindows is the window catalogue of the live report.
var MonitorWindows = []int{4, 20, 500, 2000}

// StepFunc picks the scan stride for a window size.
type StepFunc func(window int) int

// ScheduledStep thins out the scan of large windows, where neighbouring
// offsets share almost all of their intervals.
func ScheduledStep(window int) int {
	switch {
	case window >= 2000:
		return 50
	case window >= 500:
		return 10
	default:
		return 1
	}
}

// UnitStep scans every offset.
func UnitStep(int) int { return 1 }

// Best is the winning window of one size for one metric.
type Best struct {
	Window int   `json:"window"`
	Kind   Kind  `json:"kind"`
	Stats  Stats `json:"stats"`
}

// Aggregate scans deltas with each window size and returns the best window
// per metric, in catalogue order then Kinds order. Sizes longer than the
// capture are skipped. A nil step scans every offset.
func Aggregate(deltas []interval.Delta, windows []int, step StepFunc) ([]Best, error) {
	if step == nil {
		step = UnitStep
	}
	var out []Best
	for _, w := range windows {
		if len(deltas) < w {
			continue
		}
		results, err := Scan(deltas, w, step(w))
		if err != nil {
			return nil, fmt.Errorf("stats: window %d: %w", w, err)
		}
		for _, k := range Kinds {
			if s, ok := Select(results, k); ok {
				out = append(out, Best{Window: w, Kind: k, Stats: s})
			}
		}
	}
	return out, nil
}
