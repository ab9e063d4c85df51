package stats

import (
	"fmt"
	"strings"

	"tapmeter/internal/interval"
)

// WindowReport holds the fastest and steadiest window of one size.
type WindowReport struct {
	Window int
	BPM    Stats
	UR     Stats
}

// Report is the periodic live summary of a capture.
type Report struct {
	Count   int
	Total   Stats
	Windows []WindowReport

	// Recent covers the last RecentWindow intervals; nil until that many
	// have been captured.
	Recent       *Stats
	RecentWindow int
}

// Summarize builds the live report: the whole capture, the best tempo and
// best unstable rate for each monitored window size, and the most recent
// window. It returns ErrWindowTooShort below two intervals.
func Summarize(deltas []interval.Delta, windows []int, step StepFunc, recent int) (Report, error) {
	total, err := Calc(deltas, interval.Sum(deltas))
	if err != nil {
		return Report{}, err
	}
	if step == nil {
		step = UnitStep
	}

	r := Report{Count: len(deltas), Total: total, RecentWindow: recent}
	for _, w := range windows {
		if len(deltas) < w {
			continue
		}
		results, err := Scan(deltas, w, step(w))
		if err != nil {
			return Report{}, fmt.Errorf("stats: window %d: %w", w, err)
		}
		bpm, okB := Select(results, KindBPM)
		ur, okU := Select(results, KindUR)
		if !okB || !okU {
			continue
		}
		r.Windows = append(r.Windows, WindowReport{Window: w, BPM: bpm, UR: ur})
	}

	if recent >= 2 && len(deltas) >= recent {
		tail := deltas[len(deltas)-recent:]
		cur, err := Calc(tail, interval.Sum(tail))
		if err != nil {
			return Report{}, err
		}
		r.Recent = &cur
	}
	return r, nil
}

// Lines renders the report one line per entry.
func (r Report) Lines() []string {
	lines := make([]string, 0, len(r.Windows)+2)
	lines = append(lines, fmt.Sprintf("Total %d: %s", r.Count, r.Total))
	for _, w := range r.Windows {
		lines = append(lines, fmt.Sprintf("%d: Best BPM %s, Best UR %s", w.Window, w.BPM, w.UR))
	}
	if r.Recent != nil {
		lines = append(lines, fmt.Sprintf("Cur %d: %s", r.RecentWindow, *r.Recent))
	}
	return lines
}

func (r Report) String() string {
	return strings.Join(r.Lines(), "\n")
}

// TrailingRow is one press of the history export. Stats is nil until the
// trailing window is full.
type TrailingRow struct {
	Press  int // 1-based
	Millis uint64
	Stats  *Stats
}

// Trailing pairs every interval with the stats of the n intervals ending at
// it. It reuses Scan with a unit step: row i (0-based) takes scan result
// i-(n-1).
func Trailing(deltas []interval.Delta, n int) ([]TrailingRow, error) {
	results, err := Scan(deltas, n, 1)
	if err != nil {
		return nil, err
	}
	rows := make([]TrailingRow, len(deltas))
	for i, d := range deltas {
		rows[i] = TrailingRow{Press: i + 1, Millis: d.Millis}
		if j := i - (n - 1); j >= 0 {
			s := results[j]
			rows[i].Stats = &s
		}
	}
	return rows, nil
}
