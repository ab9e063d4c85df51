package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"tapmeter/internal/export"
	"tapmeter/internal/metrics"
	"tapmeter/internal/store"
	"tapmeter/internal/tracking"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

var useColor = isStdoutTTY()

// isStdoutTTY returns true if stdout is connected to a terminal.
func isStdoutTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func paint(color, s string) string {
	if !useColor {
		return s
	}
	return color + s + colorReset
}

func bold(s string) string { return paint(colorBold, s) }
func gray(s string) string { return paint(colorGray, s) }
func green(s string) string { return paint(colorGreen, s) }
func yellow(s string) string { return paint(colorYellow, s) }
func red(s string) string { return paint(colorRed, s) }

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exportJSON is the JSON form of a catalogue entry.
type exportJSON struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name,omitempty"`
	ExportedAt time.Time `json:"exported_at"`
	Intervals  int       `json:"intervals"`
	Summary    string    `json:"summary,omitempty"`
	History    string    `json:"history,omitempty"`
}

func toExportJSON(e *store.Export) exportJSON {
	return exportJSON{
		ID:         e.ID,
		Name:       e.Name,
		ExportedAt: e.ExportedAt,
		Intervals:  e.Intervals,
		Summary:    e.SummaryPath,
		History:    e.HistoryPath,
	}
}

// bestJSON is one summary row.
type bestJSON struct {
	Window int     `json:"window"`
	Kind   string  `json:"kind,omitempty"`
	Export int64   `json:"export_id,omitempty"`
	Name   string  `json:"name,omitempty"`
	BPM    float64 `json:"bpm"`
	UR     float64 `json:"ur"`
	ZX     float64 `json:"zx"`
}

// statusJSON is the live session status plus the interval distribution.
type statusJSON struct {
	tracking.Status
	Intervals histogramJSON `json:"interval_histogram"`
}

type histogramJSON struct {
	Count   uint64       `json:"count"`
	Sum     float64      `json:"sum_ms"`
	Buckets []bucketJSON `json:"buckets"`
}

// bucketJSON is a cumulative bucket; Le is a string so "+Inf" survives JSON.
type bucketJSON struct {
	Le    string `json:"le"`
	Count uint64 `json:"count"`
}

func toHistogramJSON(h *metrics.Histogram) histogramJSON {
	bounds := h.Bounds()
	cum := h.Cumulative()
	out := histogramJSON{
		Count:   h.Count(),
		Sum:     h.Sum(),
		Buckets: make([]bucketJSON, 0, len(cum)),
	}
	for i, n := range cum {
		le := "+Inf"
		if i < len(bounds) {
			le = strconv.FormatFloat(bounds[i], 'g', -1, 64)
		}
		out.Buckets = append(out.Buckets, bucketJSON{Le: le, Count: n})
	}
	return out
}

// printExportResult prints the files of one export.
func printExportResult(w io.Writer, res *export.Result) {
	fmt.Fprintf(w, "%s %d  %d intervals\n", green("✓ exported"), res.ID, res.Intervals)
	if res.Summary != nil {
		fmt.Fprintf(w, "  summary  %s\n", res.Summary.Path)
	} else {
		fmt.Fprintf(w, "  summary  %s\n", gray("skipped (too few intervals)"))
	}
	if res.History != nil {
		fmt.Fprintf(w, "  history  %s\n", res.History.Path)
	}
}

// printSessionSummary prints the end-of-run totals.
func printSessionSummary(w io.Writer, st tracking.Status, last *export.Result) {
	fmt.Fprintf(w, "\n%s %s\n", bold("⚡ session"), st.ID)
	fmt.Fprintf(w, "  Duration:   %s\n", st.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Intervals:  %d\n", st.Recorded)
	fmt.Fprintf(w, "  Resets:     %d\n", st.Resets)
	fmt.Fprintf(w, "  Exports:    %d\n", st.Exports)
	if last != nil {
		printExportResult(w, last)
	} else if st.Exports == 0 {
		fmt.Fprintf(w, "  %s\n", yellow("nothing exported"))
	}
}
