// Package store provides the SQLite catalogue of exported reports.
package store

import (
	"time"

	"tapmeter/internal/export"
	"tapmeter/internal/stats"
)

// Export is one indexed report pair.
type Export struct {
	ID            int64
	ExportedAt    time.Time
	Intervals     int
	SummaryPath   string // empty when the summary was skipped
	HistoryPath   string // empty when the history was skipped
	SummaryDigest []byte
	HistoryDigest []byte
	Name          string
}

// DisplayName returns the session name, or the id when unnamed.
func (e *Export) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return "session " + formatID(e.ID)
}

// BestRow is one summary row of an export.
type BestRow struct {
	ExportID int64
	Window   int
	Kind     stats.Kind
	Stats    stats.Stats
}

// PersonalBest is the best row for a window size across all exports.
type PersonalBest struct {
	Window   int
	ExportID int64
	Name     string
	Stats    stats.Stats
}

// FromResult converts a freshly written export into a catalogue entry.
func FromResult(res *export.Result) *Export {
	e := &Export{
		ID:         res.ID,
		ExportedAt: res.ExportedAt,
		Intervals:  res.Intervals,
	}
	if res.Summary != nil {
		e.SummaryPath = res.Summary.Path
		e.SummaryDigest = append([]byte(nil), res.Summary.Digest[:]...)
	}
	if res.History != nil {
		e.HistoryPath = res.History.Path
		e.HistoryDigest = append([]byte(nil), res.History.Digest[:]...)
	}
	return e
}
