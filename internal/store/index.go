package store

import (
	"fmt"
	"os"
	"time"

	"tapmeter/internal/export"
	"tapmeter/internal/stats"
)

// ReadPair builds a catalogue entry from report files already on disk.
// Either path may be empty when that report was skipped. The export time is
// taken from the id, which is the Unix time of the export.
func ReadPair(id int64, summaryPath, historyPath string) (*Export, []stats.Best, error) {
	if summaryPath == "" && historyPath == "" {
		return nil, nil, fmt.Errorf("export %d: no report files", id)
	}

	e := &Export{
		ID:          id,
		ExportedAt:  time.Unix(id, 0),
		SummaryPath: summaryPath,
		HistoryPath: historyPath,
	}

	var rows []stats.Best
	if summaryPath != "" {
		var err error
		if rows, err = export.ReadSummaryFile(summaryPath); err != nil {
			return nil, nil, err
		}
		sum, err := export.Digest(summaryPath)
		if err != nil {
			return nil, nil, fmt.Errorf("digest summary: %w", err)
		}
		e.SummaryDigest = sum[:]
	}

	if historyPath != "" {
		f, err := os.Open(historyPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open history: %w", err)
		}
		history, err := export.ReadHistory(f)
		f.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("read history %s: %w", historyPath, err)
		}
		e.Intervals = len(history)

		sum, err := export.Digest(historyPath)
		if err != nil {
			return nil, nil, fmt.Errorf("digest history: %w", err)
		}
		e.HistoryDigest = sum[:]
	}

	return e, rows, nil
}

// IndexPair reads a report pair from disk and upserts it, keeping any name
// already given to the session.
func (s *Store) IndexPair(id int64, summaryPath, historyPath string) (*Export, error) {
	e, rows, err := ReadPair(id, summaryPath, historyPath)
	if err != nil {
		return nil, err
	}
	if err := s.PutExport(e, rows); err != nil {
		return nil, err
	}
	return e, nil
}
