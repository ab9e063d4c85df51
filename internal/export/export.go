// Package export writes capture reports to CSV: a summary of the best window
// per size and metric, and a per-press history with trailing-window stats.
// Each export writes a pair of files sharing one id, and records a BLAKE2b-256
// digest of each file as it is written.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"tapmeter/internal/interval"
	"tapmeter/internal/stats"
)

// ErrInsufficientData is returned when a capture is too short for any report.
var ErrInsufficientData = errors.New("export: insufficient data")

// Default thresholds.
const (
	DefaultSummaryMin    = 20
	DefaultHistoryMin    = 8
	DefaultHistoryWindow = 8
	DefaultDir           = "samples"
)

// maxIDAttempts bounds the search for a free id when files already exist.
const maxIDAttempts = 1000

var (
	SummaryHeader = []string{"Window Size", "Type", "BPM", "UR", "ZX"}
	HistoryHeader = []string{"Press", "Interval_ms", "BPM_avg8", "UR_avg8", "ZX_avg8"}
)

// Config controls an Exporter.
type Config struct {
	Dir           string
	Windows       []int
	Step          stats.StepFunc
	SummaryMin    int
	HistoryMin    int
	HistoryWindow int

	Now    func() time.Time
	Logger *slog.Logger
}

// File describes one written report.
type File struct {
	Path   string
	Digest [32]byte
	Rows   int
}

// Result describes one export.
type Result struct {
	ID         int64
	ExportedAt time.Time
	Intervals  int
	Summary    *File // nil when skipped
	History    *File // nil when skipped
	Best       []stats.Best
}

// Exporter writes report pairs into a directory.
type Exporter struct {
	cfg Config
	log *slog.Logger

	// serializes id allocation between the reset and shutdown triggers
	mu sync.Mutex
}

// New creates an Exporter, filling unset fields with defaults.
func New(cfg Config) *Exporter {
	if cfg.Dir == "" {
		cfg.Dir = DefaultDir
	}
	if len(cfg.Windows) == 0 {
		cfg.Windows = stats.ExportWindows
	}
	if cfg.Step == nil {
		cfg.Step = stats.ScheduledStep
	}
	if cfg.SummaryMin <= 0 {
		cfg.SummaryMin = DefaultSummaryMin
	}
	if cfg.HistoryMin <= 0 {
		cfg.HistoryMin = DefaultHistoryMin
	}
	if cfg.HistoryWindow < 2 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{cfg: cfg, log: logger.With("component", "export")}
}

// Dir returns the output directory.
func (e *Exporter) Dir() string { return e.cfg.Dir }

// Export writes the summary and history reports for deltas. A report whose
// threshold is not met is skipped with a warning; if both are skipped the
// error is ErrInsufficientData. I/O failures abort this export only and
// leave no partial files behind.
func (e *Exporter) Export(deltas []interval.Delta) (*Result, error) {
	wantSummary := len(deltas) >= e.cfg.SummaryMin
	wantHistory := len(deltas) >= e.cfg.HistoryMin
	if !wantSummary {
		e.log.Warn("not enough intervals for summary export",
			"intervals", len(deltas), "need", e.cfg.SummaryMin)
	}
	if !wantHistory {
		e.log.Warn("not enough intervals for history export",
			"intervals", len(deltas), "need", e.cfg.HistoryMin)
	}
	if !wantSummary && !wantHistory {
		return nil, ErrInsufficientData
	}

	var (
		best    []stats.Best
		history []stats.TrailingRow
		err     error
	)
	if wantSummary {
		best, err = stats.Aggregate(deltas, e.cfg.Windows, e.cfg.Step)
		if err != nil {
			return nil, fmt.Errorf("export: aggregate: %w", err)
		}
	}
	if wantHistory {
		history, err = stats.Trailing(deltas, e.cfg.HistoryWindow)
		if err != nil {
			return nil, fmt.Errorf("export: history: %w", err)
		}
	}

	if err := os.MkdirAll(e.cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("export: create directory: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.cfg.Now()
	id, summaryFile, historyFile, err := e.reserve(now.Unix(), wantSummary, wantHistory)
	if err != nil {
		return nil, err
	}

	res := &Result{ID: id, ExportedAt: now, Intervals: len(deltas), Best: best}
	if summaryFile != nil {
		res.Summary, err = writeFile(summaryFile, func(w io.Writer) (int, error) {
			return len(best), WriteSummary(w, best)
		})
		if err != nil {
			removeReserved(historyFile)
			return nil, err
		}
		e.log.Info("exported summary", "path", res.Summary.Path, "rows", res.Summary.Rows)
	}
	if historyFile != nil {
		res.History, err = writeFile(historyFile, func(w io.Writer) (int, error) {
			return len(history), WriteHistory(w, history)
		})
		if err != nil {
			if res.Summary != nil {
				os.Remove(res.Summary.Path)
			}
			return nil, err
		}
		e.log.Info("exported history", "path", res.History.Path, "rows", res.History.Rows)
	}
	return res, nil
}

// reserve creates the report files exclusively, moving to the next id while
// either name is taken so an earlier export is never overwritten.
func (e *Exporter) reserve(id int64, summary, history bool) (int64, *os.File, *os.File, error) {
	for i := 0; i < maxIDAttempts; i, id = i+1, id+1 {
		sp, hp := SummaryPath(e.cfg.Dir, id), HistoryPath(e.cfg.Dir, id)
		if exists(sp) || exists(hp) {
			continue
		}

		var sf, hf *os.File
		var err error
		if summary {
			sf, err = createExclusive(sp)
			if errors.Is(err, os.ErrExist) {
				continue
			}
			if err != nil {
				return 0, nil, nil, fmt.Errorf("export: create %s: %w", sp, err)
			}
		}
		if history {
			hf, err = createExclusive(hp)
			if errors.Is(err, os.ErrExist) {
				removeReserved(sf)
				continue
			}
			if err != nil {
				removeReserved(sf)
				return 0, nil, nil, fmt.Errorf("export: create %s: %w", hp, err)
			}
		}
		return id, sf, hf, nil
	}
	return 0, nil, nil, fmt.Errorf("export: no free file id in %s", e.cfg.Dir)
}

func createExclusive(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func removeReserved(f *os.File) {
	if f == nil {
		return
	}
	f.Close()
	os.Remove(f.Name())
}

// writeFile runs write against f and a running digest, then closes f.
// On failure the file is removed.
func writeFile(f *os.File, write func(io.Writer) (int, error)) (*File, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		removeReserved(f)
		return nil, err
	}
	rows, err := write(io.MultiWriter(f, h))
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("export: write %s: %w", f.Name(), err)
	}

	out := &File{Path: f.Name(), Rows: rows}
	copy(out.Digest[:], h.Sum(nil))
	return out, nil
}

// WriteSummary writes the summary report. ZX is written as a percentage.
func WriteSummary(w io.Writer, rows []stats.Best) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SummaryHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.Window),
			r.Kind.String(),
			formatFloat(r.Stats.BPM),
			formatFloat(r.Stats.UR),
			formatFloat(r.Stats.ZX * 100),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteHistory writes the history report. Rows without trailing stats get
// blank stat fields.
func WriteHistory(w io.Writer, rows []stats.TrailingRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(HistoryHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{strconv.Itoa(r.Press), strconv.FormatUint(r.Millis, 10), "", "", ""}
		if r.Stats != nil {
			rec[2] = formatFloat(r.Stats.BPM)
			rec[3] = formatFloat(r.Stats.UR)
			rec[4] = formatFloat(r.Stats.ZX * 100)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
