// Package tracking runs a capture session.
//
// This package ties together:
// - the key event source and its press filter
// - the interval history shared with the report loop
// - the periodic live report
// - exports on reset and on shutdown, indexed into the catalogue
//
// The producer loop and the report loop only share the history, whose lock
// is held for an append, a copy or a drain. Statistics always run on a copy.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"tapmeter/internal/clock"
	"tapmeter/internal/export"
	"tapmeter/internal/interval"
	"tapmeter/internal/keystroke"
	"tapmeter/internal/metrics"
	"tapmeter/internal/stats"
	"tapmeter/internal/store"
)

// Defaults for unset Config fields.
const (
	DefaultReportInterval = time.Second
	DefaultRecent         = 20
)

// Prompt is logged by the report loop until two intervals exist.
const Prompt = "C'mon, smash these buttons!"

// ErrAlreadyRunning is returned by Run on a session that is running.
var ErrAlreadyRunning = errors.New("tracking: session already running")

// Config configures a capture session.
type Config struct {
	// Source delivers key events. Required.
	Source keystroke.Source

	// Rate converts ticks to time. Zero takes the rate of a source
	// implementing keystroke.RateSource; otherwise it is required.
	Rate clock.Rate

	Capacity         int
	ReleaseThreshold time.Duration

	// Exporter writes the report pair on reset and shutdown. Nil writes to
	// the default directory.
	Exporter *export.Exporter

	// Store indexes each export. Optional.
	Store *store.Store

	// Metrics records capture counters. Optional.
	Metrics *metrics.TapmeterMetrics

	Logger *slog.Logger

	ReportInterval time.Duration
	MonitorWindows []int
	Recent         int

	// Output receives the live report lines. Nil logs them instead.
	Output io.Writer

	// OnExport is called after each successful export.
	OnExport func(*export.Result)
}

// Session is one capture run.
type Session struct {
	mu sync.RWMutex

	ID        string
	StartedAt time.Time
	EndedAt   time.Time

	cfg     Config
	log     *slog.Logger
	rate    clock.Rate
	history *interval.History
	filter  *keystroke.Filter

	reportEvery time.Duration
	retick      chan time.Duration

	running    bool
	recorded   uint64
	resets     int
	exports    int
	lastExport *export.Result
	lastReport *stats.Report
	err        error
}

// New creates a session. It fails when no tick rate is known.
func New(cfg Config) (*Session, error) {
	if cfg.Source == nil {
		return nil, errors.New("tracking: no input source")
	}
	rate := cfg.Rate
	if !rate.Valid() {
		if rs, ok := cfg.Source.(keystroke.RateSource); ok {
			rate = rs.Rate()
		}
	}
	if err := rate.Validate(); err != nil {
		return nil, fmt.Errorf("tracking: %w", err)
	}

	if cfg.Capacity <= 0 {
		cfg.Capacity = interval.DefaultCapacity
	}
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = DefaultReportInterval
	}
	if cfg.MonitorWindows == nil {
		cfg.MonitorWindows = stats.MonitorWindows
	}
	if cfg.Recent == 0 {
		cfg.Recent = DefaultRecent
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Exporter == nil {
		cfg.Exporter = export.New(export.Config{Logger: logger})
	}

	now := time.Now()
	id := now.Format("20060102-150405")
	return &Session{
		ID:          id,
		StartedAt:   now,
		cfg:         cfg,
		log:         logger.With("component", "tracking", "session", id),
		rate:        rate,
		history:     interval.NewHistory(cfg.Capacity),
		filter:      keystroke.NewFilter(rate, cfg.ReleaseThreshold),
		reportEvery: cfg.ReportInterval,
		retick:      make(chan time.Duration, 1),
	}, nil
}

// Rate returns the tick rate in use.
func (s *Session) Rate() clock.Rate { return s.rate }

// Run captures until ctx is cancelled, the quit key is pressed or the source
// runs dry, then writes the final export. Export failures are logged and
// counted, never returned.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	if ok, reason := s.cfg.Source.Available(); !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", keystroke.ErrNotAvailable, reason)
	}
	if err := s.cfg.Source.Start(ctx); err != nil {
		s.err = err
		s.mu.Unlock()
		return fmt.Errorf("start %s: %w", s.cfg.Source.Name(), err)
	}
	s.running = true
	s.mu.Unlock()

	s.log.Info("capture started",
		"source", s.cfg.Source.Name(),
		"rate", s.rate.String(),
		"capacity", s.history.Cap(),
	)

	reportCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.reportLoop(reportCtx)
	}()

	reason := s.consume(ctx)

	cancel()
	wg.Wait()
	if err := s.cfg.Source.Stop(); err != nil {
		s.log.Warn("stop source", "error", err)
	}

	s.log.Info("capture stopped", "reason", reason)
	s.export(s.history.Snapshot(), "shutdown")

	s.mu.Lock()
	s.running = false
	s.EndedAt = time.Now()
	s.mu.Unlock()
	return nil
}

// consume is the producer loop. It returns why capture ended.
func (s *Session) consume(ctx context.Context) string {
	events := s.cfg.Source.Events()
	for {
		select {
		case <-ctx.Done():
			return "cancelled"
		case ev, ok := <-events:
			if !ok {
				return "end of input"
			}
			if s.handle(ev) {
				return "quit"
			}
		}
	}
}

// handle feeds one event through the filter and reports whether to quit.
func (s *Session) handle(ev keystroke.Event) bool {
	rec, outcome := s.filter.Apply(ev)
	switch outcome {
	case keystroke.Record:
		s.history.Append(rec)
		s.mu.Lock()
		s.recorded++
		s.mu.Unlock()
		if m := s.cfg.Metrics; m != nil {
			if ms, err := interval.ToMillis(rec.Ticks, s.rate); err == nil {
				m.RecordInterval(ms)
			}
			m.BufferedIntervals.Set(int64(s.history.Len()))
		}
	case keystroke.Reset:
		s.Reset()
	case keystroke.Quit:
		return true
	}
	return false
}

// Reset exports everything captured so far and starts over. Presses that
// arrive during the export go into the fresh history.
func (s *Session) Reset() {
	records := s.history.Drain()
	s.filter.Clear()

	s.mu.Lock()
	s.resets++
	s.lastReport = nil
	s.mu.Unlock()

	if m := s.cfg.Metrics; m != nil {
		m.ResetsTotal.Inc()
		m.BufferedIntervals.Set(0)
	}
	s.log.Info("reset", "intervals", len(records))
	s.export(records, "reset")
}

// export converts and writes records, then indexes the result.
func (s *Session) export(records []interval.Record, trigger string) {
	log := s.log.With("trigger", trigger)

	deltas, err := interval.Convert(records, s.rate)
	if err != nil {
		log.Error("convert intervals", "error", err)
		s.recordExport(err, false)
		return
	}

	res, err := s.cfg.Exporter.Export(deltas)
	if errors.Is(err, export.ErrInsufficientData) {
		log.Warn("nothing exported", "intervals", len(deltas))
		s.recordExport(nil, true)
		return
	}
	if err != nil {
		log.Error("export failed", "error", err)
		s.recordExport(err, false)
		return
	}
	s.recordExport(nil, false)

	s.mu.Lock()
	s.exports++
	s.lastExport = res
	s.mu.Unlock()

	attrs := []any{"id", res.ID, "intervals", res.Intervals}
	if res.Summary != nil {
		attrs = append(attrs, "summary", res.Summary.Path)
	}
	if res.History != nil {
		attrs = append(attrs, "history", res.History.Path)
	}
	log.Info("exported", attrs...)

	if s.cfg.Store != nil {
		if err := s.cfg.Store.PutExport(store.FromResult(res), res.Best); err != nil {
			log.Error("index export", "id", res.ID, "error", err)
		}
	}
	if s.cfg.OnExport != nil {
		s.cfg.OnExport(res)
	}
}

func (s *Session) recordExport(err error, skipped bool) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordExport(err, skipped)
	}
}

// SetReportInterval changes the live report period of a running session.
func (s *Session) SetReportInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reportEvery = d

	// keep only the latest request; never block when nobody is reading
	for {
		select {
		case s.retick <- d:
			return
		default:
		}
		select {
		case <-s.retick:
		default:
		}
	}
}

// ReportInterval returns the live report period.
func (s *Session) ReportInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reportEvery
}

func (s *Session) reportLoop(ctx context.Context) {
	ticker := time.NewTicker(s.ReportInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-s.retick:
			ticker.Reset(d)
		case <-ticker.C:
			s.report()
		}
	}
}

// report computes and emits one live report from a snapshot.
func (s *Session) report() {
	start := time.Now()
	records := s.history.Snapshot()
	if len(records) < 2 {
		s.emit([]string{Prompt})
		return
	}

	deltas, err := interval.Convert(records, s.rate)
	if err != nil {
		s.log.Error("convert intervals", "error", err)
		return
	}
	rep, err := stats.Summarize(deltas, s.cfg.MonitorWindows, stats.ScheduledStep, s.cfg.Recent)
	if err != nil {
		s.log.Error("live report", "intervals", len(deltas), "error", err)
		return
	}

	s.mu.Lock()
	s.lastReport = &rep
	s.mu.Unlock()

	if m := s.cfg.Metrics; m != nil {
		if rep.Recent != nil {
			m.SetCurrentBPM(rep.Recent.BPM)
		}
		m.ReportDuration.Observe(time.Since(start).Seconds())
		m.UpdateUptime()
	}
	s.emit(rep.Lines())
}

func (s *Session) emit(lines []string) {
	if s.cfg.Output == nil {
		for _, l := range lines {
			s.log.Info(l)
		}
		return
	}
	for _, l := range lines {
		fmt.Fprintln(s.cfg.Output, l)
	}
	fmt.Fprintln(s.cfg.Output)
}

// Status is a point-in-time view of a session.
type Status struct {
	ID        string        `json:"id"`
	Source    string        `json:"source"`
	Running   bool          `json:"running"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at,omitempty"`
	Duration  time.Duration `json:"duration"`
	Rate      uint64        `json:"ticks_per_second"`

	Buffered int    `json:"buffered_intervals"`
	Recorded uint64 `json:"recorded_intervals"`
	Resets   int    `json:"resets"`
	Exports  int    `json:"exports"`

	LastExportID int64    `json:"last_export_id,omitempty"`
	Current      *Current `json:"current,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Current holds the latest live report figures.
type Current struct {
	Total  stats.Stats  `json:"total"`
	Recent *stats.Stats `json:"recent,omitempty"`
}

// Status returns the current session status.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		ID:        s.ID,
		Source:    s.cfg.Source.Name(),
		Running:   s.running,
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
		Rate:      uint64(s.rate),
		Buffered:  s.history.Len(),
		Recorded:  s.recorded,
		Resets:    s.resets,
		Exports:   s.exports,
	}

	end := s.EndedAt
	if end.IsZero() {
		end = time.Now()
	}
	st.Duration = end.Sub(s.StartedAt)

	if s.lastExport != nil {
		st.LastExportID = s.lastExport.ID
	}
	if s.lastReport != nil {
		st.Current = &Current{Total: s.lastReport.Total, Recent: s.lastReport.Recent}
	}
	if s.err != nil {
		st.Error = s.err.Error()
	}
	return st
}

// IsRunning reports whether Run is in progress.
func (s *Session) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// LastExport returns the most recent successful export, if any.
func (s *Session) LastExport() *export.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastExport
}
