package cmd

import (
	"context"
	"errors"
	"io"
	"time"

	"tapmeter/internal/clock"
	"tapmeter/internal/export"
	"tapmeter/internal/keystroke"
	"tapmeter/internal/metrics"
	"tapmeter/internal/store"
	"tapmeter/internal/tracking"
)

// errNoCatalogue is returned by catalogue commands when storage is disabled.
var errNoCatalogue = errors.New("export catalogue disabled (storage.enabled = false)")

type captureOptions struct {
	Source         keystroke.Source
	Rate           clock.Rate
	Index          bool // index exports into the catalogue
	Output         io.Writer
	ReportInterval time.Duration
	OnExport       func(*export.Result)
}

// capture is a tracking session plus the resources it owns.
type capture struct {
	session  *tracking.Session
	source   keystroke.Source
	store    *store.Store
	registry *metrics.Registry
	metrics  *metrics.TapmeterMetrics
}

func openCapture(opts captureOptions) (*capture, error) {
	c := &capture{source: opts.Source}
	if opts.Index && cfg.Storage.Enabled {
		db, err := store.Open(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		c.store = db
	}
	c.registry = metrics.NewRegistry("tapmeter")
	c.metrics = metrics.NewTapmeterMetrics(c.registry)

	every := opts.ReportInterval
	if every <= 0 {
		every = cfg.ReportInterval()
	}
	s, err := tracking.New(tracking.Config{
		Source:           opts.Source,
		Rate:             opts.Rate,
		Capacity:         cfg.Capture.Capacity,
		ReleaseThreshold: cfg.ReleaseThreshold(),
		Exporter:         newExporter(),
		Store:            c.store,
		Metrics:          c.metrics,
		Logger:           logger.Logger,
		ReportInterval:   every,
		MonitorWindows:   cfg.Report.Windows,
		Recent:           cfg.Report.Recent,
		Output:           opts.Output,
		OnExport:         opts.OnExport,
	})
	if err != nil {
		c.Close()
		return nil, err
	}
	c.session = s
	return c, nil
}

// Close releases the catalogue.
func (c *capture) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

func newExporter() *export.Exporter {
	return export.New(export.Config{
		Dir:           cfg.Export.Dir,
		Windows:       cfg.Export.Windows,
		Step:          cfg.ExportStep(),
		SummaryMin:    cfg.Export.SummaryMin,
		HistoryMin:    cfg.Export.HistoryMin,
		HistoryWindow: cfg.Export.HistoryWindow,
		Logger:        logger.Logger,
	})
}

// openStore opens the catalogue for the sessions, index and watch commands.
func openStore() (*store.Store, error) {
	if !cfg.Storage.Enabled {
		return nil, errNoCatalogue
	}
	return store.Open(cfg.Storage.Path)
}

// sourceRate returns the tick rate of src, calibrating the system clock
// when the source does not fix one.
func sourceRate(ctx context.Context, src keystroke.Source) (clock.Rate, error) {
	if rs, ok := src.(keystroke.RateSource); ok {
		return rs.Rate(), nil
	}
	d := cfg.CalibrationDuration()
	logger.Info("calibrating tick source", "duration", d)
	rate, err := clock.Calibrate(ctx, clock.System, d)
	if err != nil {
		return 0, err
	}
	logger.Debug("calibrated", "ticks_per_second", uint64(rate))
	return rate, nil
}
