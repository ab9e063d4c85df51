package metrics

import "time"

// TapmeterMetrics holds the capture and export metrics.
type TapmeterMetrics struct {
	registry *Registry

	IntervalsTotal      *Counter
	ResetsTotal         *Counter
	ExportsTotal        *Counter
	ExportFailuresTotal *Counter
	ExportsSkippedTotal *Counter

	BufferedIntervals *Gauge
	CurrentBPMMilli   *Gauge
	UptimeSeconds     *Gauge

	IntervalMillis *Histogram
	ReportDuration *Histogram
}

var startTime = time.Now()

// NewTapmeterMetrics creates and registers all metrics. A nil registry uses
// the default one.
func NewTapmeterMetrics(registry *Registry) *TapmeterMetrics {
	if registry == nil {
		registry = Default()
	}

	return &TapmeterMetrics{
		registry: registry,

		IntervalsTotal: registry.RegisterCounter(
			"intervals_total",
			"Total number of press intervals recorded",
			nil,
		),
		ResetsTotal: registry.RegisterCounter(
			"resets_total",
			"Total number of capture resets",
			nil,
		),
		ExportsTotal: registry.RegisterCounter(
			"exports_total",
			"Total number of report exports written",
			nil,
		),
		ExportFailuresTotal: registry.RegisterCounter(
			"export_failures_total",
			"Total number of exports that failed with an I/O error",
			nil,
		),
		ExportsSkippedTotal: registry.RegisterCounter(
			"exports_skipped_total",
			"Total number of exports skipped for lack of data",
			nil,
		),

		BufferedIntervals: registry.RegisterGauge(
			"buffered_intervals",
			"Intervals currently held in the capture buffer",
			nil,
		),
		CurrentBPMMilli: registry.RegisterGauge(
			"current_bpm_milli",
			"Tempo over the most recent window, in thousandths of a BPM",
			nil,
		),
		UptimeSeconds: registry.RegisterGauge(
			"uptime_seconds",
			"Seconds since process start",
			nil,
		),

		IntervalMillis: registry.RegisterHistogram(
			"interval_ms",
			"Distribution of press intervals in milliseconds",
			nil,
			IntervalBuckets,
		),
		ReportDuration: registry.RegisterHistogram(
			"report_duration_seconds",
			"Time spent computing the live report",
			nil,
			DurationBuckets,
		),
	}
}

// Registry returns the registry the metrics are registered in.
func (m *TapmeterMetrics) Registry() *Registry {
	return m.registry
}

// RecordInterval counts one recorded interval.
func (m *TapmeterMetrics) RecordInterval(ms uint64) {
	m.IntervalsTotal.Inc()
	m.IntervalMillis.Observe(float64(ms))
}

// RecordExport counts an export outcome.
func (m *TapmeterMetrics) RecordExport(err error, skipped bool) {
	switch {
	case skipped:
		m.ExportsSkippedTotal.Inc()
	case err != nil:
		m.ExportFailuresTotal.Inc()
	default:
		m.ExportsTotal.Inc()
	}
}

// SetCurrentBPM records the live tempo.
func (m *TapmeterMetrics) SetCurrentBPM(bpm float64) {
	m.CurrentBPMMilli.Set(int64(bpm * 1000))
}

// UpdateUptime refreshes the uptime gauge.
func (m *TapmeterMetrics) UpdateUptime() {
	m.UptimeSeconds.Set(int64(time.Since(startTime).Seconds()))
}
