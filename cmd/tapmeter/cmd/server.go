package cmd

import (
	"net/http"
	"strconv"
	"time"

	"tapmeter/internal/health"
	"tapmeter/internal/stats"
)

// newChecker registers the health checks of a capture.
func newChecker(c *capture, exportDir string) *health.Checker {
	checker := health.NewChecker()
	checker.RegisterFunc("input", true, health.InputCheck(c.source.Name(), c.session.IsRunning))
	checker.RegisterFunc("calibration", true, health.CalibrationCheck(c.session.Rate))
	if c.store != nil {
		checker.RegisterFunc("catalogue", false, health.DatabaseCheck(c.store.Check))
	}
	checker.RegisterFunc("export_dir", false, health.DirWritableCheck(exportDir))
	checker.SetReady(true)
	return checker
}

// newHandler serves health, metrics, the live session status and the
// export catalogue.
func newHandler(c *capture, checker *health.Checker) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /healthz", checker.HealthHandler())
	mux.Handle("GET /livez", checker.LivenessHandler())

	promHandler := c.registry.HTTPHandler()
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		c.metrics.UpdateUptime()
		promHandler.ServeHTTP(w, r)
	})

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, statusJSON{
			Status:    c.session.Status(),
			Intervals: toHistogramJSON(c.metrics.IntervalMillis),
		})
	})

	mux.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		if c.store == nil {
			http.Error(w, errNoCatalogue.Error(), http.StatusNotFound)
			return
		}
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, "bad limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		exports, err := c.store.ListExports(limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out := make([]exportJSON, 0, len(exports))
		for i := range exports {
			out = append(out, toExportJSON(&exports[i]))
		}
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, out)
	})

	mux.HandleFunc("GET /bests", func(w http.ResponseWriter, r *http.Request) {
		if c.store == nil {
			http.Error(w, errNoCatalogue.Error(), http.StatusNotFound)
			return
		}
		kind := stats.KindBPM
		if v := r.URL.Query().Get("kind"); v != "" {
			k, err := stats.ParseKind(v)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			kind = k
		}
		bests, err := c.store.PersonalBests(kind)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out := make([]bestJSON, 0, len(bests))
		for _, pb := range bests {
			out = append(out, bestJSON{
				Window: pb.Window,
				Export: pb.ExportID,
				Name:   pb.Name,
				BPM:    pb.Stats.BPM,
				UR:     pb.Stats.UR,
				ZX:     pb.Stats.ZX,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, out)
	})
	return mux
}

func newServer(addr string, c *capture) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           newHandler(c, newChecker(c, cfg.Export.Dir)),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
