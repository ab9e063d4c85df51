package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tapmeter/internal/config"
	"tapmeter/internal/keystroke"
	"tapmeter/internal/logging"
)

var (
	runSource  string
	runDevice  string
	runReplay  string
	runFast    bool
	runNoStore bool
	runOutDir  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Capture presses and report live stats",
	Long: "Captures Z/X presses and prints BPM, UR and ZX every report interval.\n" +
		"` (grave) exports and starts over, q or Esc quits; both write a report pair.",
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runSource, "source", "", "input source: terminal, evdev or replay")
	runCmd.Flags().StringVar(&runDevice, "device", "", "evdev keyboard device (default: auto-detect)")
	runCmd.Flags().StringVar(&runReplay, "replay", "", "replay a recorded script instead of live input")
	runCmd.Flags().BoolVar(&runFast, "fast", false, "replay without waiting between presses")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "do not index exports into the catalogue")
	runCmd.Flags().StringVarP(&runOutDir, "out", "o", "", "export directory")
}

// applyCaptureFlags folds the capture flags into cfg.
func applyCaptureFlags(source, device, replay, outDir string) {
	if replay != "" {
		cfg.Capture.Source = keystroke.SourceReplay
	}
	if source != "" {
		cfg.Capture.Source = source
	}
	if device != "" {
		cfg.Capture.Device = device
	}
	if outDir != "" {
		cfg.Export.Dir = outDir
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	applyCaptureFlags(runSource, runDevice, runReplay, runOutDir)
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := keystroke.Open(cfg.Capture.Source, keystroke.Options{
		Device:     cfg.Capture.Device,
		ReplayPath: runReplay,
		Pace:       !runFast,
	})
	if err != nil {
		return err
	}
	if ok, reason := src.Available(); !ok {
		return fmt.Errorf("%s source: %s", src.Name(), reason)
	}

	rate, err := sourceRate(ctx, src)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	c, err := openCapture(captureOptions{
		Source: src,
		Rate:   rate,
		Index:  !runNoStore,
		Output: out,
	})
	if err != nil {
		return err
	}
	defer c.Close()

	if path := configPath(); path != "" {
		closeWatch, err := watchConfig(path, c)
		if err != nil {
			logger.Warn("config hot reload disabled", "path", path, "error", err)
		} else {
			defer closeWatch()
		}
	}

	if cfg.Metrics.Enabled {
		srv := newServer(cfg.Metrics.Listen, c)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server", "addr", srv.Addr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		logger.Info("status server listening", "addr", srv.Addr)
	}

	fmt.Fprintf(out, "%s  %s source, %s\n", bold("⚡ tapmeter"), src.Name(), rate)
	fmt.Fprintf(out, "%s\n\n", gray("  z/x to tap · ` to export and restart · q to quit"))

	if err := c.session.Run(ctx); err != nil {
		return err
	}
	printSessionSummary(out, c.session.Status(), c.session.LastExport())
	return nil
}

// watchConfig applies log level and report interval changes while capturing.
func watchConfig(path string, c *capture) (func(), error) {
	loader := config.NewLoader(path)
	if _, err := loader.Load(); err != nil {
		return nil, err
	}
	loader.OnChange(func(next *config.Config) {
		if lvl, err := logging.ParseLevel(next.Logging.Level); err == nil && logLevel == "" {
			logger.SetLevel(lvl)
		}
		c.session.SetReportInterval(next.ReportInterval())
		logger.Info("config reloaded", "path", path)
	})
	if err := loader.Watch(); err != nil {
		loader.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case err, ok := <-loader.Errors():
				if !ok {
					return
				}
				logger.Warn("config reload rejected", "path", path, "error", err)
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		loader.Close()
	}, nil
}
