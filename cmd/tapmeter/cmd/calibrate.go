package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tapmeter/internal/clock"
)

var (
	calibrateDuration time.Duration
	calibrateJSON     bool
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Measure the tick rate of the system clock",
	Long:  "Samples the high-resolution tick counter across a real sleep and prints ticks per second.",
	Args:  cobra.NoArgs,
	RunE:  runCalibrate,
}

func init() {
	calibrateCmd.Flags().DurationVarP(&calibrateDuration, "duration", "d", 0, "sampling time (default: capture.calibration_ms)")
	calibrateCmd.Flags().BoolVar(&calibrateJSON, "json", false, "output as JSON")
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := calibrateDuration
	if d <= 0 {
		d = cfg.CalibrationDuration()
	}
	rate, err := clock.Calibrate(ctx, clock.System, d)
	if err != nil {
		return err
	}

	if calibrateJSON {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"ticks_per_second": uint64(rate),
			"sampled":          d.String(),
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s (sampled %s)\n", bold("⚡ clock"), rate, d)
	return nil
}
