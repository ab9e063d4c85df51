package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tapmeter/internal/watcher"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [DIR]",
	Short: "Index report files as they appear",
	Long:  "Watches an export directory and indexes each report pair once its files settle.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watcher.DefaultDebounce, "quiet period before a pair is indexed")
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := exportDirArg(args)

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	w, err := watcher.New(dir, watchDebounce)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", bold("⚡ watching"), w.Dir())
	for {
		select {
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			e, err := indexEvent(db, ev)
			if err != nil {
				logger.Warn("index failed", "id", ev.ID, "error", err)
				continue
			}
			fmt.Fprintf(out, "%s %d  %d intervals\n", green("✓ indexed"), e.ID, e.Intervals)
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			logger.Warn("watch error", "dir", dir, "error", err)
		case <-sigCh:
			return nil
		}
	}
}
