package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tapmeter/internal/store"
	"tapmeter/internal/watcher"
)

var indexCmd = &cobra.Command{
	Use:   "index [DIR]",
	Short: "Index report files already on disk",
	Long: "Scans an export directory for report pairs and records each in the catalogue.\n" +
		"Re-indexing an export refreshes its digests and keeps its name.",
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func exportDirArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Export.Dir
}

func runIndex(cmd *cobra.Command, args []string) error {
	dir := exportDirArg(args)
	events, err := watcher.Scan(dir)
	if err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	indexed, failed := 0, 0
	for _, ev := range events {
		if _, err := indexEvent(db, ev); err != nil {
			logger.Warn("index failed", "id", ev.ID, "error", err)
			failed++
			continue
		}
		indexed++
	}

	fmt.Fprintf(out, "%s %d export(s) from %s\n", green("✓ indexed"), indexed, dir)
	if failed > 0 {
		return fmt.Errorf("%d export(s) could not be indexed", failed)
	}
	return nil
}

func indexEvent(db *store.Store, ev watcher.Event) (*store.Export, error) {
	return db.IndexPair(ev.ID, ev.SummaryPath, ev.HistoryPath)
}
