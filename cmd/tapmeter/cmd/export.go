package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tapmeter/internal/export"
	"tapmeter/internal/keystroke"
)

var (
	exportOutDir  string
	exportNoStore bool
	exportJSONOut bool
)

var exportCmd = &cobra.Command{
	Use:   "export SCRIPT",
	Short: "Export reports from a recorded replay script",
	Long: "Feeds a replay script through the capture pipeline without pacing and writes\n" +
		"a report pair at every reset line and at the end of the script.",
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutDir, "out", "o", "", "export directory")
	exportCmd.Flags().BoolVar(&exportNoStore, "no-store", false, "do not index exports into the catalogue")
	exportCmd.Flags().BoolVar(&exportJSONOut, "json", false, "output as JSON")
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportOutDir != "" {
		cfg.Export.Dir = exportOutDir
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	src, err := keystroke.Open(keystroke.SourceReplay, keystroke.Options{ReplayPath: args[0]})
	if err != nil {
		return err
	}

	var results []*export.Result
	c, err := openCapture(captureOptions{
		Source:   src,
		Index:    !exportNoStore,
		Output:   io.Discard,
		OnExport: func(res *export.Result) { results = append(results, res) },
	})
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.session.Run(cmd.Context()); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if exportJSONOut {
		type fileJSON struct {
			ID        int64  `json:"id"`
			Intervals int    `json:"intervals"`
			Summary   string `json:"summary,omitempty"`
			History   string `json:"history,omitempty"`
		}
		list := make([]fileJSON, 0, len(results))
		for _, res := range results {
			f := fileJSON{ID: res.ID, Intervals: res.Intervals}
			if res.Summary != nil {
				f.Summary = res.Summary.Path
			}
			if res.History != nil {
				f.History = res.History.Path
			}
			list = append(list, f)
		}
		return writeJSON(out, list)
	}

	if len(results) == 0 {
		fmt.Fprintln(out, yellow("nothing exported: too few intervals"))
		return nil
	}
	for _, res := range results {
		printExportResult(out, res)
	}
	return nil
}
