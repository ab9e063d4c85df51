package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tapmeter/internal/stats"
	"tapmeter/internal/store"
)

var (
	sessionsJSON   bool
	sessionsLimit  int
	rmFiles        bool
	bestKind       string
	schemaRollback bool
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"ls"},
	Short:   "Browse the export catalogue",
	Long:    "Lists indexed exports. Subcommands show, rename, remove and verify them.",
	Args:    cobra.NoArgs,
	RunE:    runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show an export and its best windows",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsRenameCmd = &cobra.Command{
	Use:   "rename ID NAME",
	Short: "Name an export",
	Args:  cobra.ExactArgs(2),
	RunE:  runSessionsRename,
}

var sessionsRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Remove an export from the catalogue",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsRm,
}

var sessionsBestCmd = &cobra.Command{
	Use:   "best",
	Short: "Show personal bests per window size",
	Args:  cobra.NoArgs,
	RunE:  runSessionsBest,
}

var sessionsVerifyCmd = &cobra.Command{
	Use:   "verify [ID]",
	Short: "Check report files against their recorded digests",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionsVerify,
}

var sessionsSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show the catalogue schema version",
	Long: "Prints the applied and latest schema versions. --rollback reverts the newest\n" +
		"migration, for handing the catalogue to an older tapmeter; the next command\n" +
		"that opens it migrates forward again.",
	Args: cobra.NoArgs,
	RunE: runSessionsSchema,
}

func init() {
	sessionsCmd.PersistentFlags().BoolVar(&sessionsJSON, "json", false, "output as JSON")
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "number of exports to list (0 for all)")
	sessionsRmCmd.Flags().BoolVar(&rmFiles, "files", false, "also delete the report files")
	sessionsBestCmd.Flags().StringVarP(&bestKind, "kind", "k", "bpm", "ranking: bpm, ur or zx")
	sessionsSchemaCmd.Flags().BoolVar(&schemaRollback, "rollback", false, "revert the newest migration")

	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsRenameCmd)
	sessionsCmd.AddCommand(sessionsRmCmd)
	sessionsCmd.AddCommand(sessionsBestCmd)
	sessionsCmd.AddCommand(sessionsVerifyCmd)
	sessionsCmd.AddCommand(sessionsSchemaCmd)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid export id %q", s)
	}
	return id, nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	exports, err := db.ListExports(sessionsLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if sessionsJSON {
		list := make([]exportJSON, 0, len(exports))
		for i := range exports {
			list = append(list, toExportJSON(&exports[i]))
		}
		return writeJSON(out, list)
	}

	if len(exports) == 0 {
		fmt.Fprintln(out, "no exports indexed")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEXPORTED\tINTERVALS\tFILES")
	for i := range exports {
		e := &exports[i]
		files := "summary+history"
		switch {
		case e.SummaryPath == "" && e.HistoryPath == "":
			files = "-"
		case e.SummaryPath == "":
			files = "history"
		case e.HistoryPath == "":
			files = "summary"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", e.ID, e.DisplayName(),
			e.ExportedAt.Local().Format("2006-01-02 15:04:05"), e.Intervals, files)
	}
	return tw.Flush()
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	e, err := db.GetExport(id)
	if err != nil {
		return err
	}
	rows, err := db.BestRows(id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if sessionsJSON {
		best := make([]bestJSON, 0, len(rows))
		for _, r := range rows {
			best = append(best, bestJSON{
				Window: r.Window,
				Kind:   r.Kind.String(),
				BPM:    r.Stats.BPM,
				UR:     r.Stats.UR,
				ZX:     r.Stats.ZX,
			})
		}
		return writeJSON(out, struct {
			exportJSON
			Best []bestJSON `json:"best"`
		}{toExportJSON(e), best})
	}

	fmt.Fprintf(out, "%s %d\n", bold("⚡ export"), e.ID)
	if e.Name != "" {
		fmt.Fprintf(out, "  Name:       %s\n", e.Name)
	}
	fmt.Fprintf(out, "  Exported:   %s\n", e.ExportedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "  Intervals:  %d\n", e.Intervals)
	fmt.Fprintf(out, "  Summary:    %s\n", orDash(e.SummaryPath))
	fmt.Fprintf(out, "  History:    %s\n", orDash(e.HistoryPath))

	if len(rows) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WINDOW\tTYPE\tBPM\tUR\tZX")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%.0f\t%.2f\t%.0f%%\n", r.Window, r.Kind, r.Stats.BPM, r.Stats.UR, r.Stats.ZX*100)
	}
	return tw.Flush()
}

func runSessionsRename(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Rename(id, args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d → %s\n", green("✓ renamed"), id, args[1])
	return nil
}

func runSessionsRm(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	e, err := db.GetExport(id)
	if err != nil {
		return err
	}
	if err := db.DeleteExport(id); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %d\n", green("✓ removed"), id)
	if !rmFiles {
		return nil
	}
	for _, path := range []string{e.SummaryPath, e.HistoryPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		fmt.Fprintf(out, "  deleted %s\n", path)
	}
	return nil
}

func runSessionsBest(cmd *cobra.Command, args []string) error {
	kind, err := stats.ParseKind(bestKind)
	if err != nil {
		return err
	}
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	bests, err := db.PersonalBests(kind)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if sessionsJSON {
		list := make([]bestJSON, 0, len(bests))
		for _, pb := range bests {
			list = append(list, bestJSON{
				Window: pb.Window,
				Kind:   kind.String(),
				Export: pb.ExportID,
				Name:   pb.Name,
				BPM:    pb.Stats.BPM,
				UR:     pb.Stats.UR,
				ZX:     pb.Stats.ZX,
			})
		}
		return writeJSON(out, list)
	}

	if len(bests) == 0 {
		fmt.Fprintln(out, "no exports indexed")
		return nil
	}
	fmt.Fprintf(out, "%s by %s\n", bold("⚡ personal bests"), kind)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WINDOW\tBPM\tUR\tZX\tEXPORT")
	for _, pb := range bests {
		name := strconv.FormatInt(pb.ExportID, 10)
		if pb.Name != "" {
			name = pb.Name
		}
		fmt.Fprintf(tw, "%d\t%.0f\t%.2f\t%.0f%%\t%s\n", pb.Window, pb.Stats.BPM, pb.Stats.UR, pb.Stats.ZX*100, name)
	}
	return tw.Flush()
}

func runSessionsVerify(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		bad, err := db.VerifyAll()
		if err != nil {
			return err
		}
		if sessionsJSON {
			if bad == nil {
				bad = []int64{}
			}
			return writeJSON(out, map[string]any{"failed": bad})
		}
		if len(bad) == 0 {
			fmt.Fprintln(out, green("✓ all report files intact"))
			return nil
		}
		for _, id := range bad {
			fmt.Fprintf(out, "%s %d\n", red("✗"), id)
		}
		return fmt.Errorf("%d export(s) with missing or modified files", len(bad))
	}

	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	e, err := db.GetExport(id)
	if err != nil {
		return err
	}
	checks, err := store.VerifyExport(e)
	if err != nil {
		return err
	}

	failed := false
	if sessionsJSON {
		type checkJSON struct {
			Kind  string `json:"kind"`
			Path  string `json:"path,omitempty"`
			State string `json:"state"`
		}
		list := make([]checkJSON, 0, len(checks))
		for _, c := range checks {
			list = append(list, checkJSON{Kind: c.Kind.String(), Path: c.Path, State: c.State.String()})
		}
		return writeJSON(out, list)
	}
	for _, c := range checks {
		mark := green("✓")
		switch c.State {
		case store.FileMissing, store.FileModified:
			mark = red("✗")
			failed = true
		case store.FileSkipped:
			mark = gray("-")
		}
		fmt.Fprintf(out, "%s %-8s %-9s %s\n", mark, c.Kind, c.State, c.Path)
	}
	if failed {
		return fmt.Errorf("export %d failed verification", id)
	}
	return nil
}

func runSessionsSchema(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	if schemaRollback {
		current, err := db.RollbackSchema()
		if err != nil {
			return err
		}
		logger.Warn("catalogue schema rolled back", "path", cfg.Storage.Path, "version", current)
		fmt.Fprintf(out, "%s to version %d\n", yellow("✓ rolled back"), current)
		return nil
	}

	current, latest, err := db.SchemaVersion()
	if err != nil {
		return err
	}
	if sessionsJSON {
		return writeJSON(out, map[string]int{"current": current, "latest": latest})
	}
	fmt.Fprintf(out, "%s %d (latest %d)\n", bold("⚡ schema"), current, latest)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
