package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tapmeter/internal/export"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, export.SummaryPath(dir, 20), "s")
	writeFile(t, export.HistoryPath(dir, 20), "h")
	writeFile(t, export.HistoryPath(dir, 10), "h")
	writeFile(t, filepath.Join(dir, "notes.txt"), "x")
	if err := os.Mkdir(filepath.Join(dir, "best_bpm_ur_5.csv"), 0755); err != nil {
		t.Fatal(err)
	}

	events, err := Scan(dir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 pairs, got %+v", events)
	}

	if events[0].ID != 10 || events[0].SummaryPath != "" || events[0].HistoryPath == "" {
		t.Errorf("unexpected first pair %+v", events[0])
	}
	if events[1].ID != 20 || events[1].SummaryPath == "" || events[1].HistoryPath == "" {
		t.Errorf("unexpected second pair %+v", events[1])
	}
}

func TestScanMissingDir(t *testing.T) {
	if _, err := Scan(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestWatcherCreation(t *testing.T) {
	w, err := New(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	if w.debounce != DefaultDebounce {
		t.Errorf("expected default debounce, got %v", w.debounce)
	}
	if w.Pending() != 0 {
		t.Errorf("expected no pending pairs, got %d", w.Pending())
	}
	w.fsWatcher.Close()
}

func TestWatcherStartCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "samples")

	w, err := New(dir, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer w.Stop()

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("expected directory to be created: %v", err)
	}
}

func TestWatcherEmitsPair(t *testing.T) {
	dir := t.TempDir()

	w, err := New(dir, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer w.Stop()

	writeFile(t, filepath.Join(dir, "unrelated.csv"), "x")
	writeFile(t, export.SummaryPath(dir, 1700000000), "Window Size,Type,BPM,UR,ZX\n")
	writeFile(t, export.HistoryPath(dir, 1700000000), "Press,Interval_ms,BPM_avg8,UR_avg8,ZX_avg8\n")

	select {
	case ev := <-w.Events():
		if ev.ID != 1700000000 {
			t.Errorf("unexpected id %d", ev.ID)
		}
		if ev.SummaryPath == "" || ev.HistoryPath == "" {
			t.Errorf("expected both paths, got %+v", ev)
		}
	case err := <-w.Errors():
		t.Fatalf("watcher error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	// both files belong to one pair, so no second event
	select {
	case ev := <-w.Events():
		t.Errorf("unexpected second event %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}
