package store

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"tapmeter/internal/export"
	"tapmeter/internal/interval"
)

func writePair(t *testing.T, dir string, n int) *export.Result {
	t.Helper()
	ex := export.New(export.Config{
		Dir:    dir,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	d := make([]interval.Delta, n)
	for i := range d {
		d[i] = interval.Delta{Millis: uint64(150 + i%3), Z: i%2 == 0}
	}
	res, err := ex.Export(d)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	return res
}

func TestIndexPairMatchesExport(t *testing.T) {
	res := writePair(t, t.TempDir(), 40)
	s := openTestStore(t)

	e, err := s.IndexPair(res.ID, res.Summary.Path, res.History.Path)
	if err != nil {
		t.Fatalf("IndexPair failed: %v", err)
	}

	want := FromResult(res)
	if !bytes.Equal(e.SummaryDigest, want.SummaryDigest) || !bytes.Equal(e.HistoryDigest, want.HistoryDigest) {
		t.Error("digests of the files on disk differ from the ones computed while writing")
	}
	if e.Intervals != 40 {
		t.Errorf("intervals = %d, want 40", e.Intervals)
	}
	if e.ExportedAt.Unix() != res.ID {
		t.Errorf("exported_at = %v, want unix %d", e.ExportedAt, res.ID)
	}

	rows, err := s.BestRows(res.ID)
	if err != nil {
		t.Fatalf("BestRows failed: %v", err)
	}
	if len(rows) != len(res.Best) {
		t.Errorf("indexed %d rows, want %d", len(rows), len(res.Best))
	}
}

func TestIndexPairKeepsName(t *testing.T) {
	res := writePair(t, t.TempDir(), 25)
	s := openTestStore(t)

	if _, err := s.IndexPair(res.ID, res.Summary.Path, res.History.Path); err != nil {
		t.Fatalf("IndexPair failed: %v", err)
	}
	if err := s.Rename(res.ID, "warmup"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if _, err := s.IndexPair(res.ID, res.Summary.Path, res.History.Path); err != nil {
		t.Fatalf("second IndexPair failed: %v", err)
	}

	got, err := s.GetExport(res.ID)
	if err != nil {
		t.Fatalf("GetExport failed: %v", err)
	}
	if got.Name != "warmup" {
		t.Errorf("name = %q, want warmup", got.Name)
	}
}

func TestIndexPairHistoryOnly(t *testing.T) {
	res := writePair(t, t.TempDir(), 10)
	if res.Summary != nil {
		t.Fatal("expected summary to be skipped for 10 intervals")
	}

	e, rows, err := ReadPair(res.ID, "", res.History.Path)
	if err != nil {
		t.Fatalf("ReadPair failed: %v", err)
	}
	if len(rows) != 0 || e.SummaryDigest != nil {
		t.Errorf("unexpected summary data: rows=%d digest=%x", len(rows), e.SummaryDigest)
	}
	if e.Intervals != 10 {
		t.Errorf("intervals = %d, want 10", e.Intervals)
	}
}

func TestReadPairNoFiles(t *testing.T) {
	if _, _, err := ReadPair(1, "", ""); err == nil {
		t.Error("expected error without files")
	}
}
