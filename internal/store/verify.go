package store

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"

	"tapmeter/internal/export"
)

// FileState is the outcome of checking one report file against its digest.
type FileState int

const (
	FileOK FileState = iota
	FileMissing
	FileModified
	FileSkipped // the report was never written
)

func (s FileState) String() string {
	switch s {
	case FileOK:
		return "ok"
	case FileMissing:
		return "missing"
	case FileModified:
		return "modified"
	case FileSkipped:
		return "skipped"
	}
	return fmt.Sprintf("FileState(%d)", int(s))
}

// FileCheck is the verification result for one report file.
type FileCheck struct {
	Kind  export.FileKind
	Path  string
	State FileState
}

// VerifyExport recomputes the digests of an export's files and compares them
// with the catalogue.
func VerifyExport(e *Export) ([]FileCheck, error) {
	checks := []FileCheck{
		{Kind: export.KindSummary, Path: e.SummaryPath},
		{Kind: export.KindHistory, Path: e.HistoryPath},
	}
	want := [][]byte{e.SummaryDigest, e.HistoryDigest}

	for i := range checks {
		c := &checks[i]
		if c.Path == "" {
			c.State = FileSkipped
			continue
		}
		sum, err := export.Digest(c.Path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				c.State = FileMissing
				continue
			}
			return nil, fmt.Errorf("digest %s: %w", c.Path, err)
		}
		if bytes.Equal(sum[:], want[i]) {
			c.State = FileOK
		} else {
			c.State = FileModified
		}
	}
	return checks, nil
}

// VerifyAll checks every export and returns the ids with a missing or
// modified file.
func (s *Store) VerifyAll() ([]int64, error) {
	exports, err := s.ListExports(0)
	if err != nil {
		return nil, err
	}

	var bad []int64
	for i := range exports {
		checks, err := VerifyExport(&exports[i])
		if err != nil {
			return nil, err
		}
		for _, c := range checks {
			if c.State == FileMissing || c.State == FileModified {
				bad = append(bad, exports[i].ID)
				break
			}
		}
	}
	return bad, nil
}
