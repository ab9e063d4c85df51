package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"golang.org/x/crypto/blake2b"

	"tapmeter/internal/stats"
)

// ReadSummary parses a summary report. ZX is converted back to a ratio.
func ReadSummary(r io.Reader) ([]stats.Best, error) {
	recs, err := readRecords(r, SummaryHeader)
	if err != nil {
		return nil, err
	}

	out := make([]stats.Best, 0, len(recs))
	for i, rec := range recs {
		line := i + 2
		window, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("export: line %d: window: %w", line, err)
		}
		kind, err := stats.ParseKind(rec[1])
		if err != nil {
			return nil, fmt.Errorf("export: line %d: %w", line, err)
		}
		s, err := parseStats(rec[2:5])
		if err != nil {
			return nil, fmt.Errorf("export: line %d: %w", line, err)
		}
		out = append(out, stats.Best{Window: window, Kind: kind, Stats: s})
	}
	return out, nil
}

// ReadHistory parses a history report.
func ReadHistory(r io.Reader) ([]stats.TrailingRow, error) {
	recs, err := readRecords(r, HistoryHeader)
	if err != nil {
		return nil, err
	}

	out := make([]stats.TrailingRow, 0, len(recs))
	for i, rec := range recs {
		line := i + 2
		press, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("export: line %d: press: %w", line, err)
		}
		ms, err := strconv.ParseUint(rec[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("export: line %d: interval: %w", line, err)
		}
		row := stats.TrailingRow{Press: press, Millis: ms}
		if rec[2] != "" || rec[3] != "" || rec[4] != "" {
			s, err := parseStats(rec[2:5])
			if err != nil {
				return nil, fmt.Errorf("export: line %d: %w", line, err)
			}
			row.Stats = &s
		}
		out = append(out, row)
	}
	return out, nil
}

// ReadSummaryFile opens and parses a summary report.
func ReadSummaryFile(path string) ([]stats.Best, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := ReadSummary(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// Digest returns the BLAKE2b-256 digest of the file at path.
func Digest(path string) ([32]byte, error) {
	var sum [32]byte
	f, err := os.Open(path)
	if err != nil {
		return sum, err
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return sum, err
	}
	if _, err := io.Copy(h, f); err != nil {
		return sum, err
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

func readRecords(r io.Reader, header []string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)
	cr.TrimLeadingSpace = true

	got, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("export: empty report")
	}
	if err != nil {
		return nil, fmt.Errorf("export: header: %w", err)
	}
	if !slices.Equal(got, header) {
		return nil, fmt.Errorf("export: unexpected header %q", got)
	}

	recs, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return recs, nil
}

func parseStats(fields []string) (stats.Stats, error) {
	var vals [3]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return stats.Stats{}, fmt.Errorf("field %q: %w", f, err)
		}
		vals[i] = v
	}
	return stats.Stats{BPM: vals[0], UR: vals[1], ZX: vals[2] / 100}, nil
}
