package export

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// File name parts.
const (
	SummaryPrefix = "best_bpm_ur_"
	HistoryPrefix = "stats_history_"
	Ext           = ".csv"
)

// FileKind tells the two report files apart.
type FileKind int

const (
	KindSummary FileKind = iota + 1
	KindHistory
)

func (k FileKind) String() string {
	switch k {
	case KindSummary:
		return "summary"
	case KindHistory:
		return "history"
	}
	return fmt.Sprintf("FileKind(%d)", int(k))
}

// SummaryPath returns the summary file path for id in dir.
func SummaryPath(dir string, id int64) string {
	return filepath.Join(dir, SummaryPrefix+strconv.FormatInt(id, 10)+Ext)
}

// HistoryPath returns the history file path for id in dir.
func HistoryPath(dir string, id int64) string {
	return filepath.Join(dir, HistoryPrefix+strconv.FormatInt(id, 10)+Ext)
}

// ParseName extracts the export id and kind from a report file name.
// Directory components are ignored.
func ParseName(name string) (id int64, kind FileKind, ok bool) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, Ext) {
		return 0, 0, false
	}
	base = strings.TrimSuffix(base, Ext)

	var digits string
	switch {
	case strings.HasPrefix(base, SummaryPrefix):
		kind, digits = KindSummary, base[len(SummaryPrefix):]
	case strings.HasPrefix(base, HistoryPrefix):
		kind, digits = KindHistory, base[len(HistoryPrefix):]
	default:
		return 0, 0, false
	}
	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return 0, 0, false
	}
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return id, kind, true
}
