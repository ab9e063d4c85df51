package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tapmeter/internal/stats"
)

// ErrNotFound is returned when an export id is not in the catalogue.
var ErrNotFound = errors.New("store: export not found")

// Store represents the SQLite export catalogue.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at the given path and runs migrations.
func Open(path string) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// PutExport inserts or replaces an export and its summary rows. An existing
// session name is kept when e.Name is empty.
func (s *Store) PutExport(e *Export, rows []stats.Best) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO exports (id, exported_at, intervals, summary_path, history_path, summary_digest, history_digest, name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			exported_at    = excluded.exported_at,
			intervals      = excluded.intervals,
			summary_path   = excluded.summary_path,
			history_path   = excluded.history_path,
			summary_digest = excluded.summary_digest,
			history_digest = excluded.history_digest,
			name           = CASE WHEN excluded.name = '' THEN exports.name ELSE excluded.name END`,
		e.ID, e.ExportedAt.UnixNano(), e.Intervals, e.SummaryPath, e.HistoryPath,
		e.SummaryDigest, e.HistoryDigest, e.Name,
	)
	if err != nil {
		return fmt.Errorf("upsert export: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM best_rows WHERE export_id = ?`, e.ID); err != nil {
		return fmt.Errorf("clear best rows: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO best_rows (export_id, window_size, kind, bpm, ur, zx)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(e.ID, r.Window, r.Kind.String(), r.Stats.BPM, r.Stats.UR, r.Stats.ZX); err != nil {
			return fmt.Errorf("insert best row: %w", err)
		}
	}

	return tx.Commit()
}

// GetExport retrieves an export by id.
func (s *Store) GetExport(id int64) (*Export, error) {
	row := s.db.QueryRow(`
		SELECT id, exported_at, intervals, summary_path, history_path, summary_digest, history_digest, name
		FROM exports WHERE id = ?`, id)
	e, err := scanExport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get export: %w", err)
	}
	return e, nil
}

// ListExports returns exports newest first. A limit of zero or less returns all.
func (s *Store) ListExports(limit int) ([]Export, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT id, exported_at, intervals, summary_path, history_path, summary_digest, history_digest, name
		FROM exports ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query exports: %w", err)
	}
	defer rows.Close()

	var out []Export
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// BestRows returns the summary rows of an export in window then kind order.
func (s *Store) BestRows(id int64) ([]BestRow, error) {
	rows, err := s.db.Query(`
		SELECT export_id, window_size, kind, bpm, ur, zx
		FROM best_rows WHERE export_id = ?
		ORDER BY window_size ASC, CASE kind WHEN 'BPM' THEN 0 WHEN 'UR' THEN 1 ELSE 2 END`, id)
	if err != nil {
		return nil, fmt.Errorf("query best rows: %w", err)
	}
	defer rows.Close()

	var out []BestRow
	for rows.Next() {
		var r BestRow
		var kind string
		if err := rows.Scan(&r.ExportID, &r.Window, &kind, &r.Stats.BPM, &r.Stats.UR, &r.Stats.ZX); err != nil {
			return nil, fmt.Errorf("scan best row: %w", err)
		}
		if r.Kind, err = stats.ParseKind(kind); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Rename sets the display name of an export.
func (s *Store) Rename(id int64, name string) error {
	res, err := s.db.Exec(`UPDATE exports SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("rename export: %w", err)
	}
	return requireAffected(res)
}

// DeleteExport removes an export and its rows from the catalogue. The report
// files are left alone.
func (s *Store) DeleteExport(id int64) error {
	res, err := s.db.Exec(`DELETE FROM exports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete export: %w", err)
	}
	return requireAffected(res)
}

// PersonalBests returns, per window size, the best row of the given kind
// across all exports. Ties go to the earliest export.
func (s *Store) PersonalBests(kind stats.Kind) ([]PersonalBest, error) {
	var order string
	switch kind {
	case stats.KindBPM:
		order = "b.bpm DESC"
	case stats.KindUR:
		order = "b.ur ASC"
	case stats.KindZX:
		order = "ABS(b.zx) ASC"
	default:
		return nil, fmt.Errorf("personal bests: unknown kind %v", kind)
	}

	rows, err := s.db.Query(`
		SELECT b.window_size, b.export_id, e.name, b.bpm, b.ur, b.zx
		FROM best_rows b JOIN exports e ON e.id = b.export_id
		WHERE b.kind = ?
		ORDER BY b.window_size ASC, `+order+`, b.export_id ASC`, kind.String())
	if err != nil {
		return nil, fmt.Errorf("query personal bests: %w", err)
	}
	defer rows.Close()

	var out []PersonalBest
	for rows.Next() {
		var pb PersonalBest
		if err := rows.Scan(&pb.Window, &pb.ExportID, &pb.Name, &pb.Stats.BPM, &pb.Stats.UR, &pb.Stats.ZX); err != nil {
			return nil, fmt.Errorf("scan personal best: %w", err)
		}
		if n := len(out); n > 0 && out[n-1].Window == pb.Window {
			continue
		}
		out = append(out, pb)
	}
	return out, rows.Err()
}

// Count returns the number of indexed exports.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM exports`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count exports: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExport(row rowScanner) (*Export, error) {
	var e Export
	var exportedAt int64
	err := row.Scan(&e.ID, &exportedAt, &e.Intervals, &e.SummaryPath, &e.HistoryPath,
		&e.SummaryDigest, &e.HistoryDigest, &e.Name)
	if err != nil {
		return nil, err
	}
	e.ExportedAt = time.Unix(0, exportedAt)
	return &e, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// SchemaVersion returns the applied and latest migration versions.
func (s *Store) SchemaVersion() (current, latest int, err error) {
	st, err := GetMigrationStatus(s.db)
	if err != nil {
		return 0, 0, err
	}
	return st.CurrentVersion, st.LatestVersion, nil
}

// RollbackSchema reverts the newest applied migration and returns the
// version left in place. The next Open migrates forward again.
func (s *Store) RollbackSchema() (int, error) {
	if err := RollbackMigration(s.db); err != nil {
		return 0, err
	}
	current, _, err := s.SchemaVersion()
	return current, err
}

// Check verifies the connection and schema, for health reporting.
func (s *Store) Check() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return ValidateSchema(s.db)
}
