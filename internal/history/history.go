// Package history records completed operations in a per-session SQLite
// database so past launches, relocations and kills can be inspected after
// the fact.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the operation history for one session.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS operations (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  expert_id INTEGER NOT NULL,
  operation TEXT NOT NULL,
  branch TEXT,
  outcome TEXT NOT NULL,
  detail TEXT,
  started_ts TEXT NOT NULL,
  finished_ts TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_operations_expert ON operations(expert_id);
`)
	if err != nil {
		return fmt.Errorf("migrating history schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record is one completed operation.
type Record struct {
	ID       int64
	ExpertID int
	// Operation is the operation name ("launch", "relocate", "kill").
	Operation string
	// Branch is the worktree branch involved, when the operation had one.
	Branch string
	// Outcome is "ok", "not-ready" or "error".
	Outcome  string
	Detail   string
	Started  time.Time
	Finished time.Time
}

// Outcomes recorded for operations.
const (
	OutcomeOK       = "ok"
	OutcomeNotReady = "not-ready"
	OutcomeError    = "error"
)

// Append stores one finished operation.
func (s *Store) Append(r Record) error {
	_, err := s.db.Exec(
		`INSERT INTO operations (expert_id, operation, branch, outcome, detail, started_ts, finished_ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ExpertID, r.Operation, r.Branch, r.Outcome, r.Detail,
		r.Started.UTC().Format(time.RFC3339Nano),
		r.Finished.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("appending history record: %w", err)
	}
	return nil
}

// Recent returns the most recent operations, newest first.
func (s *Store) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, expert_id, operation, branch, outcome, detail, started_ts, finished_ts
		 FROM operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ForExpert returns the most recent operations for one expert, newest first.
func (s *Store) ForExpert(expertID, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, expert_id, operation, branch, outcome, detail, started_ts, finished_ts
		 FROM operations WHERE expert_id = ? ORDER BY id DESC LIMIT ?`, expertID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var r Record
		var branch, detail sql.NullString
		var started, finished string
		if err := rows.Scan(&r.ID, &r.ExpertID, &r.Operation, &branch, &r.Outcome, &detail, &started, &finished); err != nil {
			return nil, fmt.Errorf("scanning history record: %w", err)
		}
		r.Branch = branch.String
		r.Detail = detail.String
		r.Started, _ = time.Parse(time.RFC3339Nano, started)
		r.Finished, _ = time.Parse(time.RFC3339Nano, finished)
		records = append(records, r)
	}
	return records, rows.Err()
}
