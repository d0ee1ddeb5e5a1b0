package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS clearing_rounds (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	round_id TEXT NOT NULL,
	record TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS clearing_rounds_ts ON clearing_rounds (ts);`

// SQLiteStore keeps clearing records in a SQLite database. Time and round
// filters run in SQL; the aggregator filter is applied on decoded records.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path. DSNs starting with
// "file:" are passed through untouched.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Append inserts rec.
func (s *SQLiteStore) Append(ctx context.Context, rec ClearingRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO clearing_rounds (ts, round_id, record) VALUES (?, ?, ?)`,
		rec.Timestamp.UnixNano(), rec.RoundID, string(b))
	return err
}

// Query returns matching records ordered by timestamp.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]ClearingRecord, error) {
	var args []any
	stmt := `SELECT record FROM clearing_rounds WHERE 1=1`
	if !q.Start.IsZero() {
		stmt += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		stmt += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.RoundID != "" {
		stmt += ` AND round_id = ?`
		args = append(args, q.RoundID)
	}
	stmt += ` ORDER BY ts, id`
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var res []ClearingRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r ClearingRecord
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		if q.Matches(r) {
			res = append(res, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
