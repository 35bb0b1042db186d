package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteJournal persists journal entries in a SQLite database.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens/creates the database at dbPath.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	if dbPath == "" {
		return nil, errors.New("journal path required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	journal := &SQLiteJournal{db: db}
	if err := journal.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return journal, nil
}

func (j *SQLiteJournal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TIMESTAMP NOT NULL,
		session TEXT NOT NULL,
		direction TEXT NOT NULL,
		kind TEXT NOT NULL,
		ref TEXT,
		result TEXT,
		payload BLOB
	);
	CREATE INDEX IF NOT EXISTS entries_session ON entries(session, timestamp);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (j *SQLiteJournal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record inserts one entry.
func (j *SQLiteJournal) Record(ctx context.Context, entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err := j.db.ExecContext(ctx, `
	INSERT INTO entries (timestamp, session, direction, kind, ref, result, payload)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Timestamp,
		entry.Session,
		string(entry.Direction),
		entry.Kind,
		entry.Ref,
		entry.Result,
		[]byte(entry.Payload),
	)
	return err
}

// Query returns matching entries oldest first.
func (j *SQLiteJournal) Query(ctx context.Context, filter JournalQuery) ([]Entry, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Session != "" {
		where = append(where, "session = ?")
		args = append(args, filter.Session)
	}
	if filter.Direction != "" {
		where = append(where, "direction = ?")
		args = append(args, string(filter.Direction))
	}
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, filter.Kind)
	}
	if !filter.TimeStart.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, filter.TimeStart)
	}
	if !filter.TimeEnd.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, filter.TimeEnd)
	}
	query := `SELECT id, timestamp, session, direction, kind, ref, result, payload FROM entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var (
			entry     Entry
			direction string
			ref       sql.NullString
			result    sql.NullString
			payload   []byte
		)
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.Session, &direction, &entry.Kind, &ref, &result, &payload); err != nil {
			return nil, err
		}
		entry.Direction = Direction(direction)
		entry.Ref = ref.String
		entry.Result = result.String
		if len(payload) > 0 {
			entry.Payload = payload
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, k := 0, len(entries)-1; i < k; i, k = i+1, k-1 {
		entries[i], entries[k] = entries[k], entries[i]
	}
	return entries, nil
}
