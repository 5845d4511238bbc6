package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeFormat is fixed width so that stored timestamps compare lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

var migrations = []string{
	`CREATE TABLE listener_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		listener INTEGER NOT NULL,
		poller INTEGER NOT NULL DEFAULT 0,
		mask INTEGER NOT NULL DEFAULT 0,
		kind TEXT NOT NULL,
		action TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX idx_listener_events_run ON listener_events (run_id, listener)`,
	`CREATE INDEX idx_listener_events_created ON listener_events (created_at)`,
	`CREATE TABLE log_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		level INTEGER NOT NULL,
		filename TEXT NOT NULL DEFAULT '',
		line INTEGER NOT NULL DEFAULT 0,
		message TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX idx_log_records_created ON log_records (created_at)`,
}

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, zero CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
// The database file is created with 0600 permissions and its parent directory with 0700.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
			if err != nil {
				return nil, fmt.Errorf("creating database file: %w", err)
			}
			_ = f.Close()
		} else if err == nil {
			if err := os.Chmod(path, 0600); err != nil {
				return nil, fmt.Errorf("securing database file: %w", err)
			}
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite handles one writer at a time
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		slog.Debug("applying migration", "version", i+1)
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", i+1); err != nil {
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Listener events ---

func (s *SQLiteStore) AddListenerEvent(e *ListenerEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`INSERT INTO listener_events (run_id, listener, poller, mask, kind, action, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Listener, e.Poller, e.Mask, e.Kind, e.Action, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("adding listener event: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

// ListListenerEvents returns matching rows, newest first.
func (s *SQLiteStore) ListListenerEvents(f ListenerEventFilter) ([]ListenerEvent, error) {
	query := "SELECT id, run_id, listener, poller, mask, kind, action, created_at FROM listener_events WHERE 1=1"
	var args []any

	if f.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, f.RunID)
	}
	if f.Listener != 0 {
		query += " AND listener = ?"
		args = append(args, f.Listener)
	}
	if f.Action != "" {
		query += " AND action = ?"
		args = append(args, f.Action)
	}
	if !f.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, formatTime(f.Since))
	}

	query += " ORDER BY id DESC"

	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing listener events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []ListenerEvent
	for rows.Next() {
		var e ListenerEvent
		var createdAt string
		if err := rows.Scan(&e.ID, &e.RunID, &e.Listener, &e.Poller, &e.Mask, &e.Kind, &e.Action, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning listener event: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- Log archive ---

func (s *SQLiteStore) AddLogRecord(r *LogRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`INSERT INTO log_records (run_id, level, filename, line, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Level, r.Filename, r.Line, r.Message, formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("adding log record: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		r.ID = id
	}
	return nil
}

// ListLogRecords returns matching records, newest first.
func (s *SQLiteStore) ListLogRecords(f LogRecordFilter) ([]LogRecord, error) {
	query := "SELECT id, run_id, level, filename, line, message, created_at FROM log_records WHERE 1=1"
	var args []any

	if f.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, f.RunID)
	}
	if f.MinLevel > 0 {
		query += " AND level >= ?"
		args = append(args, f.MinLevel)
	}
	if !f.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, formatTime(f.Since))
	}

	query += " ORDER BY id DESC"

	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing log records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []LogRecord
	for rows.Next() {
		var r LogRecord
		var createdAt string
		if err := rows.Scan(&r.ID, &r.RunID, &r.Level, &r.Filename, &r.Line, &r.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning log record: %w", err)
		}
		r.CreatedAt = parseTime(createdAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// --- Maintenance ---

// Cleanup deletes rows older than retention. A zero retention keeps everything.
func (s *SQLiteStore) Cleanup(retention time.Duration) error {
	if retention <= 0 {
		return nil
	}
	cutoff := formatTime(time.Now().UTC().Add(-retention))

	if _, err := s.db.Exec("DELETE FROM listener_events WHERE created_at < ?", cutoff); err != nil {
		return fmt.Errorf("cleaning listener events: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM log_records WHERE created_at < ?", cutoff); err != nil {
		return fmt.Errorf("cleaning log records: %w", err)
	}

	return nil
}

// --- Helpers ---

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(timeFormat, s)
	return t
}
