package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// History event names written by the shell.
const (
	EventLogin         = "login"
	EventLogout        = "logout"
	EventSessionEnded  = "session_ended"
	EventRealtime      = "realtime_event"
	EventChannelFailed = "channel_error"
)

// HistoryEntry is one line of the local session audit log.
type HistoryEntry struct {
	ID        string                 `json:"id"`
	Event     string                 `json:"event"`
	Scope     string                 `json:"scope,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Cursor is the last realtime event seen on a channel scope.
type Cursor struct {
	Scope      string    `json:"scope"`
	EventID    string    `json:"eventId"`
	OccurredAt string    `json:"occurredAt,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Store wraps the SQLite file holding the local history. Credentials are
// never written here.
type Store struct {
	db *sql.DB
}

// Open initializes the datastore at path, creating parent directories.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	conn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", conn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite history: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event TEXT NOT NULL,
			scope TEXT,
			metadata TEXT,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_history_event ON history(event);`,
		`CREATE TABLE IF NOT EXISTS cursors (
			scope TEXT PRIMARY KEY,
			event_id TEXT NOT NULL,
			occurred_at TEXT,
			updated_at TIMESTAMP NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("schema apply failed: %w", err)
		}
	}
	return nil
}

// Close shuts down the datastore.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AppendHistory writes an entry to the history log.
func (s *Store) AppendHistory(entry *HistoryEntry) error {
	if entry.Event == "" {
		return errors.New("history event required")
	}
	entry.CreatedAt = time.Now().UTC()
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`INSERT INTO history (event, scope, metadata, created_at) VALUES (?, ?, ?, ?)`,
		entry.Event, entry.Scope, string(metadata), entry.CreatedAt,
	)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		entry.ID = fmt.Sprintf("%d", id)
	}
	return nil
}

// ListHistory returns the newest entries, optionally filtered by event name.
func (s *Store) ListHistory(limit int, event string) ([]HistoryEntry, error) {
	query := `SELECT id, event, scope, metadata, created_at FROM history`
	var args []interface{}
	if event != "" {
		query += ` WHERE event = ?`
		args = append(args, event)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var scope, metadata sql.NullString
		var id int64
		if err := rows.Scan(&id, &e.Event, &scope, &metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ID = fmt.Sprintf("%d", id)
		e.Scope = scope.String
		if metadata.Valid {
			_ = json.Unmarshal([]byte(metadata.String), &e.Metadata)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveCursor records the last event seen on scope.
func (s *Store) SaveCursor(c Cursor) error {
	if c.Scope == "" || c.EventID == "" {
		return errors.New("cursor scope and event id required")
	}
	c.UpdatedAt = time.Now().UTC()
	_, err := s.db.Exec(`INSERT INTO cursors (scope, event_id, occurred_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(scope) DO UPDATE SET event_id=excluded.event_id, occurred_at=excluded.occurred_at, updated_at=excluded.updated_at`,
		c.Scope, c.EventID, c.OccurredAt, c.UpdatedAt,
	)
	return err
}

// GetCursor loads the cursor for scope. A missing cursor returns sql.ErrNoRows.
func (s *Store) GetCursor(scope string) (*Cursor, error) {
	row := s.db.QueryRow(`SELECT scope, event_id, occurred_at, updated_at FROM cursors WHERE scope=?`, scope)
	var (
		c          Cursor
		occurredAt sql.NullString
	)
	if err := row.Scan(&c.Scope, &c.EventID, &occurredAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.OccurredAt = occurredAt.String
	return &c, nil
}
