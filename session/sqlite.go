package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hupe1980/tripmesh/core"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a durable ContextStore backed by a single SQLite file.
// Each Append is one INSERT, so partially written events are never visible.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // serializes writers to avoid SQLITE_BUSY
}

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS session_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		session_key TEXT NOT NULL,
		event_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_session_events_key ON session_events(session_key, seq);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get returns the latest event per kind, in append order.
func (s *SQLiteStore) Get(ctx context.Context, sessionKey string) (core.Snapshot, error) {
	query := `
		SELECT e.event_id, e.kind, e.payload, e.created_at
		FROM session_events e
		JOIN (
			SELECT kind, MAX(seq) AS seq FROM session_events
			WHERE session_key = ? GROUP BY kind
		) latest ON latest.seq = e.seq`

	rows, err := s.db.QueryContext(ctx, query, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	snap := core.Snapshot{}
	for rows.Next() {
		var (
			ev        core.Event
			kind      string
			payload   []byte
			createdAt int64
		)
		if err := rows.Scan(&ev.ID, &kind, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		ev.Kind = core.EventKind(kind)
		ev.Payload = payload
		ev.Timestamp = time.Unix(0, createdAt).UTC()
		snap[ev.Kind] = ev
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return snap, nil
}

// Append inserts ev at the end of the session log.
func (s *SQLiteStore) Append(ctx context.Context, sessionKey string, ev core.Event) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	query := `INSERT INTO session_events (session_key, event_id, kind, payload, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, sessionKey, ev.ID, string(ev.Kind), []byte(ev.Payload), ts.UnixNano()); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Clear deletes every event of the session.
func (s *SQLiteStore) Clear(ctx context.Context, sessionKey string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_events WHERE session_key = ?`, sessionKey); err != nil {
		return fmt.Errorf("delete events: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
