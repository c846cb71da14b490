// Package store implements the normalized message store: one SQLite file per
// imported chat log, plus the import pipeline, basic aggregates, and the
// derived conversational-session index.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// MessageType tags a message row. Values are fixed by the normalized import
// contract shared with the platform parsers.
type MessageType int

const (
	MessageText    MessageType = 0
	MessageImage   MessageType = 1
	MessageVoice   MessageType = 2
	MessageVideo   MessageType = 3
	MessageFile    MessageType = 4
	MessageSticker MessageType = 5
	MessageSystem  MessageType = 6
)

// SystemSenderName is the reserved sender name platform parsers use for
// system traffic. Such messages are stored but excluded from all analytics.
const SystemSenderName = "__system__"

// ErrSessionNotFound indicates the requested analysis session has no store
// file on disk. Read operations translate it into empty results.
var ErrSessionNotFound = errors.New("analysis session not found")

// Store owns the data directory and the registry of open session handles.
// It is the explicit context object all operations receive; there are no
// package-level singletons.
type Store struct {
	dir string

	mu   sync.Mutex
	open map[string]*sql.DB

	defaultGapThreshold int64
}

// Options configures a Store.
type Options struct {
	// GapThreshold is the default session gap threshold (seconds) written
	// into newly imported stores. Zero means DefaultGapThreshold.
	GapThreshold int64
}

// DefaultGapThreshold separates two conversational sessions when no
// per-store setting exists.
const DefaultGapThreshold int64 = 1800

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string, opts Options) (*Store, error) {
	if dir == "" {
		return nil, errors.New("store: data dir is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	threshold := opts.GapThreshold
	if threshold <= 0 {
		threshold = DefaultGapThreshold
	}

	return &Store{
		dir:                 dir,
		open:                make(map[string]*sql.DB),
		defaultGapThreshold: threshold,
	}, nil
}

// Dir returns the data directory holding the store files.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the store file path for a session id.
func (s *Store) Path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".db")
}

// handle returns the open database for a session, opening and registering it
// on first use. Opening a session that is already open reuses the handle.
func (s *Store) handle(ctx context.Context, sessionID string) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.open[sessionID]; ok {
		return db, nil
	}

	path := s.Path(sessionID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, ErrSessionNotFound
	}

	db, err := openDatabase(ctx, path)
	if err != nil {
		return nil, err
	}
	s.open[sessionID] = db
	return db, nil
}

// openDatabase opens a session store with WAL journaling and a busy timeout.
// SQLite does not tolerate concurrent writers, so the pool is capped at one
// connection.
func openDatabase(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return db, nil
}

// createSession creates a fresh store file with the full schema and registers
// the handle. The file must not already exist.
func (s *Store) createSession(ctx context.Context, sessionID string) (*sql.DB, error) {
	path := s.Path(sessionID)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("store file already exists: %s", path)
	}

	db, err := openDatabase(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		os.Remove(path)
		return nil, err
	}

	s.mu.Lock()
	s.open[sessionID] = db
	s.mu.Unlock()
	return db, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
	-- Import metadata (single row)
	CREATE TABLE IF NOT EXISTS meta (
		name          TEXT NOT NULL,
		platform      TEXT NOT NULL,
		type          TEXT NOT NULL,
		imported_at   INTEGER NOT NULL,
		gap_threshold INTEGER NOT NULL
	);

	-- Chat participants
	CREATE TABLE IF NOT EXISTS member (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		platform_id TEXT NOT NULL UNIQUE,
		name        TEXT NOT NULL
	);

	-- Nickname timeline; end_ts NULL marks the interval currently in use
	CREATE TABLE IF NOT EXISTS member_name_history (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		member_id INTEGER NOT NULL,
		name      TEXT NOT NULL,
		start_ts  INTEGER NOT NULL,
		end_ts    INTEGER,
		FOREIGN KEY(member_id) REFERENCES member(id)
	);

	-- Message facts; id doubles as the ingestion-order tiebreaker
	CREATE TABLE IF NOT EXISTS message (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		sender_id INTEGER NOT NULL,
		ts        INTEGER NOT NULL,
		type      INTEGER NOT NULL,
		content   TEXT,
		FOREIGN KEY(sender_id) REFERENCES member(id)
	);

	-- Derived conversational-session index, rebuildable from message
	CREATE TABLE IF NOT EXISTS chat_session (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		start_ts         INTEGER NOT NULL,
		end_ts           INTEGER NOT NULL,
		message_count    INTEGER NOT NULL,
		first_message_id INTEGER NOT NULL,
		summary          TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_message_ts ON message(ts);
	CREATE INDEX IF NOT EXISTS idx_message_sender ON message(sender_id);
	CREATE INDEX IF NOT EXISTS idx_name_history_member ON member_name_history(member_id);
	CREATE INDEX IF NOT EXISTS idx_chat_session_start ON chat_session(start_ts);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close closes the handle for one session. Closing an unopened session is a
// no-op.
func (s *Store) Close(sessionID string) error {
	s.mu.Lock()
	db, ok := s.open[sessionID]
	if ok {
		delete(s.open, sessionID)
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return db.Close()
}

// CloseAll closes every open handle. The first error is returned but all
// handles are closed regardless.
func (s *Store) CloseAll() error {
	s.mu.Lock()
	handles := s.open
	s.open = make(map[string]*sql.DB)
	s.mu.Unlock()

	var firstErr error
	for _, db := range handles {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Round2 rounds to two decimals, half away from zero.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Percentage expresses part/total as a 0-100 percentage rounded to two
// decimals. A zero total yields 0.
func Percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*10000) / 100
}
