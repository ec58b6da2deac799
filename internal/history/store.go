// Package history archives finished sessions in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // driver: sqlite
)

// ErrNotFound is returned by Get for unknown session ids.
var ErrNotFound = errors.New("session not found in history")

// Mode identifies which kind of session produced an entry.
type Mode string

const (
	ModeInterview Mode = "interview"
	ModeMath      Mode = "math"
)

// Entry is one archived session.
type Entry struct {
	SessionID string          `json:"session_id" yaml:"session_id"`
	Mode      Mode            `json:"mode" yaml:"mode"`
	Title     string          `json:"title" yaml:"title"`
	Score     float64         `json:"score" yaml:"score"`
	CreatedAt time.Time       `json:"created_at" yaml:"created_at"`
	Payload   json.RawMessage `json:"payload" yaml:"-"`
}

// Detail decodes Payload into generic values for re-encoding.
func (e Entry) Detail() (any, error) {
	if len(e.Payload) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(e.Payload, &out); err != nil {
		return nil, fmt.Errorf("decode payload for %s: %w", e.SessionID, err)
	}
	return out, nil
}

// Store is the SQLite-backed archive.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating when missing) the archive at path and ensures the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure history schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
  session_id TEXT PRIMARY KEY,
  mode TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  score REAL NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL,
  payload_json TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS sessions_created_at ON sessions (created_at DESC);
`

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Save inserts or replaces the entry for e.SessionID.
func (s *Store) Save(ctx context.Context, e Entry) error {
	if strings.TrimSpace(e.SessionID) == "" {
		return errors.New("history entry needs a session id")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO sessions (session_id,mode,title,score,created_at,payload_json)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (session_id) DO UPDATE SET mode=EXCLUDED.mode, title=EXCLUDED.title, score=EXCLUDED.score,
		created_at=EXCLUDED.created_at, payload_json=EXCLUDED.payload_json`,
		e.SessionID, string(e.Mode), e.Title, e.Score, e.CreatedAt.UnixMilli(), string(e.Payload))
	if err != nil {
		return fmt.Errorf("save %s: %w", e.SessionID, err)
	}
	return nil
}

// List returns the newest entries first. A limit <= 0 returns everything.
// Payloads are omitted.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT session_id,mode,title,score,created_at FROM sessions ORDER BY created_at DESC, session_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			mode    string
			created int64
		)
		if err := rows.Scan(&e.SessionID, &mode, &e.Title, &e.Score, &created); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.Mode = Mode(mode)
		e.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns one entry including its payload.
func (s *Store) Get(ctx context.Context, sessionID string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id,mode,title,score,created_at,payload_json FROM sessions WHERE session_id=$1`, sessionID)

	var (
		e       Entry
		mode    string
		created int64
		payload string
	)
	if err := row.Scan(&e.SessionID, &mode, &e.Title, &e.Score, &created, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
		}
		return Entry{}, fmt.Errorf("get %s: %w", sessionID, err)
	}
	e.Mode = Mode(mode)
	e.CreatedAt = time.UnixMilli(created).UTC()
	if payload != "" {
		e.Payload = json.RawMessage(payload)
	}
	return e, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
