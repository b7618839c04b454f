// Package history keeps an append-only SQLite audit log of sessions, state
// transitions, handled popups and availability checks. The automation never
// reads it back; it exists for the operator.
package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	apperrors "github.com/cheminotify/agent/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id  TEXT PRIMARY KEY,
	course      TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	ended_at    TEXT,
	reason      TEXT,
	iterations  INTEGER
);

CREATE TABLE IF NOT EXISTS transitions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	from_state  TEXT NOT NULL,
	to_state    TEXT NOT NULL,
	iteration   INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	error       TEXT,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS popups (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT,
	title       TEXT NOT NULL,
	text        TEXT,
	outcome     TEXT NOT NULL,
	action      TEXT NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS checks (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT,
	course      TEXT NOT NULL,
	available   INTEGER NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transitions_session ON transitions(session_id);
`

// timeLayout sorts lexicographically, unlike RFC3339Nano.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Kind identifies an event.
type Kind string

const (
	SessionStart Kind = "session_start"
	SessionEnd   Kind = "session_end"
	Transition   Kind = "transition"
	Popup        Kind = "popup"
	Check        Kind = "check"
)

// Event is one audit record. Which fields are meaningful depends on Kind.
type Event struct {
	Kind      Kind
	SessionID string
	Time      time.Time

	// SessionStart, SessionEnd, Check
	Course     string
	Reason     string
	Iterations int
	Available  bool

	// Transition
	From, To  string
	Iteration int
	Duration  time.Duration
	Error     string

	// Popup
	Title, Text     string
	Outcome, Action string
}

// Entry is a row of the combined recent-activity view.
type Entry struct {
	Kind      Kind
	SessionID string
	Time      time.Time
	Summary   string
}

// Session summarizes one automation session.
type Session struct {
	ID         string
	Course     string
	StartedAt  time.Time
	EndedAt    time.Time // zero while running or after a crash
	Reason     string
	Iterations int
}

// Store persists events in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperrors.Wrapf(err, apperrors.Internal, "create %s", dir)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "open history db")
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, apperrors.Internal, "pragma")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, apperrors.Internal, "migrate history db")
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// WriteBatch stores events in one transaction.
func (s *Store) WriteBatch(ctx context.Context, events []Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.Internal, "begin tx")
	}
	defer tx.Rollback()

	for _, e := range events {
		if err := write(ctx, tx, e); err != nil {
			return apperrors.Wrapf(err, apperrors.Internal, "write %s event", e.Kind)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(err, apperrors.Internal, "commit")
	}
	return nil
}

func write(ctx context.Context, tx *sql.Tx, e Event) error {
	at := e.Time.UTC().Format(timeLayout)
	var err error
	switch e.Kind {
	case SessionStart:
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO sessions (session_id, course, started_at) VALUES (?, ?, ?)`,
			e.SessionID, e.Course, at)
	case SessionEnd:
		_, err = tx.ExecContext(ctx,
			`UPDATE sessions SET ended_at = ?, reason = ?, iterations = ? WHERE session_id = ?`,
			at, e.Reason, e.Iterations, e.SessionID)
	case Transition:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO transitions (session_id, from_state, to_state, iteration, duration_ms, error, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.SessionID, e.From, e.To, e.Iteration, e.Duration.Milliseconds(), nullable(e.Error), at)
	case Popup:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO popups (session_id, title, text, outcome, action, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			nullable(e.SessionID), e.Title, e.Text, e.Outcome, e.Action, at)
	case Check:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO checks (session_id, course, available, created_at) VALUES (?, ?, ?, ?)`,
			nullable(e.SessionID), e.Course, e.Available, at)
	default:
		err = apperrors.Newf(apperrors.InvalidArgument, "unknown event kind %q", e.Kind)
	}
	return err
}

const recentQuery = `
SELECT kind, session_id, created_at, summary FROM (
	SELECT 'session_start' AS kind, session_id, started_at AS created_at, 'session started for ' || course AS summary FROM sessions
	UNION ALL
	SELECT 'session_end', session_id, ended_at, 'session ended: ' || reason || ' after ' || iterations || ' iterations' FROM sessions WHERE ended_at IS NOT NULL
	UNION ALL
	SELECT 'transition', session_id, created_at, from_state || ' -> ' || to_state || COALESCE(' (' || error || ')', '') FROM transitions
	UNION ALL
	SELECT 'popup', COALESCE(session_id, ''), created_at, outcome || ' popup "' || title || '" (' || action || ')' FROM popups
	UNION ALL
	SELECT 'check', COALESCE(session_id, ''), created_at, course || CASE available WHEN 1 THEN ' available' ELSE ' full' END FROM checks
)
ORDER BY created_at DESC
LIMIT ?`

// Recent returns the latest entries across every table, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, recentQuery, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "query recent")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var kind, at string
		if err := rows.Scan(&kind, &e.SessionID, &at, &e.Summary); err != nil {
			return nil, apperrors.Wrap(err, apperrors.Internal, "scan recent")
		}
		e.Kind = Kind(kind)
		e.Time, _ = time.Parse(timeLayout, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Sessions returns the latest sessions, newest first.
func (s *Store) Sessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, course, started_at, COALESCE(ended_at, ''), COALESCE(reason, ''), COALESCE(iterations, 0)
		 FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "query sessions")
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var ss Session
		var started, ended string
		if err := rows.Scan(&ss.ID, &ss.Course, &started, &ended, &ss.Reason, &ss.Iterations); err != nil {
			return nil, apperrors.Wrap(err, apperrors.Internal, "scan session")
		}
		ss.StartedAt, _ = time.Parse(timeLayout, started)
		if ended != "" {
			ss.EndedAt, _ = time.Parse(timeLayout, ended)
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
