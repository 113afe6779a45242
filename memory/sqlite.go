package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentrun/core"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements core.MemoryStore on a SQLite database. Sequence
// numbers are assigned inside a write transaction so each session's turn log
// stays gapless under concurrent writers.
type SQLiteStore struct {
	db *sql.DB
}

var _ core.MemoryStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at dsn and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			actor_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			last_activity_at DATETIME NOT NULL,
			turn_count INTEGER NOT NULL DEFAULT 0,
			metadata TEXT,
			PRIMARY KEY (actor_id, session_id)
		)`,
		`CREATE TABLE IF NOT EXISTS turns (
			event_id TEXT PRIMARY KEY,
			actor_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			seq INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			metadata TEXT,
			UNIQUE (actor_id, session_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(actor_id, session_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_actor ON sessions(actor_id, last_activity_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetOrCreateSession creates the session if absent. INSERT OR IGNORE plus a
// re-read makes concurrent creates for the same key converge to one row.
func (s *SQLiteStore) GetOrCreateSession(ctx context.Context, actorID, sessionID string) (*core.Session, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (actor_id, session_id, created_at, last_activity_at, turn_count, metadata)
		 VALUES (?, ?, ?, ?, 0, '{}')`,
		actorID, sessionID, now, now)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s.GetSession(ctx, actorID, sessionID)
}

// GetSession retrieves a session or core.ErrSessionNotFound.
func (s *SQLiteStore) GetSession(ctx context.Context, actorID, sessionID string) (*core.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT actor_id, session_id, created_at, last_activity_at, turn_count, metadata
		 FROM sessions WHERE actor_id = ? AND session_id = ?`,
		actorID, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", core.ErrSessionNotFound, actorID, sessionID)
	}
	return sess, err
}

// ListSessions returns the actor's sessions ordered by most recent activity.
func (s *SQLiteStore) ListSessions(ctx context.Context, actorID string) ([]*core.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT actor_id, session_id, created_at, last_activity_at, turn_count, metadata
		 FROM sessions WHERE actor_id = ? ORDER BY last_activity_at DESC`,
		actorID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*core.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// ReadTurns returns up to limit most recent turns oldest-first.
func (s *SQLiteStore) ReadTurns(ctx context.Context, actorID, sessionID string, limit int) ([]core.Turn, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unbounded
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, actor_id, session_id, role, content, seq, created_at, metadata FROM (
			SELECT event_id, actor_id, session_id, role, content, seq, created_at, metadata
			FROM turns WHERE actor_id = ? AND session_id = ?
			ORDER BY seq DESC LIMIT ?
		 ) ORDER BY seq ASC`,
		actorID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("read turns: %w", err)
	}
	defer rows.Close()

	turns := []core.Turn{}
	for rows.Next() {
		var t core.Turn
		var metadata sql.NullString
		if err := rows.Scan(&t.EventID, &t.ActorID, &t.SessionID, &t.Role, &t.Content, &t.Seq, &t.CreatedAt, &metadata); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if metadata.Valid && metadata.String != "" {
			_ = json.Unmarshal([]byte(metadata.String), &t.Metadata)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// WriteTurn appends a single turn, assigning the next sequence number inside
// a transaction.
func (s *SQLiteStore) WriteTurn(ctx context.Context, t core.Turn) error {
	if !t.Role.Valid() {
		return fmt.Errorf("invalid turn role %q", t.Role)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write: %w", err)
	}
	defer tx.Rollback()

	var next int64
	row := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE actor_id = ? AND session_id = ?`,
		t.ActorID, t.SessionID)
	if err := row.Scan(&next); err != nil {
		return fmt.Errorf("next seq: %w", err)
	}

	metadata, _ := json.Marshal(t.Metadata)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO turns (event_id, actor_id, session_id, role, content, seq, created_at, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.EventID, t.ActorID, t.SessionID, string(t.Role), t.Content, next, t.CreatedAt, string(metadata))
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}

	return tx.Commit()
}

// UpdateSessionActivity advances turn_count and last_activity_at.
func (s *SQLiteStore) UpdateSessionActivity(ctx context.Context, actorID, sessionID string, turnsAdded int, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET turn_count = turn_count + ?, last_activity_at = ?
		 WHERE actor_id = ? AND session_id = ?`,
		turnsAdded, at.UTC(), actorID, sessionID)
	if err != nil {
		return fmt.Errorf("update session activity: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s/%s", core.ErrSessionNotFound, actorID, sessionID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*core.Session, error) {
	var sess core.Session
	var metadata sql.NullString
	err := row.Scan(&sess.ActorID, &sess.SessionID, &sess.CreatedAt, &sess.LastActivityAt, &sess.TurnCount, &metadata)
	if err != nil {
		return nil, err
	}
	sess.Metadata = map[string]string{}
	if metadata.Valid && metadata.String != "" {
		_ = json.Unmarshal([]byte(metadata.String), &sess.Metadata)
	}
	return &sess, nil
}
