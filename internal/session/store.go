package session

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "modernc.org/sqlite"

	"github.com/atrium-ai/atrium/internal/logging"
	"github.com/atrium-ai/atrium/pkg/types"
)

// ErrNotFound is returned when a referenced session does not exist.
var ErrNotFound = errors.New("session not found")

const (
	// Pool sizing, mirrored on the database/sql pool.
	maxOpenConns    = 10
	maxIdleConns    = 20
	connMaxLifetime = time.Hour

	// Transient-fault policy: bounded retries with a fixed delay.
	maxRetries = 3
	retryDelay = time.Second
)

const schema = `
CREATE TABLE IF NOT EXISTS agent_sessions (
	id          TEXT PRIMARY KEY,
	app_name    TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	session_id  TEXT NOT NULL,
	events_json TEXT NOT NULL DEFAULT '[]',
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agent_sessions_app  ON agent_sessions(app_name);
CREATE INDEX IF NOT EXISTS idx_agent_sessions_user ON agent_sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_agent_sessions_sid  ON agent_sessions(session_id);
`

// Store is the durable, keyed, append-only event log per
// (app, user, session) triple, backed by a relational table with one row
// per session and a JSON-encoded event array column.
type Store struct {
	mu   sync.Mutex // guards db swap on reconnect
	path string
	db   *sql.DB
}

// Open opens (creating if needed) the session store at the given sqlite
// database path.
func Open(path string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create session schema: %w", err)
	}

	return &Store{path: path, db: db}, nil
}

// openDB opens a pooled connection to the sqlite database. WAL mode lets
// readers proceed during writes; busy_timeout bounds lock waits instead
// of failing immediately.
func openDB(path string) (*sql.DB, error) {
	// _txlock=immediate makes write transactions take the lock up front,
	// so concurrent read-modify-write appends serialize cleanly.
	dsn := path + "?_txlock=immediate&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return db, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func (s *Store) conn() *sql.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db
}

// reconnect discards the current connection pool and opens a fresh one.
// Used between retry attempts after a connection-class failure.
func (s *Store) reconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		_ = s.db.Close()
	}
	db, err := openDB(s.path)
	if err != nil {
		logging.Error().Err(err).Msg("session store reconnect failed")
		return
	}
	s.db = db
}

// sessionKey builds the composite primary key for one session row.
func sessionKey(appName, userID, sessionID string) string {
	return appName + ":" + userID + ":" + sessionID
}

// isTransient reports whether an error looks like a recoverable
// connection-level fault. Other error classes propagate without retry.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "broken pipe")
}

// withRetry runs fn, retrying transient connection faults a bounded
// number of times with a fixed delay, recreating the pool between
// attempts. Non-transient errors return immediately.
func (s *Store) withRetry(ctx context.Context, fn func(db *sql.DB) error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(retryDelay), maxRetries-1),
		ctx,
	)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn(s.conn())
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return backoff.Permanent(err)
		}

		logging.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("maxRetries", maxRetries).
			Msg("transient database error, recreating connection pool")
		s.reconnect()
		return err
	}, policy)
}

// Create creates a new session. Idempotent: if the row already exists,
// the current materialized state is returned instead of an error.
func (s *Store) Create(ctx context.Context, appName, userID, sessionID string) (*types.Session, error) {
	key := sessionKey(appName, userID, sessionID)

	existing, err := s.Get(ctx, appName, userID, sessionID)
	if err == nil {
		logging.Debug().Str("key", key).Msg("session already exists, returning existing")
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = s.conn().ExecContext(ctx,
		`INSERT INTO agent_sessions (id, app_name, user_id, session_id, events_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, '[]', ?, ?)`,
		key, appName, userID, sessionID, now, now)
	if err != nil {
		// Lost a create race: another writer inserted the row first.
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return s.Get(ctx, appName, userID, sessionID)
		}
		return nil, fmt.Errorf("create session %s: %w", key, err)
	}

	logging.Info().Str("key", key).Msg("created session")
	return &types.Session{AppName: appName, UserID: userID, ID: sessionID, Events: []*types.Event{}}, nil
}

// Get retrieves a session, materializing every stored event in order.
// Transient connection faults are retried internally.
func (s *Store) Get(ctx context.Context, appName, userID, sessionID string) (*types.Session, error) {
	key := sessionKey(appName, userID, sessionID)

	var eventsJSON string
	err := s.withRetry(ctx, func(db *sql.DB) error {
		row := db.QueryRowContext(ctx,
			`SELECT events_json FROM agent_sessions WHERE id = ?`, key)
		return row.Scan(&eventsJSON)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", key, err)
	}

	events, err := decodeEvents(eventsJSON)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", key, err)
	}

	return &types.Session{AppName: appName, UserID: userID, ID: sessionID, Events: events}, nil
}

// AppendEvent appends one event to the session's durable log and to the
// caller's in-memory handle. Returns ErrNotFound if the row was deleted
// concurrently. The read-modify-write runs in an immediate transaction,
// so concurrent appends to the same session serialize at the database.
func (s *Store) AppendEvent(ctx context.Context, sess *types.Session, ev *types.Event) error {
	key := sess.Key()
	db := s.conn()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append event to %s: %w", key, err)
	}
	defer tx.Rollback()

	var eventsJSON string
	row := tx.QueryRowContext(ctx,
		`SELECT events_json FROM agent_sessions WHERE id = ?`, key)
	if err := row.Scan(&eventsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("append event: %w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("append event to %s: %w", key, err)
	}

	updated, err := appendEncoded(eventsJSON, ev)
	if err != nil {
		return fmt.Errorf("append event to %s: %w", key, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE agent_sessions SET events_json = ?, updated_at = ? WHERE id = ?`,
		updated, time.Now().UTC(), key); err != nil {
		return fmt.Errorf("append event to %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append event to %s: %w", key, err)
	}

	// Keep the caller's handle current without a re-read.
	sess.Events = append(sess.Events, ev)

	logging.Debug().Str("key", key).Int("events", len(sess.Events)).Msg("appended event")
	return nil
}

// List returns all sessions for a user in an app, fully materialized.
func (s *Store) List(ctx context.Context, appName, userID string) ([]*types.Session, error) {
	rows, err := s.conn().QueryContext(ctx,
		`SELECT session_id, events_json FROM agent_sessions
		 WHERE app_name = ? AND user_id = ? ORDER BY created_at`,
		appName, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*types.Session
	for rows.Next() {
		var sessionID, eventsJSON string
		if err := rows.Scan(&sessionID, &eventsJSON); err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		events, err := decodeEvents(eventsJSON)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", sessionID, err)
		}
		sessions = append(sessions, &types.Session{
			AppName: appName,
			UserID:  userID,
			ID:      sessionID,
			Events:  events,
		})
	}
	return sessions, rows.Err()
}

// Delete removes a session row. Deleting an absent session is a no-op.
func (s *Store) Delete(ctx context.Context, appName, userID, sessionID string) error {
	key := sessionKey(appName, userID, sessionID)
	if _, err := s.conn().ExecContext(ctx,
		`DELETE FROM agent_sessions WHERE id = ?`, key); err != nil {
		return fmt.Errorf("delete session %s: %w", key, err)
	}
	return nil
}
