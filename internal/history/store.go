// Package history stores the display-oriented chat records and the
// per-user SaaS connection tokens. It is the secondary store next to
// the session event log: chat lists and titles come from here, model
// context comes from the event log.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/atrium-ai/atrium/internal/logging"
	"github.com/atrium-ai/atrium/pkg/types"
)

// ErrNotFound is returned when a chat record does not exist.
var ErrNotFound = errors.New("chat record not found")

const schema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	title         TEXT NOT NULL,
	messages_json TEXT NOT NULL DEFAULT '[]',
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_sessions_user ON chat_sessions(user_id);

CREATE TABLE IF NOT EXISTS connections (
	user_id    TEXT NOT NULL,
	service    TEXT NOT NULL,
	token_json TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (user_id, service)
);
`

// Store holds chat records and connection tokens.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history store at the given sqlite
// database path.
func Open(path string) (*Store, error) {
	dsn := path + "?_txlock=immediate&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// CreateChatSession creates a new chat record with a generated ID.
func (s *Store) CreateChatSession(ctx context.Context, userID, title string) (*types.ChatRecord, error) {
	record := &types.ChatRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, user_id, title, messages_json, created_at, updated_at)
		 VALUES (?, ?, ?, '[]', ?, ?)`,
		record.ID, record.UserID, record.Title, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create chat session: %w", err)
	}

	logging.Info().Str("sessionID", record.ID).Str("userID", userID).Msg("created chat session")
	return record, nil
}

// GetRecord returns a single chat record with its full message list.
func (s *Store) GetRecord(ctx context.Context, userID, sessionID string) (*types.ChatRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, messages_json, created_at, updated_at
		 FROM chat_sessions WHERE id = ? AND user_id = ?`,
		sessionID, userID)

	var record types.ChatRecord
	var messagesJSON string
	err := row.Scan(&record.ID, &record.UserID, &record.Title, &messagesJSON, &record.CreatedAt, &record.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chat record %s: %w", sessionID, err)
	}

	if err := json.Unmarshal([]byte(messagesJSON), &record.Messages); err != nil {
		return nil, fmt.Errorf("chat record %s: decode messages: %w", sessionID, err)
	}
	return &record, nil
}

// ListRecords returns the user's chat records, most recently updated
// first, without their message bodies.
func (s *Store) ListRecords(ctx context.Context, userID string) ([]*types.ChatRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at
		 FROM chat_sessions WHERE user_id = ? ORDER BY updated_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list chat records: %w", err)
	}
	defer rows.Close()

	records := []*types.ChatRecord{}
	for rows.Next() {
		var record types.ChatRecord
		if err := rows.Scan(&record.ID, &record.UserID, &record.Title, &record.CreatedAt, &record.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list chat records: %w", err)
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

// AddMessage appends one message to a chat record and bumps updated_at.
func (s *Store) AddMessage(ctx context.Context, userID, sessionID, role, content string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("add message to %s: %w", sessionID, err)
	}
	defer tx.Rollback()

	var messagesJSON string
	row := tx.QueryRowContext(ctx,
		`SELECT messages_json FROM chat_sessions WHERE id = ? AND user_id = ?`,
		sessionID, userID)
	if err := row.Scan(&messagesJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("add message: %w: %s", ErrNotFound, sessionID)
		}
		return fmt.Errorf("add message to %s: %w", sessionID, err)
	}

	var messages []types.ChatMessage
	if err := json.Unmarshal([]byte(messagesJSON), &messages); err != nil {
		return fmt.Errorf("chat record %s: decode messages: %w", sessionID, err)
	}

	now := time.Now().UTC()
	messages = append(messages, types.ChatMessage{Role: role, Content: content, Timestamp: now})
	updated, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("add message to %s: %w", sessionID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE chat_sessions SET messages_json = ?, updated_at = ? WHERE id = ?`,
		string(updated), now, sessionID); err != nil {
		return fmt.Errorf("add message to %s: %w", sessionID, err)
	}
	return tx.Commit()
}

// DeleteRecord removes a chat record. Deleting an absent record is a
// no-op.
func (s *Store) DeleteRecord(ctx context.Context, userID, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_sessions WHERE id = ? AND user_id = ?`,
		sessionID, userID); err != nil {
		return fmt.Errorf("delete chat record %s: %w", sessionID, err)
	}
	return nil
}

// GetUserTokens returns every service token the user has connected.
// A user with no connections gets an empty bundle, not an error.
func (s *Store) GetUserTokens(ctx context.Context, userID string) (types.TokenBundle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT service, token_json FROM connections WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("get user tokens: %w", err)
	}
	defer rows.Close()

	bundle := types.TokenBundle{}
	for rows.Next() {
		var service, tokenJSON string
		if err := rows.Scan(&service, &tokenJSON); err != nil {
			return nil, fmt.Errorf("get user tokens: %w", err)
		}
		var token types.ServiceToken
		if err := json.Unmarshal([]byte(tokenJSON), &token); err != nil {
			logging.Warn().Err(err).Str("service", service).Msg("skipping malformed connection token")
			continue
		}
		bundle[service] = &token
	}
	return bundle, rows.Err()
}

// SetUserToken stores or replaces the token for one service.
func (s *Store) SetUserToken(ctx context.Context, userID, service string, token *types.ServiceToken) error {
	tokenJSON, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("set token for %s: %w", service, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO connections (user_id, service, token_json, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, service) DO UPDATE SET token_json = excluded.token_json, updated_at = excluded.updated_at`,
		userID, service, string(tokenJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set token for %s: %w", service, err)
	}
	return nil
}
