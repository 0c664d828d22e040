package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/cube-pilot/internal/db"
)

// Store persists session state (bounded history plus query context) to
// SQLite, one row per session, so conversations survive restarts.
type Store struct {
	db *db.DB
}

// NewStore creates a store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// SessionRecord is one persisted session.
type SessionRecord struct {
	ID           string         `json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	History      []Message      `json:"history"`
	QueryContext map[string]any `json:"query_context"`
}

// SaveSession inserts or updates the persisted state for a session.
func (s *Store) SaveSession(ctx context.Context, sessionID string, history []Message, queryContext map[string]any) error {
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshalling history: %w", err)
	}
	if queryContext == nil {
		queryContext = map[string]any{}
	}
	contextJSON, err := json.Marshal(queryContext)
	if err != nil {
		return fmt.Errorf("marshalling query context: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, created_at, updated_at, history, query_context)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			history = excluded.history,
			query_context = excluded.query_context,
			updated_at = excluded.updated_at`,
		sessionID, now, now, string(historyJSON), string(contextJSON))
	if err != nil {
		return fmt.Errorf("saving session %s: %w", sessionID, err)
	}
	return nil
}

// LoadSession returns the persisted state for a session, or sql.ErrNoRows
// wrapped when the session is unknown.
func (s *Store) LoadSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, updated_at, history, query_context
		FROM sessions WHERE id = ?`, sessionID)

	var rec SessionRecord
	var historyJSON, contextJSON string
	if err := row.Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt, &historyJSON, &contextJSON); err != nil {
		return nil, fmt.Errorf("loading session %s: %w", sessionID, err)
	}

	if err := json.Unmarshal([]byte(historyJSON), &rec.History); err != nil {
		return nil, fmt.Errorf("parsing session history: %w", err)
	}
	if err := json.Unmarshal([]byte(contextJSON), &rec.QueryContext); err != nil {
		return nil, fmt.Errorf("parsing query context: %w", err)
	}
	return &rec, nil
}

// ListSessions returns persisted session ids, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteSession removes a session and its messages. Messages are deleted
// explicitly rather than relying on the foreign key cascade, which depends
// on a connection pragma.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("deleting session %s messages: %w", sessionID, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	return nil
}

// AddMessage records one transcript message for a session.
func (s *Store) AddMessage(ctx context.Context, sessionID, role, content, responseType string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_messages (id, session_id, role, content, response_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), sessionID, role, content, responseType, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("adding message to session %s: %w", sessionID, err)
	}
	return nil
}

// StoredMessage is one persisted transcript entry.
type StoredMessage struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	ResponseType string    `json:"response_type,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// GetMessages returns a session's transcript in order.
func (s *Store) GetMessages(ctx context.Context, sessionID string) ([]StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, response_type, created_at
		FROM session_messages WHERE session_id = ? ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading messages for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var msgs []StoredMessage
	for rows.Next() {
		var m StoredMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.ResponseType, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// EnsureSession creates an empty session row if one does not exist. Existing
// session state is left untouched.
func (s *Store) EnsureSession(ctx context.Context, sessionID string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO sessions (id, created_at, updated_at) VALUES (?, ?, ?)`,
		sessionID, now, now)
	if err != nil {
		return fmt.Errorf("ensuring session %s: %w", sessionID, err)
	}
	return nil
}
