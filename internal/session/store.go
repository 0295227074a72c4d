package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the database surface the store needs. *pgxpool.Pool satisfies it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists sessions and messages in PostgreSQL.
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     DB
	logger *slog.Logger
}

// NewStore creates a Store. A nil logger falls back to slog.Default().
func NewStore(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

const sessionColumns = `id, COALESCE(user_id, ''), COALESCE(visitor_id, ''),
	agent_id, title, title_generated, message_count, created_at, updated_at`

// Create starts a new session for a user or a guest visitor.
// Exactly one of userID and visitorID should be set; both empty is an error.
func (s *Store) Create(ctx context.Context, userID, visitorID string, agentID int64) (*Session, error) {
	if userID == "" && visitorID == "" {
		return nil, ErrNoOwner
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO chat_sessions (id, user_id, visitor_id, agent_id, title)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5)
		RETURNING `+sessionColumns,
		uuid.New(), userID, visitorID, agentID, DefaultTitle)

	sess, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	s.logger.Debug("session created", "session_id", sess.ID, "agent_id", agentID)
	return sess, nil
}

// Get fetches one session by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM chat_sessions WHERE id = $1`, id)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}
	return sess, nil
}

// GetOwned fetches a session and verifies the caller owns it.
func (s *Store) GetOwned(ctx context.Context, id uuid.UUID, userID, visitorID string) (*Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !owns(sess, userID, visitorID) {
		return nil, fmt.Errorf("%w: %s", ErrNotOwner, id)
	}
	return sess, nil
}

// List returns a user's sessions, most recently active first.
func (s *Store) List(ctx context.Context, userID string) ([]*Session, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+sessionColumns+` FROM chat_sessions
		 WHERE user_id = $1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

// Delete removes a session the caller owns. Messages and usage audit
// rows follow via ON DELETE CASCADE.
func (s *Store) Delete(ctx context.Context, id uuid.UUID, userID, visitorID string) error {
	if _, err := s.GetOwned(ctx, id, userID, visitorID); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	s.logger.Info("session deleted", "session_id", id)
	return nil
}

// AddMessage appends a message to a session, assigning the next sequence
// number, and bumps the session's message count and activity timestamp.
func (s *Store) AddMessage(ctx context.Context, sessionID uuid.UUID, role, content string) (*Message, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO chat_messages (id, session_id, role, content, sequence_number)
		SELECT $1, $2, $3, $4, COALESCE(MAX(sequence_number), 0) + 1
		FROM chat_messages WHERE session_id = $2
		RETURNING id, session_id, role, content, sequence_number, created_at`,
		uuid.New(), sessionID, role, content)

	var m Message
	err := row.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.SequenceNumber, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("adding message: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		UPDATE chat_sessions
		SET message_count = message_count + 1, updated_at = now()
		WHERE id = $1`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("updating session counters: %w", err)
	}
	return &m, nil
}

// Messages returns a session's messages in conversation order.
// limit <= 0 means no limit.
func (s *Store) Messages(ctx context.Context, sessionID uuid.UUID, limit int32) ([]Message, error) {
	q := `SELECT id, session_id, role, content, sequence_number, created_at
	      FROM chat_messages WHERE session_id = $1 ORDER BY sequence_number ASC`
	args := []any{sessionID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content,
			&m.SequenceNumber, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return messages, nil
}

// SetTitle records a generated title and marks the session as titled.
func (s *Store) SetTitle(ctx context.Context, id uuid.UUID, title string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE chat_sessions
		SET title = $2, title_generated = TRUE, updated_at = now()
		WHERE id = $1`, id, title)
	if err != nil {
		return fmt.Errorf("setting session title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

func owns(sess *Session, userID, visitorID string) bool {
	if userID != "" && sess.UserID == userID {
		return true
	}
	if visitorID != "" && sess.VisitorID == visitorID {
		return true
	}
	return false
}

func scanSession(row pgx.Row) (*Session, error) {
	var sess Session
	err := row.Scan(&sess.ID, &sess.UserID, &sess.VisitorID, &sess.AgentID,
		&sess.Title, &sess.TitleGenerated, &sess.MessageCount,
		&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}
