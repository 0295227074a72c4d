// Package session manages chat sessions and their message history.
//
// A session belongs to either an authenticated user (UserID set) or a
// guest (VisitorID set), never neither. Messages carry monotonically
// increasing sequence numbers within their session; deleting a session
// cascades to its messages and usage audit rows.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for session operations, checked with errors.Is().
var (
	// ErrSessionNotFound indicates the session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNotOwner indicates the caller does not own the session.
	ErrNotOwner = errors.New("session not owned by caller")

	// ErrNoOwner indicates neither a user id nor a visitor id was given.
	ErrNoOwner = errors.New("session requires a user or visitor id")
)

// DefaultTitle is the placeholder before a title is generated.
const DefaultTitle = "New Conversation"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Session is one conversation between an owner and an agent.
type Session struct {
	ID             uuid.UUID
	UserID         string // empty for guest sessions
	VisitorID      string // empty for user sessions
	AgentID        int64
	Title          string
	TitleGenerated bool
	MessageCount   int32
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Message is one turn within a session.
type Message struct {
	ID             uuid.UUID
	SessionID      uuid.UUID
	Role           string
	Content        string
	SequenceNumber int32
	CreatedAt      time.Time
}
