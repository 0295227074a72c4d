// Package chat orchestrates one full conversation turn: quota gating,
// session management, retrieval-grounded completion and metering.
package chat

import (
	"errors"

	"github.com/google/uuid"
)

// Sentinel errors, checked with errors.Is().
var (
	// ErrNoUser indicates a turn arrived with neither a user id nor a
	// visitor id.
	ErrNoUser = errors.New("chat turn requires a user or visitor id")

	// ErrEmptyMessage indicates a turn with no message text.
	ErrEmptyMessage = errors.New("message cannot be empty")

	// ErrAgentNotPublic indicates a guest tried to chat with a private agent.
	ErrAgentNotPublic = errors.New("agent is not public")
)

// TurnRequest is one incoming chat message.
// SessionID nil means start a new session. VisitorID set with UserID
// empty selects the guest path: no quota is consulted and no usage is
// recorded.
type TurnRequest struct {
	AgentID   int64
	UserID    string
	VisitorID string
	SessionID *uuid.UUID
	Message   string
}

// TurnResult is the outcome of a completed turn.
type TurnResult struct {
	SessionID       uuid.UUID
	Reply           string
	TokensCharged   int64
	RemainingTokens int64
	Grounded        bool
}
