// Package usage meters token consumption against monthly quota windows.
//
// Each user has at most one current Period (period_end in the future);
// periods are created lazily on the first metered action of a month and
// superseded, never deleted, when a new one starts. Every charge lands
// as an atomic increment on the period plus append-only Record rows, so
// concurrent turns never lose updates.
package usage

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentdeck/agentdeck/internal/tokens"
)

// Sentinel errors, checked with errors.Is(). Gate failures carry detail
// in a *QuotaError that still matches these sentinels.
var (
	// ErrQuotaExceeded indicates the monthly token budget is exhausted.
	ErrQuotaExceeded = errors.New("monthly token quota exceeded")

	// ErrMessageTooLarge indicates a single message would overrun the
	// remaining budget.
	ErrMessageTooLarge = errors.New("message exceeds remaining token budget")

	// ErrAvatarQuotaExceeded indicates the monthly avatar budget is exhausted.
	ErrAvatarQuotaExceeded = errors.New("avatar generation quota exceeded")

	// ErrNoUser indicates a metered operation was attempted without a user id.
	ErrNoUser = errors.New("metered operation requires a user id")
)

// Operation types recorded in the audit log.
const (
	OpChatInput         = "chat_input"
	OpChatOutput        = "chat_output"
	OpDocumentEmbedding = "document_embedding"
	OpAvatarGeneration  = "avatar_generation"
)

// Period is one monthly quota window for a user.
type Period struct {
	ID               int64
	UserID           string
	MessageCount     int32
	AgentCount       int32
	TokensUsed       int64
	TokensLimit      int64
	PlanType         string
	AvatarsGenerated int32
	AvatarsLimit     int32
	PeriodStart      time.Time
	PeriodEnd        time.Time
	CreatedAt        time.Time
}

// Remaining returns the period's unconsumed token budget.
func (p *Period) Remaining() int64 {
	return tokens.Remaining(p.TokensUsed, p.TokensLimit)
}

// Record is one immutable audit-log line for a metered operation.
type Record struct {
	ID            int64
	UserID        string
	SessionID     *uuid.UUID
	AgentID       *int64
	MessageID     *uuid.UUID
	TokensUsed    int64
	ModelUsed     string
	OperationType string
	CreatedAt     time.Time
}

// QuotaError reports a gate rejection with enough detail for a caller
// to present remediation. It matches its sentinel through errors.Is.
type QuotaError struct {
	sentinel  error
	Used      int64
	Limit     int64
	Requested int64
}

func (e *QuotaError) Error() string {
	if e.Requested > 0 {
		return fmt.Sprintf("%v: used %d of %d, requested %d more",
			e.sentinel, e.Used, e.Limit, e.Requested)
	}
	return fmt.Sprintf("%v: used %d of %d", e.sentinel, e.Used, e.Limit)
}

func (e *QuotaError) Is(target error) bool { return target == e.sentinel }

// Remaining returns the budget left when the gate rejected.
func (e *QuotaError) Remaining() int64 {
	return tokens.Remaining(e.Used, e.Limit)
}

// gate applies the two-stage token check: a hard stop once the budget is
// consumed, then a pre-flight check that the estimated cost still fits.
// Order matters: callers must see ErrQuotaExceeded before any provider
// call is paid for.
func gate(p *Period, estimate int64) error {
	if p.TokensUsed >= p.TokensLimit {
		return &QuotaError{sentinel: ErrQuotaExceeded, Used: p.TokensUsed, Limit: p.TokensLimit}
	}
	if p.TokensUsed+estimate > p.TokensLimit {
		return &QuotaError{
			sentinel:  ErrMessageTooLarge,
			Used:      p.TokensUsed,
			Limit:     p.TokensLimit,
			Requested: estimate,
		}
	}
	return nil
}

// gateAvatar checks the avatar counter and the token cost of one
// avatar generation.
func gateAvatar(p *Period) error {
	if p.AvatarsGenerated >= p.AvatarsLimit {
		return &QuotaError{
			sentinel: ErrAvatarQuotaExceeded,
			Used:     int64(p.AvatarsGenerated),
			Limit:    int64(p.AvatarsLimit),
		}
	}
	return gate(p, tokens.AvatarCost)
}
