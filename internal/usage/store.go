package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/agentdeck/agentdeck/internal/tokens"
)

// DB is the database surface the store needs. *pgxpool.Pool satisfies it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists usage periods and audit records in PostgreSQL.
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a Store. A nil logger falls back to slog.Default().
func NewStore(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger, now: time.Now}
}

const periodColumns = `id, user_id, message_count, agent_count, tokens_used,
	tokens_limit, plan_type, avatars_generated, avatars_limit,
	period_start, period_end, created_at`

// CurrentPeriod returns the user's current quota window, creating a
// fresh free-plan window when none exists. "Current" means the most
// recent row whose period_end is still in the future; expired rows are
// kept for history.
func (s *Store) CurrentPeriod(ctx context.Context, userID string) (*Period, error) {
	if userID == "" {
		return nil, ErrNoUser
	}

	row := s.db.QueryRow(ctx,
		`SELECT `+periodColumns+` FROM usage_limits
		 WHERE user_id = $1 AND period_end > now()
		 ORDER BY period_end DESC LIMIT 1`, userID)

	p, err := scanPeriod(row)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("loading current period: %w", err)
	}

	return s.createPeriod(ctx, userID, tokens.PlanFree, 0, 0)
}

// createPeriod opens a new monthly window for the plan, carrying over
// the given message and agent counters.
func (s *Store) createPeriod(ctx context.Context, userID, plan string, messageCount, agentCount int32) (*Period, error) {
	limits := tokens.LimitsFor(plan)
	start, end := tokens.PeriodWindow(s.now())

	row := s.db.QueryRow(ctx, `
		INSERT INTO usage_limits (user_id, message_count, agent_count,
			tokens_limit, plan_type, avatars_limit, period_start, period_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+periodColumns,
		userID, messageCount, agentCount,
		limits.Tokens, plan, limits.Avatars, start, end)

	p, err := scanPeriod(row)
	if err != nil {
		return nil, fmt.Errorf("creating usage period: %w", err)
	}
	s.logger.Info("usage period created",
		"user_id", userID, "plan", plan, "period_end", p.PeriodEnd)
	return p, nil
}

// GateTokens checks whether a metered operation with the given estimated
// cost may proceed. The returned period reflects state at check time;
// the authoritative count is only settled by Charge.
func (s *Store) GateTokens(ctx context.Context, userID string, estimate int64) (*Period, error) {
	p, err := s.CurrentPeriod(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := gate(p, estimate); err != nil {
		return nil, err
	}
	return p, nil
}

// GateAvatar checks the avatar counter and the token budget for one
// avatar generation.
func (s *Store) GateAvatar(ctx context.Context, userID string) (*Period, error) {
	p, err := s.CurrentPeriod(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := gateAvatar(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Charge settles a metered operation: one atomic increment on the
// period plus the given append-only audit records. The increment never
// reads the old value, so concurrent charges cannot lose updates.
func (s *Store) Charge(ctx context.Context, periodID int64, total int64, countMessage bool, records []Record) error {
	bump := 0
	if countMessage {
		bump = 1
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE usage_limits
		SET tokens_used = tokens_used + $2, message_count = message_count + $3
		WHERE id = $1`, periodID, total, bump)
	if err != nil {
		return fmt.Errorf("charging period %d: %w", periodID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("charging period %d: period not found", periodID)
	}

	for _, r := range records {
		if err := s.appendRecord(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// ChargeAvatar settles one avatar generation: token cost plus the
// avatar counter, and its audit record pointing at the agent.
func (s *Store) ChargeAvatar(ctx context.Context, periodID int64, userID string, agentID int64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE usage_limits
		SET tokens_used = tokens_used + $2, avatars_generated = avatars_generated + 1
		WHERE id = $1`, periodID, int64(tokens.AvatarCost))
	if err != nil {
		return fmt.Errorf("charging avatar on period %d: %w", periodID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("charging avatar on period %d: period not found", periodID)
	}

	return s.appendRecord(ctx, Record{
		UserID:        userID,
		AgentID:       &agentID,
		TokensUsed:    tokens.AvatarCost,
		ModelUsed:     "dall-e-3",
		OperationType: OpAvatarGeneration,
	})
}

// BumpAgentCount counts a newly created agent against the current period.
func (s *Store) BumpAgentCount(ctx context.Context, userID string) error {
	p, err := s.CurrentPeriod(ctx, userID)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`UPDATE usage_limits SET agent_count = agent_count + 1 WHERE id = $1`, p.ID)
	if err != nil {
		return fmt.Errorf("bumping agent count: %w", err)
	}
	return nil
}

// ApplyPlan switches the user to a new plan by opening a fresh monthly
// window with the plan's limits. Message and agent counters carry over;
// token and avatar counters reset. The old row is superseded, not
// deleted: it stops being current once the new row's period_end is later.
func (s *Store) ApplyPlan(ctx context.Context, userID, plan string) (*Period, error) {
	if userID == "" {
		return nil, ErrNoUser
	}

	var messageCount, agentCount int32
	current, err := s.CurrentPeriod(ctx, userID)
	if err == nil {
		messageCount = current.MessageCount
		agentCount = current.AgentCount
		// Close out the old window so the new one is unambiguously current.
		if _, err := s.db.Exec(ctx,
			`UPDATE usage_limits SET period_end = now() WHERE id = $1`, current.ID); err != nil {
			return nil, fmt.Errorf("closing previous period: %w", err)
		}
	} else if !errors.Is(err, ErrNoUser) {
		return nil, err
	}

	return s.createPeriod(ctx, userID, plan, messageCount, agentCount)
}

// History returns a user's audit records, newest first.
func (s *Store) History(ctx context.Context, userID string, limit int32) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, session_id, agent_id, message_id,
		       tokens_used, model_used, operation_type, created_at
		FROM token_usage WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading usage history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.UserID, &r.SessionID, &r.AgentID,
			&r.MessageID, &r.TokensUsed, &r.ModelUsed, &r.OperationType,
			&r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning usage record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage records: %w", err)
	}
	return records, nil
}

func (s *Store) appendRecord(ctx context.Context, r Record) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO token_usage (user_id, session_id, agent_id, message_id,
			tokens_used, model_used, operation_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.UserID, r.SessionID, r.AgentID, r.MessageID,
		r.TokensUsed, r.ModelUsed, r.OperationType)
	if err != nil {
		return fmt.Errorf("appending usage record: %w", err)
	}
	return nil
}

func scanPeriod(row pgx.Row) (*Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.UserID, &p.MessageCount, &p.AgentCount,
		&p.TokensUsed, &p.TokensLimit, &p.PlanType, &p.AvatarsGenerated,
		&p.AvatarsLimit, &p.PeriodStart, &p.PeriodEnd, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
