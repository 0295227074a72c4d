package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the database surface the store needs. *pgxpool.Pool satisfies it.
// Interfaces are defined by the consumer, not the provider.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists agents in PostgreSQL.
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

const agentColumns = `id, name, description, universe, topic_expertise,
	model_provider, model_version, temperature, system_prompt, visibility,
	creator_id, avatar_url, created_at, updated_at`

// Get fetches one agent by id.
// Returns ErrAgentNotFound when no such agent exists.
func (s *Store) Get(ctx context.Context, id int64) (*Agent, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = $1`, id)

	a, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrAgentNotFound, id)
		}
		return nil, fmt.Errorf("getting agent %d: %w", id, err)
	}
	return a, nil
}

// Create inserts an agent and returns it with id and timestamps set.
func (s *Store) Create(ctx context.Context, a *Agent) (*Agent, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO agents (name, description, universe, topic_expertise,
			model_provider, model_version, temperature, system_prompt,
			visibility, creator_id, avatar_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+agentColumns,
		a.Name, a.Description, a.Universe, a.TopicExpertise,
		a.ModelProvider, a.ModelVersion, a.Temperature, a.SystemPrompt,
		a.Visibility, a.CreatorID, a.AvatarURL)

	created, err := scanAgent(row)
	if err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}
	s.logger.Info("agent created", "agent_id", created.ID, "name", created.Name)
	return created, nil
}

// ListByCreator returns all agents owned by a user, newest first.
func (s *Store) ListByCreator(ctx context.Context, creatorID string) ([]*Agent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+agentColumns+` FROM agents
		 WHERE creator_id = $1 ORDER BY created_at DESC`, creatorID)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning agent: %w", err)
		}
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating agents: %w", err)
	}
	return agents, nil
}

// SetAvatarURL records the stored avatar location for an agent.
func (s *Store) SetAvatarURL(ctx context.Context, id int64, url string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE agents SET avatar_url = $2, updated_at = now() WHERE id = $1`,
		id, url)
	if err != nil {
		return fmt.Errorf("updating avatar url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrAgentNotFound, id)
	}
	return nil
}

func scanAgent(row pgx.Row) (*Agent, error) {
	var a Agent
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Universe,
		&a.TopicExpertise, &a.ModelProvider, &a.ModelVersion, &a.Temperature,
		&a.SystemPrompt, &a.Visibility, &a.CreatorID, &a.AvatarURL,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
