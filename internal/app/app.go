// Package app wires configuration, storage and providers into a ready
// runtime. Every entry point builds an App and works through its fields
// instead of repeating the assembly.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentdeck/agentdeck/internal/agent"
	"github.com/agentdeck/agentdeck/internal/avatar"
	"github.com/agentdeck/agentdeck/internal/chat"
	"github.com/agentdeck/agentdeck/internal/config"
	"github.com/agentdeck/agentdeck/internal/database"
	"github.com/agentdeck/agentdeck/internal/ingest"
	"github.com/agentdeck/agentdeck/internal/observability"
	"github.com/agentdeck/agentdeck/internal/provider/openai"
	"github.com/agentdeck/agentdeck/internal/retrieval"
	"github.com/agentdeck/agentdeck/internal/session"
	"github.com/agentdeck/agentdeck/internal/tokens"
	"github.com/agentdeck/agentdeck/internal/usage"
)

// historyWindow is the number of prior messages a chat turn replays.
const historyWindow = 20

// App holds the assembled components. Fields are safe for concurrent
// use once New returns.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Pool      *pgxpool.Pool
	Agents    *agent.Store
	Sessions  *session.Store
	Usage     *usage.Store
	Documents *ingest.Store
	Pipeline  *ingest.Pipeline
	Retriever *retrieval.Retriever
	Engine    *chat.Engine
	Avatars   *avatar.Generator

	shutdownTracing func(context.Context) error
}

// New connects to PostgreSQL and assembles every component from cfg.
// The OpenAI key comes from the OPENAI_API_KEY environment variable;
// Validate has already confirmed it is present.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	shutdownTracing, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.TraceEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	}, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}

	client := openai.New(os.Getenv("OPENAI_API_KEY"), cfg.EmbedderModel,
		tokens.EmbeddingDimensions, logger.With("component", "openai"))

	agents := agent.NewStore(pool, logger.With("component", "agents"))
	sessions := session.NewStore(pool, logger.With("component", "sessions"))
	usageStore := usage.NewStore(pool, logger.With("component", "usage"))
	documents := ingest.NewStore(pool)

	chunker := ingest.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	pipeline := ingest.NewPipeline(chunker, client, documents,
		logger.With("component", "ingest"))

	retriever := retrieval.NewRetriever(pool, client, cfg.MatchThreshold,
		cfg.MatchCount, logger.With("component", "retrieval"))

	engine := chat.NewEngine(agents, sessions, usageStore, retriever, client,
		cfg.MaxTokens, historyWindow, logger.With("component", "chat"))

	avatars := avatar.NewGenerator(client, avatar.NewFSStore(avatarDir()),
		agents, usageStore, logger.With("component", "avatar"))

	return &App{
		Config:          cfg,
		Logger:          logger,
		Pool:            pool,
		Agents:          agents,
		Sessions:        sessions,
		Usage:           usageStore,
		Documents:       documents,
		Pipeline:        pipeline,
		Retriever:       retriever,
		Engine:          engine,
		Avatars:         avatars,
		shutdownTracing: shutdownTracing,
	}, nil
}

// Close releases the connection pool and flushes pending trace spans.
func (a *App) Close(ctx context.Context) error {
	a.Pool.Close()
	if err := a.shutdownTracing(ctx); err != nil {
		return fmt.Errorf("shutting down tracing: %w", err)
	}
	return nil
}

// avatarDir is where generated avatars land when no object storage is
// configured. Falls back to the working directory when HOME is unset.
func avatarDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "avatars"
	}
	return filepath.Join(home, ".agentdeck", "avatars")
}
