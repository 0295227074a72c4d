// Package avatar generates agent avatars as a metered operation.
//
// Generation is gated on the owner's monthly avatar counter and token
// budget, charged at a flat rate once the image is stored.
package avatar

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/agentdeck/agentdeck/internal/provider"
	"github.com/agentdeck/agentdeck/internal/usage"
)

// ObjectStore persists generated images and returns a public URL.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// AgentStore records where an agent's avatar lives.
type AgentStore interface {
	SetAvatarURL(ctx context.Context, id int64, url string) error
}

// UsageStore gates and settles avatar generation.
type UsageStore interface {
	GateAvatar(ctx context.Context, userID string) (*usage.Period, error)
	ChargeAvatar(ctx context.Context, periodID int64, userID string, agentID int64) error
}

// Generator produces and stores avatars.
type Generator struct {
	images  provider.ImageGenerator
	objects ObjectStore
	agents  AgentStore
	usage   UsageStore
	logger  *slog.Logger
}

// NewGenerator creates a Generator. A nil logger falls back to slog.Default().
func NewGenerator(images provider.ImageGenerator, objects ObjectStore, agents AgentStore, usage UsageStore, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{images: images, objects: objects, agents: agents, usage: usage, logger: logger}
}

// Generate creates an avatar for an agent and returns its stored URL.
//
// The quota gate runs before the image call; the charge lands only
// after the image is stored and linked, so a provider or storage
// failure costs the user nothing.
func (g *Generator) Generate(ctx context.Context, userID string, agentID int64, prompt string) (string, error) {
	period, err := g.usage.GateAvatar(ctx, userID)
	if err != nil {
		return "", err
	}

	data, err := g.images.GenerateImage(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generating avatar: %w", err)
	}

	key := fmt.Sprintf("avatars/%d/%s.png", agentID, uuid.New())
	url, err := g.objects.Put(ctx, key, data, "image/png")
	if err != nil {
		return "", fmt.Errorf("storing avatar: %w", err)
	}

	if err := g.agents.SetAvatarURL(ctx, agentID, url); err != nil {
		return "", fmt.Errorf("linking avatar: %w", err)
	}

	if err := g.usage.ChargeAvatar(ctx, period.ID, userID, agentID); err != nil {
		return "", fmt.Errorf("charging avatar generation: %w", err)
	}

	g.logger.Info("avatar generated", "agent_id", agentID, "user_id", userID, "url", url)
	return url, nil
}
