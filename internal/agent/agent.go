// Package agent defines AI agent profiles and their persistence.
package agent

import (
	"errors"
	"time"
)

// ErrAgentNotFound indicates the requested agent does not exist.
var ErrAgentNotFound = errors.New("agent not found")

// DefaultModel is used when an agent has no model of its own.
const DefaultModel = "gpt-4o-mini"

// DefaultTemperature is the provider temperature when the agent has none.
const DefaultTemperature float32 = 0.7

// Agent is one configurable AI persona. Training data, sessions and
// usage records all hang off its id.
type Agent struct {
	ID             int64
	Name           string
	Description    string
	Universe       string
	TopicExpertise string
	ModelProvider  string
	ModelVersion   string
	Temperature    *int32 // 0-100 scale, nil = unset
	SystemPrompt   string
	Visibility     string
	CreatorID      string
	AvatarURL      *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Model returns the agent's completion model, falling back to the default.
func (a *Agent) Model() string {
	if a.ModelVersion == "" {
		return DefaultModel
	}
	return a.ModelVersion
}

// ProviderTemperature maps the agent's 0-100 temperature to the
// provider's 0.0-2.0 scale. An unset temperature gives the default.
func (a *Agent) ProviderTemperature() float32 {
	if a.Temperature == nil {
		return DefaultTemperature
	}
	t := float32(*a.Temperature) / 50
	if t < 0 {
		return 0
	}
	if t > 2 {
		return 2
	}
	return t
}

// IsPublic reports whether guests may chat with the agent.
func (a *Agent) IsPublic() bool {
	return a.Visibility == "public"
}
