// Package provider defines the interfaces between the pipeline and the
// upstream model APIs. Consumers depend on these interfaces; the openai
// subpackage supplies the production implementation.
package provider

import (
	"context"
	"errors"
)

var (
	// ErrProviderQuota indicates the upstream provider rejected the call
	// because the account is out of credit or rate limited.
	ErrProviderQuota = errors.New("provider quota exceeded")

	// ErrEmptyResponse indicates the provider returned no usable output.
	ErrEmptyResponse = errors.New("empty provider response")
)

// Message is one turn of conversation history sent to the completion model.
type Message struct {
	Role    string
	Content string
}

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompletionRequest describes one chat completion call.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// Embedder produces vector embeddings for batches of text.
// Vectors in the result align with the input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer produces a chat completion for a conversation.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ImageGenerator produces one image for a prompt, returned as raw bytes.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}
