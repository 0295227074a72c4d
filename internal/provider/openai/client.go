// Package openai implements the provider interfaces on the OpenAI API.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/agentdeck/agentdeck/internal/provider"
)

// Client wraps the OpenAI SDK behind the provider interfaces. A shared
// rate limiter smooths bursts across embeddings, completions and image
// generation so one bulk ingestion cannot starve chat traffic.
type Client struct {
	api           *goopenai.Client
	embedderModel string
	embedderDims  int
	limiter       *rate.Limiter
	logger        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit overrides the default request rate limit.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(r, burst)
	}
}

// New creates a Client for the given API key.
// embedderModel must produce vectors of embedderDims dimensions.
func New(apiKey, embedderModel string, embedderDims int, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		api:           goopenai.NewClient(apiKey),
		embedderModel: embedderModel,
		embedderDims:  embedderDims,
		limiter:       rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		logger:        logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Embed implements provider.Embedder. All texts go in a single batch
// request; the response preserves input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}
	c.logger.Debug("embedding batch", "texts", len(texts), "model", c.embedderModel)

	resp, err := c.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input:      texts,
		Model:      goopenai.EmbeddingModel(c.embedderModel),
		Dimensions: c.embedderDims,
	})
	if err != nil {
		return nil, wrapAPIError("creating embeddings", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts",
			provider.ErrEmptyResponse, len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// Complete implements provider.Completer.
func (c *Client) Complete(ctx context.Context, req provider.CompletionRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}

	messages := make([]goopenai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", wrapAPIError("creating chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", provider.ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateImage implements provider.ImageGenerator using DALL-E 3.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	resp, err := c.api.CreateImage(ctx, goopenai.ImageRequest{
		Model:          goopenai.CreateImageModelDallE3,
		Prompt:         prompt,
		N:              1,
		Size:           goopenai.CreateImageSize1024x1024,
		ResponseFormat: goopenai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, wrapAPIError("creating image", err)
	}
	if len(resp.Data) == 0 {
		return nil, provider.ErrEmptyResponse
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decoding image data: %w", err)
	}
	return data, nil
}

// wrapAPIError maps quota and rate-limit failures to
// provider.ErrProviderQuota so callers can check with errors.Is.
func wrapAPIError(op string, err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests ||
			apiErr.HTTPStatusCode == http.StatusPaymentRequired {
			return fmt.Errorf("%s: %w: %s", op, provider.ErrProviderQuota, apiErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
