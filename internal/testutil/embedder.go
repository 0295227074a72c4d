package testutil

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/agentdeck/agentdeck/internal/tokens"
)

// StaticEmbedder produces deterministic unit vectors derived from the
// text content, so similar runs embed identical text identically and
// cosine similarity between a text and itself is 1.
type StaticEmbedder struct {
	CallCount int
}

// Embed implements provider.Embedder.
func (e *StaticEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.CallCount++
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = embedText(text)
	}
	return vectors, nil
}

// embedText spreads a hash of the text across the vector and normalizes
// it. Distinct texts land on (almost certainly) distinct directions.
func embedText(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	v := make([]float32, tokens.EmbeddingDimensions)
	var norm float64
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		x := float64(int64(seed>>11)) / float64(1<<52)
		v[i] = float32(x)
		norm += x * x
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
