// Package ingest turns uploaded documents into embedded training data.
//
// The pipeline is extract → chunk → embed → persist, all-or-nothing at
// the document level: a failure anywhere leaves no partial rows behind.
// Ingestion is metered but not gated; the returned token cost is the
// caller's to charge against the owner's quota.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agentdeck/agentdeck/internal/provider"
	"github.com/agentdeck/agentdeck/internal/tokens"
)

// Document is one ingested file, stored as a single row: the full text,
// its chunks, the first chunk's embedding as the searchable vector, and
// the remaining chunk embeddings keyed by chunk index in metadata.
type Document struct {
	AgentID         int64
	FileName        string
	FileType        string
	Content         string
	Chunks          []string
	Embedding       []float32
	ChunkEmbeddings map[int][]float32
}

// DocumentStore persists ingested documents.
type DocumentStore interface {
	SaveDocument(ctx context.Context, doc *Document) (int64, error)
}

// Result reports a completed ingestion.
type Result struct {
	DocumentID    int64
	ChunkCount    int
	TokensCharged int64
}

// Pipeline wires extraction, chunking, embedding and persistence.
type Pipeline struct {
	chunker  *Chunker
	embedder provider.Embedder
	store    DocumentStore
	logger   *slog.Logger
}

// NewPipeline creates a Pipeline. A nil logger falls back to slog.Default().
func NewPipeline(chunker *Chunker, embedder provider.Embedder, store DocumentStore, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{chunker: chunker, embedder: embedder, store: store, logger: logger}
}

// IngestDocument runs the full pipeline for one uploaded file.
//
// Unsupported types and empty documents fail before any provider call
// or write. Embedding failures propagate unwrapped enough for callers
// to detect provider.ErrProviderQuota; storage failures match ErrStorage.
func (p *Pipeline) IngestDocument(ctx context.Context, agentID int64, fileName string, data []byte, mimeType string) (*Result, error) {
	text, err := Extract(data, mimeType)
	if err != nil {
		return nil, err
	}

	chunks := p.chunker.Chunk(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, fileName)
	}

	vectors, err := p.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	for i, v := range vectors {
		if len(v) != tokens.EmbeddingDimensions {
			return nil, fmt.Errorf("chunk %d: embedding has %d dimensions, want %d",
				i, len(v), tokens.EmbeddingDimensions)
		}
	}

	doc := &Document{
		AgentID:   agentID,
		FileName:  fileName,
		FileType:  mimeType,
		Content:   text,
		Chunks:    chunks,
		Embedding: vectors[0],
	}
	if len(vectors) > 1 {
		doc.ChunkEmbeddings = make(map[int][]float32, len(vectors)-1)
		for i := 1; i < len(vectors); i++ {
			doc.ChunkEmbeddings[i] = vectors[i]
		}
	}

	id, err := p.store.SaveDocument(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("%w: saving document: %v", ErrStorage, err)
	}

	charged := int64(len(chunks)) * tokens.CostPerChunk
	p.logger.Info("document ingested",
		"agent_id", agentID,
		"file", fileName,
		"chunks", len(chunks),
		"tokens_charged", charged)

	return &Result{DocumentID: id, ChunkCount: len(chunks), TokensCharged: charged}, nil
}
