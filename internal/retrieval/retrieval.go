// Package retrieval finds the training-data chunks most relevant to a
// query and assembles them into grounding context.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/agentdeck/agentdeck/internal/provider"
)

// ErrRetrieval wraps similarity-search failures.
var ErrRetrieval = errors.New("retrieval error")

// ContextSeparator joins retrieved chunks into one prompt block.
const ContextSeparator = "\n\n---\n\n"

// Match is one retrieved chunk with its cosine similarity to the query.
type Match struct {
	DocumentID int64
	Chunk      string
	ChunkIndex int
	Similarity float64
}

// DB is the database surface the retriever needs. *pgxpool.Pool satisfies it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Retriever embeds queries and runs similarity search scoped to one agent.
type Retriever struct {
	db        DB
	embedder  provider.Embedder
	threshold float64
	limit     int
	logger    *slog.Logger
}

// NewRetriever creates a Retriever. Matches below threshold are never
// returned; at most limit chunks come back per query.
func NewRetriever(db DB, embedder provider.Embedder, threshold float64, limit int, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{db: db, embedder: embedder, threshold: threshold, limit: limit, logger: logger}
}

// Search returns the agent's most relevant chunks for the query, sorted
// by descending similarity with chunk order as the tiebreak.
func (r *Retriever) Search(ctx context.Context, agentID int64, query string) ([]Match, error) {
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: got %d query embeddings", ErrRetrieval, len(vectors))
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, chunk, chunk_index, similarity
		 FROM match_agent_content($1, $2, $3, $4)`,
		pgvector.NewVector(vectors[0]), r.threshold, r.limit, agentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.DocumentID, &m.Chunk, &m.ChunkIndex, &m.Similarity); err != nil {
			return nil, fmt.Errorf("%w: scanning match: %v", ErrRetrieval, err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}

	r.logger.Debug("similarity search completed",
		"agent_id", agentID, "matches", len(matches))
	return matches, nil
}

// CombineContext joins matched chunks into a single grounding block.
// Returns the empty string when there are no matches.
func CombineContext(matches []Match) string {
	if len(matches) == 0 {
		return ""
	}
	chunks := make([]string, len(matches))
	for i, m := range matches {
		chunks[i] = m.Chunk
	}
	return strings.Join(chunks, ContextSeparator)
}
