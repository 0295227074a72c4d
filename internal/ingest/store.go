package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// DB is the database surface the store needs. *pgxpool.Pool satisfies it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DocumentInfo is a summary row for listing an agent's training data.
type DocumentInfo struct {
	ID         int64
	FileName   string
	FileType   string
	ChunkCount int
	Status     string
	CreatedAt  time.Time
}

// Store persists training data in PostgreSQL with pgvector embeddings.
type Store struct {
	db DB
}

// NewStore creates a Store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// SaveDocument writes one training-data row and returns its id.
// Chunk embeddings past the first are serialized into metadata keyed by
// chunk index, in the format the similarity function casts back to vectors.
func (s *Store) SaveDocument(ctx context.Context, doc *Document) (int64, error) {
	metadata, err := encodeMetadata(doc.ChunkEmbeddings)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.db.QueryRow(ctx, `
		INSERT INTO agent_training_data
			(agent_id, file_name, file_type, content, chunks, embedding, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, 'processed', $7)
		RETURNING id`,
		doc.AgentID, doc.FileName, doc.FileType, doc.Content, doc.Chunks,
		pgvector.NewVector(doc.Embedding), metadata).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting training data: %w", err)
	}
	return id, nil
}

// ListDocuments returns file names and chunk counts for an agent's
// training data, newest first.
func (s *Store) ListDocuments(ctx context.Context, agentID int64) ([]DocumentInfo, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, file_name, file_type, cardinality(chunks), status, created_at
		FROM agent_training_data
		WHERE agent_id = $1 ORDER BY created_at DESC`, agentID)
	if err != nil {
		return nil, fmt.Errorf("listing training data: %w", err)
	}
	defer rows.Close()

	var docs []DocumentInfo
	for rows.Next() {
		var d DocumentInfo
		if err := rows.Scan(&d.ID, &d.FileName, &d.FileType, &d.ChunkCount,
			&d.Status, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning training data: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating training data: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes one training-data row.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	if _, err := s.db.Exec(ctx,
		`DELETE FROM agent_training_data WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting training data %d: %w", id, err)
	}
	return nil
}

// encodeMetadata builds the metadata JSON. Embeddings are stored in
// pgvector text form ("[0.1,0.2,...]") so SQL can cast them directly.
func encodeMetadata(chunkEmbeddings map[int][]float32) ([]byte, error) {
	if len(chunkEmbeddings) == 0 {
		return []byte(`{}`), nil
	}

	encoded := make(map[string]string, len(chunkEmbeddings))
	for idx, vec := range chunkEmbeddings {
		encoded[strconv.Itoa(idx)] = pgvector.NewVector(vec).String()
	}
	metadata, err := json.Marshal(map[string]any{"chunk_embeddings": encoded})
	if err != nil {
		return nil, fmt.Errorf("encoding chunk embeddings: %w", err)
	}
	return metadata, nil
}
