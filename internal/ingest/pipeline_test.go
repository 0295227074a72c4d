package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/agentdeck/agentdeck/internal/log"
	"github.com/agentdeck/agentdeck/internal/provider"
	"github.com/agentdeck/agentdeck/internal/tokens"
)

// fakeEmbedder returns deterministic vectors and counts calls.
type fakeEmbedder struct {
	callCount int
	dims      int
	err       error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.callCount++
	if f.err != nil {
		return nil, f.err
	}
	dims := f.dims
	if dims == 0 {
		dims = tokens.EmbeddingDimensions
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, dims)
		v[0] = float32(i + 1)
		vectors[i] = v
	}
	return vectors, nil
}

// spyStore records saves without a database.
type spyStore struct {
	saveCount int
	lastDoc   *Document
	err       error
}

func (s *spyStore) SaveDocument(_ context.Context, doc *Document) (int64, error) {
	s.saveCount++
	s.lastDoc = doc
	if s.err != nil {
		return 0, s.err
	}
	return 42, nil
}

func newTestPipeline(embedder provider.Embedder, store DocumentStore) *Pipeline {
	return NewPipeline(NewChunker(100, 20), embedder, store, log.NewNop())
}

func TestIngestDocument(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &spyStore{}
	p := newTestPipeline(embedder, store)

	text := strings.Repeat("Useful training sentences go here. ", 20)
	res, err := p.IngestDocument(context.Background(), 7, "notes.txt", []byte(text), "text/plain")
	if err != nil {
		t.Fatalf("IngestDocument() error: %v", err)
	}

	if res.DocumentID != 42 {
		t.Errorf("DocumentID = %d, want 42", res.DocumentID)
	}
	if res.ChunkCount < 2 {
		t.Errorf("ChunkCount = %d, want >= 2", res.ChunkCount)
	}
	if want := int64(res.ChunkCount) * tokens.CostPerChunk; res.TokensCharged != want {
		t.Errorf("TokensCharged = %d, want %d", res.TokensCharged, want)
	}
	if embedder.callCount != 1 {
		t.Errorf("embedder called %d times, want 1 batch call", embedder.callCount)
	}
	if store.saveCount != 1 {
		t.Errorf("store called %d times, want 1", store.saveCount)
	}

	doc := store.lastDoc
	if doc.AgentID != 7 || doc.FileName != "notes.txt" {
		t.Errorf("document identity wrong: %+v", doc)
	}
	if len(doc.Chunks) != res.ChunkCount {
		t.Errorf("stored %d chunks, result says %d", len(doc.Chunks), res.ChunkCount)
	}
	if doc.Embedding[0] != 1 {
		t.Error("stored embedding is not the first chunk's vector")
	}
	if len(doc.ChunkEmbeddings) != res.ChunkCount-1 {
		t.Errorf("metadata has %d chunk embeddings, want %d",
			len(doc.ChunkEmbeddings), res.ChunkCount-1)
	}
}

func TestIngestUnsupportedType(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &spyStore{}
	p := newTestPipeline(embedder, store)

	_, err := p.IngestDocument(context.Background(), 1, "img.png", []byte{1, 2}, "image/png")
	if !errors.Is(err, ErrUnsupportedFileType) {
		t.Fatalf("err = %v, want %v", err, ErrUnsupportedFileType)
	}
	if embedder.callCount != 0 || store.saveCount != 0 {
		t.Error("unsupported type must fail before any side effect")
	}
}

func TestIngestEmptyDocument(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &spyStore{}
	p := newTestPipeline(embedder, store)

	_, err := p.IngestDocument(context.Background(), 1, "empty.txt", []byte("   \n "), "text/plain")
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("err = %v, want %v", err, ErrEmptyDocument)
	}
	if embedder.callCount != 0 {
		t.Error("empty document must not reach the embedder")
	}
	if store.saveCount != 0 {
		t.Error("empty document must write nothing")
	}
}

func TestIngestProviderQuota(t *testing.T) {
	embedder := &fakeEmbedder{err: provider.ErrProviderQuota}
	store := &spyStore{}
	p := newTestPipeline(embedder, store)

	_, err := p.IngestDocument(context.Background(), 1, "a.txt", []byte("some text"), "text/plain")
	if !errors.Is(err, provider.ErrProviderQuota) {
		t.Fatalf("err = %v, want %v", err, provider.ErrProviderQuota)
	}
	if store.saveCount != 0 {
		t.Error("failed embedding must write nothing")
	}
}

func TestIngestDimensionMismatch(t *testing.T) {
	embedder := &fakeEmbedder{dims: 768}
	store := &spyStore{}
	p := newTestPipeline(embedder, store)

	_, err := p.IngestDocument(context.Background(), 1, "a.txt", []byte("some text"), "text/plain")
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	if store.saveCount != 0 {
		t.Error("dimension mismatch must write nothing")
	}
}

func TestIngestStorageFailure(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &spyStore{err: errors.New("connection refused")}
	p := newTestPipeline(embedder, store)

	_, err := p.IngestDocument(context.Background(), 1, "a.txt", []byte("some text"), "text/plain")
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("err = %v, want %v", err, ErrStorage)
	}
}

func TestExtractTextPassthrough(t *testing.T) {
	got, err := Extract([]byte("# Title\nbody"), "text/markdown; charset=utf-8")
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if got != "# Title\nbody" {
		t.Errorf("Extract() = %q", got)
	}
}

func TestExtractUnsupported(t *testing.T) {
	// Only PDF and text/* pass; any other MIME type is rejected,
	// structured formats included.
	for _, mt := range []string{"application/zip", "application/json", "image/png"} {
		if _, err := Extract([]byte(`{"a":1}`), mt); !errors.Is(err, ErrUnsupportedFileType) {
			t.Errorf("Extract(%s) err = %v, want %v", mt, err, ErrUnsupportedFileType)
		}
	}
}
