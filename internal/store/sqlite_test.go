package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jdvalen/recuerdo/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func testChunks() ([]domain.Chunk, [][]float32) {
	chunks := []domain.Chunk{
		{
			ID:        0,
			Text:      "[2023-05-01] Juan: te amo",
			StartDate: "2023-05-01",
			EndDate:   "2023-05-01",
			Messages: []domain.Message{
				{Sender: "Juan", Content: "te amo", TimestampMS: 1682942400000},
			},
			MessageCount: 1,
		},
		{
			ID:        1,
			Text:      "[2023-05-02] Karem: yo mas",
			StartDate: "2023-05-02",
			EndDate:   "2023-05-02",
			Messages: []domain.Message{
				{Sender: "Karem", Content: "yo mas", TimestampMS: 1683028800000},
			},
			MessageCount: 1,
		},
	}
	vectors := [][]float32{
		{0.1, 0.2, 0.3},
		{-0.5, 0.25, 1.0},
	}
	return chunks, vectors
}

func TestSaveAndLoadIndexRoundTrip(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	ctx := context.Background()
	chunks, vectors := testChunks()

	if err := repo.SaveIndex(ctx, "text-embedding-3-small", 3, chunks, vectors); err != nil {
		t.Fatalf("SaveIndex failed: %v", err)
	}

	gotChunks, gotVectors, err := repo.LoadIndex(ctx, "text-embedding-3-small", 3)
	if err != nil {
		t.Fatalf("LoadIndex failed: %v", err)
	}
	if len(gotChunks) != 2 || len(gotVectors) != 2 {
		t.Fatalf("expected 2 chunks and 2 vectors, got %d and %d", len(gotChunks), len(gotVectors))
	}
	if gotChunks[0].Text != chunks[0].Text {
		t.Errorf("chunk text mismatch: %q", gotChunks[0].Text)
	}
	if gotChunks[1].Messages[0].Sender != "Karem" {
		t.Errorf("chunk messages not restored: %+v", gotChunks[1].Messages)
	}
	for i := range vectors[1] {
		if gotVectors[1][i] != vectors[1][i] {
			t.Errorf("vector component %d mismatch: %v vs %v", i, gotVectors[1][i], vectors[1][i])
		}
	}
}

func TestLoadIndexModelMismatch(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	ctx := context.Background()
	chunks, vectors := testChunks()

	if err := repo.SaveIndex(ctx, "text-embedding-3-small", 3, chunks, vectors); err != nil {
		t.Fatalf("SaveIndex failed: %v", err)
	}

	if _, _, err := repo.LoadIndex(ctx, "text-embedding-3-large", 3); !errors.Is(err, ErrNoCache) {
		t.Errorf("expected ErrNoCache for model mismatch, got %v", err)
	}
	if _, _, err := repo.LoadIndex(ctx, "text-embedding-3-small", 1536); !errors.Is(err, ErrNoCache) {
		t.Errorf("expected ErrNoCache for dimension mismatch, got %v", err)
	}
}

func TestLoadIndexEmptyCache(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	if _, _, err := repo.LoadIndex(context.Background(), "text-embedding-3-small", 3); !errors.Is(err, ErrNoCache) {
		t.Errorf("expected ErrNoCache on a fresh database, got %v", err)
	}
}

func TestSaveIndexRejectsCountMismatch(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	chunks, vectors := testChunks()
	if err := repo.SaveIndex(context.Background(), "m", 3, chunks, vectors[:1]); err == nil {
		t.Fatal("expected error when vector count does not match chunk count")
	}
}

func TestAppendAnswer(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	err := repo.AppendAnswer(context.Background(), &domain.AnswerRecord{
		SessionID: "sess-1",
		Question:  "¿Cuál es nuestro lugar?",
		Answer:    "el parque",
		Correct:   true,
		Attempts:  1,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("AppendAnswer failed: %v", err)
	}
}
