package rag

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jdvalen/recuerdo/internal/domain"
	"github.com/jdvalen/recuerdo/internal/store"
)

// stubEmbedder returns fixed vectors for known texts and a deterministic
// fallback otherwise, so semantically "identical" strings sit at
// distance zero.
type stubEmbedder struct {
	dim     int
	known   map[string][]float32
	failing bool
	calls   int
}

func (s *stubEmbedder) Model() string  { return "stub-embedding" }
func (s *stubEmbedder) Dimension() int { return s.dim }

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.failing {
		return nil, errors.New("provider unavailable")
	}
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := s.known[t]; ok {
			vectors[i] = v
			continue
		}
		v := make([]float32, s.dim)
		for j := range v {
			v[j] = float32((len(t)*(j+3))%17) / 17
		}
		vectors[i] = v
	}
	return vectors, nil
}

// fakeRepo is an in-memory store.Repository.
type fakeRepo struct {
	model   string
	dim     int
	chunks  []domain.Chunk
	vectors [][]float32
	saves   int
}

func (f *fakeRepo) LoadIndex(_ context.Context, model string, dim int) ([]domain.Chunk, [][]float32, error) {
	if f.chunks == nil || f.model != model || f.dim != dim {
		return nil, nil, store.ErrNoCache
	}
	return f.chunks, f.vectors, nil
}

func (f *fakeRepo) SaveIndex(_ context.Context, model string, dim int, chunks []domain.Chunk, vectors [][]float32) error {
	f.model, f.dim = model, dim
	f.chunks, f.vectors = chunks, vectors
	f.saves++
	return nil
}

func (f *fakeRepo) AppendAnswer(context.Context, *domain.AnswerRecord) error { return nil }
func (f *fakeRepo) IndexSizeBytes() int64 {
	if f.chunks == nil {
		return 0
	}
	return 1024
}
func (f *fakeRepo) Ping(context.Context) error { return nil }
func (f *fakeRepo) Close() error               { return nil }

func corpusMessages(n int) []domain.Message {
	base := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	messages := make([]domain.Message, 0, n)
	for i := 0; i < n; i++ {
		messages = append(messages, domain.Message{
			Sender:      "Juan",
			Content:     fmt.Sprintf("mensaje numero %d", i),
			TimestampMS: base.AddDate(0, 0, i).UnixMilli(),
		})
	}
	return messages
}

func TestBuildIndexIntegrity(t *testing.T) {
	t.Parallel()

	embedder := &stubEmbedder{dim: 4}
	repo := &fakeRepo{}
	ix := NewIndex(embedder, repo, 5)

	if err := ix.Build(context.Background(), corpusMessages(10), false); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	stats := ix.Statistics()
	if stats.ChunkCount != 2 {
		t.Errorf("expected 2 chunks for 10 messages at size 5, got %d", stats.ChunkCount)
	}
	if stats.VectorCount != stats.ChunkCount {
		t.Errorf("vector count %d must equal chunk count %d", stats.VectorCount, stats.ChunkCount)
	}
	if stats.MessageCount != 10 {
		t.Errorf("expected message count 10, got %d", stats.MessageCount)
	}
	if repo.saves != 1 {
		t.Errorf("expected exactly one cache save, got %d", repo.saves)
	}
}

func TestBuildEmptyCorpusFails(t *testing.T) {
	t.Parallel()

	ix := NewIndex(&stubEmbedder{dim: 4}, &fakeRepo{}, 5)
	if err := ix.Build(context.Background(), nil, false); err == nil {
		t.Fatal("expected error for empty corpus")
	}
	if ix.Ready() {
		t.Fatal("index must not report ready after a failed build")
	}
}

func TestBuildLoadsFromCache(t *testing.T) {
	t.Parallel()

	embedder := &stubEmbedder{dim: 4}
	repo := &fakeRepo{}
	first := NewIndex(embedder, repo, 5)
	if err := first.Build(context.Background(), corpusMessages(10), false); err != nil {
		t.Fatalf("initial Build failed: %v", err)
	}

	fresh := &stubEmbedder{dim: 4}
	second := NewIndex(fresh, repo, 5)
	if err := second.Build(context.Background(), corpusMessages(10), false); err != nil {
		t.Fatalf("cached Build failed: %v", err)
	}
	if fresh.calls != 0 {
		t.Errorf("cached build must not call the embedder, got %d calls", fresh.calls)
	}
	if repo.saves != 1 {
		t.Errorf("cached build must not rewrite the cache, got %d saves", repo.saves)
	}
}

func TestBuildForceRebuildSkipsCache(t *testing.T) {
	t.Parallel()

	embedder := &stubEmbedder{dim: 4}
	repo := &fakeRepo{}
	ix := NewIndex(embedder, repo, 5)
	if err := ix.Build(context.Background(), corpusMessages(10), false); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	callsAfterFirst := embedder.calls

	if err := ix.Build(context.Background(), corpusMessages(10), true); err != nil {
		t.Fatalf("forced Build failed: %v", err)
	}
	if embedder.calls <= callsAfterFirst {
		t.Error("forced rebuild must re-embed the corpus")
	}
	if repo.saves != 2 {
		t.Errorf("forced rebuild must rewrite the cache, got %d saves", repo.saves)
	}
}

func TestBuildDegradesOnEmbeddingFailure(t *testing.T) {
	t.Parallel()

	embedder := &stubEmbedder{dim: 4, failing: true}
	ix := NewIndex(embedder, &fakeRepo{}, 5)

	// A completely failing provider still must not crash the build.
	if err := ix.Build(context.Background(), corpusMessages(10), false); err != nil {
		t.Fatalf("Build must survive embedding failures: %v", err)
	}
	stats := ix.Statistics()
	if stats.VectorCount != stats.ChunkCount {
		t.Errorf("degraded build broke the vector/chunk invariant: %d vs %d", stats.VectorCount, stats.ChunkCount)
	}
}

func TestSearchBeforeBuildFails(t *testing.T) {
	t.Parallel()

	ix := NewIndex(&stubEmbedder{dim: 4}, &fakeRepo{}, 5)
	if _, err := ix.Search(context.Background(), "amor", 3, SearchFilter{}); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestSearchResultBoundAndOrdering(t *testing.T) {
	t.Parallel()

	embedder := &stubEmbedder{dim: 2, known: map[string][]float32{
		"amor": {1, 0},
	}}
	ix := NewIndex(embedder, &fakeRepo{}, 5)
	if err := ix.Build(context.Background(), corpusMessages(40), false); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	for _, k := range []int{1, 3, 100} {
		results, err := ix.Search(context.Background(), "amor", k, SearchFilter{})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(results) > k {
			t.Errorf("k=%d returned %d results", k, len(results))
		}
		for i := 1; i < len(results); i++ {
			if results[i].Distance < results[i-1].Distance {
				t.Errorf("results not ordered by ascending distance at %d", i)
			}
			if results[i].Rank != i+1 {
				t.Errorf("rank %d expected at position %d, got %d", i+1, i, results[i].Rank)
			}
		}
	}
}

func TestSearchFindsIdenticalText(t *testing.T) {
	t.Parallel()

	ts := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	messages := []domain.Message{
		{Sender: "Juan", Content: "te amo", TimestampMS: ts},
		{Sender: "Karem", Content: "vamos al cine", TimestampMS: ts},
	}

	// Identical seed strings embed to identical vectors, so the chunk
	// containing "te amo" must come back at distance 0.
	target := "[2023-05-01] Juan: te amo"
	embedder := &stubEmbedder{dim: 3, known: map[string][]float32{
		"te amo": {1, 0, 0},
		target:   {1, 0, 0},
	}}
	ix := NewIndex(embedder, &fakeRepo{}, 1)
	if err := ix.Build(context.Background(), messages, false); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	results, err := ix.Search(context.Background(), "te amo", 1, SearchFilter{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Chunk.Text != target {
		t.Errorf("expected the te-amo chunk, got %q", results[0].Chunk.Text)
	}
	if results[0].Distance != 0 {
		t.Errorf("identical embedding should be at distance 0, got %v", results[0].Distance)
	}
}

func TestSearchFilters(t *testing.T) {
	t.Parallel()

	may := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	august := time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	messages := []domain.Message{
		{Sender: "Juan", Content: "hola", TimestampMS: may},
		{Sender: "Karem", Content: "hola", TimestampMS: august},
	}

	ix := NewIndex(&stubEmbedder{dim: 3}, &fakeRepo{}, 1)
	if err := ix.Build(context.Background(), messages, false); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	results, err := ix.Search(context.Background(), "hola", 5, SearchFilter{StartDate: "2023-07-01", EndDate: "2023-09-01"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].Chunk.StartDate != "2023-08-01" {
		t.Errorf("date filter failed: %+v", results)
	}

	results, err = ix.Search(context.Background(), "hola", 5, SearchFilter{Sender: "Karem"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || !results[0].Chunk.HasSender("Karem") {
		t.Errorf("sender filter failed: %+v", results)
	}
}

func TestSearchEmbeddingErrorPropagates(t *testing.T) {
	t.Parallel()

	embedder := &stubEmbedder{dim: 3}
	ix := NewIndex(embedder, &fakeRepo{}, 1)
	if err := ix.Build(context.Background(), corpusMessages(3), false); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	embedder.failing = true
	if _, err := ix.Search(context.Background(), "amor", 3, SearchFilter{}); err == nil {
		t.Fatal("expected query embedding failure to propagate")
	}
}
