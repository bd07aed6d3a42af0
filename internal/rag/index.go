package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jdvalen/recuerdo/internal/corpus"
	"github.com/jdvalen/recuerdo/internal/domain"
	"github.com/jdvalen/recuerdo/internal/store"
)

// ErrNotReady is returned when search is attempted before the index has
// been built.
var ErrNotReady = errors.New("index not built")

const (
	// embedBatchSize keeps each embedding call within provider limits.
	embedBatchSize = 50

	// embedRetries bounds retry attempts per batch before degrading to
	// a zero-vector placeholder.
	embedRetries = 2
)

// Index maintains the chunk embeddings and serves exact nearest-neighbor
// queries. It is effectively read-only after Build completes; Search
// takes no lock.
type Index struct {
	embedder  Embedder
	repo      store.Repository
	chunkSize int

	buildMu sync.Mutex
	ready   atomic.Bool

	chunks       []domain.Chunk
	vectors      [][]float32
	messageCount int
}

// NewIndex creates an index backed by the given embedder and cache
// repository.
func NewIndex(embedder Embedder, repo store.Repository, chunkSize int) *Index {
	return &Index{embedder: embedder, repo: repo, chunkSize: chunkSize}
}

// Ready reports whether the index can serve searches.
func (ix *Index) Ready() bool {
	return ix.ready.Load()
}

// Build chunks the corpus, embeds every chunk and assembles the index.
// A valid cache (matching model and dimension) is loaded instead unless
// forceRebuild is set. A failed embedding batch degrades to zero-vector
// placeholders rather than aborting the whole build.
func (ix *Index) Build(ctx context.Context, messages []domain.Message, forceRebuild bool) error {
	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()

	if ix.ready.Load() && !forceRebuild {
		return nil
	}

	model := ix.embedder.Model()
	dim := ix.embedder.Dimension()

	if !forceRebuild {
		chunks, vectors, err := ix.repo.LoadIndex(ctx, model, dim)
		if err == nil {
			ix.install(chunks, vectors)
			slog.Info("Embedding index loaded from cache",
				"chunks", len(chunks), "vectors", len(vectors), "model", model)
			return nil
		}
		if !errors.Is(err, store.ErrNoCache) {
			slog.Warn("Failed to load index cache, rebuilding", "error", err)
		}
	}

	chunks := corpus.Chunk(messages, ix.chunkSize)
	if len(chunks) == 0 {
		return fmt.Errorf("cannot build index over an empty corpus")
	}
	slog.Info("Building embedding index", "messages", len(messages), "chunks", len(chunks), "model", model)

	vectors, degraded := ix.embedAll(ctx, chunks, dim)
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedded %d vectors for %d chunks", len(vectors), len(chunks))
	}
	if degraded > 0 {
		slog.Warn("Index built with degraded batches", "zero_vector_chunks", degraded)
	}

	if err := ix.repo.SaveIndex(ctx, model, dim, chunks, vectors); err != nil {
		// The in-memory index still works; the next start just rebuilds.
		slog.Warn("Failed to persist index cache", "error", err)
	}

	ix.install(chunks, vectors)
	slog.Info("Embedding index built", "chunks", len(chunks), "vectors", len(vectors))
	return nil
}

func (ix *Index) install(chunks []domain.Chunk, vectors [][]float32) {
	total := 0
	for _, c := range chunks {
		total += c.MessageCount
	}
	ix.chunks = chunks
	ix.vectors = vectors
	ix.messageCount = total
	ix.ready.Store(true)
}

// embedAll embeds chunk texts in batches, substituting zero vectors for
// batches that keep failing after retries. Returns the number of chunks
// that got placeholders.
func (ix *Index) embedAll(ctx context.Context, chunks []domain.Chunk, dim int) ([][]float32, int) {
	vectors := make([][]float32, 0, len(chunks))
	degraded := 0

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		batch, err := ix.embedBatchWithRetry(ctx, texts)
		if err != nil {
			slog.Warn("Embedding batch failed, substituting zero vectors",
				"batch_start", start, "batch_size", len(texts), "error", err)
			batch = make([][]float32, len(texts))
			for i := range batch {
				batch[i] = make([]float32, dim)
			}
			degraded += len(texts)
		}
		vectors = append(vectors, batch...)

		slog.Debug("Embedded batch", "processed", len(vectors), "total", len(chunks))
	}
	return vectors, degraded
}

func (ix *Index) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= embedRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		batch, err := ix.embedder.EmbedBatch(ctx, texts)
		if err == nil {
			return batch, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// SearchFilter restricts search results. Zero values mean no filtering.
type SearchFilter struct {
	StartDate string // YYYY-MM-DD, inclusive
	EndDate   string // YYYY-MM-DD, inclusive
	Sender    string
}

func (f SearchFilter) matches(c domain.Chunk) bool {
	if f.StartDate != "" && f.EndDate != "" && !c.OverlapsDateRange(f.StartDate, f.EndDate) {
		return false
	}
	if f.Sender != "" && !c.HasSender(f.Sender) {
		return false
	}
	return true
}

// Search embeds the query and returns up to k chunks ordered by
// ascending distance. It overfetches 2*k candidates so post-filtering by
// date range or sender still fills the result set. Embedding failures
// propagate to the caller.
func (ix *Index) Search(ctx context.Context, query string, k int, filter SearchFilter) ([]domain.SearchResult, error) {
	if !ix.Ready() {
		return nil, ErrNotReady
	}
	if k <= 0 {
		return nil, nil
	}

	queryVector, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates := ix.nearest(queryVector, 2*k)

	results := make([]domain.SearchResult, 0, k)
	for _, cand := range candidates {
		chunk := ix.chunks[cand.index]
		if !filter.matches(chunk) {
			continue
		}
		results = append(results, domain.SearchResult{
			Chunk:    chunk,
			Distance: cand.distance,
			Rank:     len(results) + 1,
		})
		if len(results) >= k {
			break
		}
	}
	return results, nil
}

type candidate struct {
	index    int
	distance float32
}

// nearest scans every vector and returns the n closest by squared L2
// distance. Squared distance preserves ordering, matching the flat L2
// index the cache format was designed around.
func (ix *Index) nearest(query []float32, n int) []candidate {
	candidates := make([]candidate, len(ix.vectors))
	for i, v := range ix.vectors {
		candidates[i] = candidate{index: i, distance: l2Squared(query, v)}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].index < candidates[j].index
	})
	if n > len(candidates) {
		n = len(candidates)
	}
	return candidates[:n]
}

func l2Squared(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Stats summarizes the index for health checks and the stats endpoint.
type Stats struct {
	ChunkCount     int    `json:"chunk_count"`
	MessageCount   int    `json:"message_count"`
	VectorCount    int    `json:"vector_count"`
	Dimension      int    `json:"embedding_dimension"`
	Model          string `json:"embedding_model"`
	CachePresent   bool   `json:"cache_present"`
	IndexSizeBytes int64  `json:"index_size_bytes"`
}

// Statistics reports the current state of the index.
func (ix *Index) Statistics() Stats {
	size := ix.repo.IndexSizeBytes()
	return Stats{
		ChunkCount:     len(ix.chunks),
		MessageCount:   ix.messageCount,
		VectorCount:    len(ix.vectors),
		Dimension:      ix.embedder.Dimension(),
		Model:          ix.embedder.Model(),
		CachePresent:   size > 0,
		IndexSizeBytes: size,
	}
}
