// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/jdvalen/recuerdo/internal/domain"
)

// ErrNoCache indicates that no usable cached index exists for the
// requested embedding model and dimension. A cache written for one
// model must never be served for another.
var ErrNoCache = errors.New("no cached index for model")

// Repository defines the interface for persisting the embedding index
// cache and the answer-history archive.
type Repository interface {
	// LoadIndex returns the cached chunks and their embedding vectors.
	// Returns ErrNoCache when no cache exists or the cached model or
	// dimension does not match the requested one.
	LoadIndex(ctx context.Context, model string, dim int) ([]domain.Chunk, [][]float32, error)

	// SaveIndex atomically replaces the cached index with the given
	// chunks and vectors, tagged by embedding model and dimension.
	// len(vectors) must equal len(chunks).
	SaveIndex(ctx context.Context, model string, dim int, chunks []domain.Chunk, vectors [][]float32) error

	// AppendAnswer archives one answer event.
	AppendAnswer(ctx context.Context, rec *domain.AnswerRecord) error

	// IndexSizeBytes returns the on-disk size of the cache database.
	IndexSizeBytes() int64

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
