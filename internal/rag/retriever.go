package rag

import (
	"context"
	"sort"

	"github.com/jdvalen/recuerdo/internal/domain"
)

// Retriever is a thin contract layer over the index's search, adding
// the composite queries the question generator needs.
type Retriever struct {
	index *Index
}

// NewRetriever wraps the given index.
func NewRetriever(index *Index) *Retriever {
	return &Retriever{index: index}
}

// Search returns up to k chunks for a single query, unfiltered.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	return r.index.Search(ctx, query, k, SearchFilter{})
}

// SearchFiltered returns up to k chunks restricted by the filter.
func (r *Retriever) SearchFiltered(ctx context.Context, query string, k int, filter SearchFilter) ([]domain.SearchResult, error) {
	return r.index.Search(ctx, query, k, filter)
}

// SearchSeeds runs one search per seed phrase and merges the results,
// deduplicating by chunk id and keeping the lowest distance per chunk.
// The merged set is ordered by ascending distance and truncated to k.
func (r *Retriever) SearchSeeds(ctx context.Context, seeds []string, k int) ([]domain.SearchResult, error) {
	if len(seeds) == 0 || k <= 0 {
		return nil, nil
	}

	perSeed := k/len(seeds) + 1
	best := make(map[int]domain.SearchResult)
	for _, seed := range seeds {
		results, err := r.index.Search(ctx, seed, perSeed, SearchFilter{})
		if err != nil {
			return nil, err
		}
		for _, res := range results {
			if prev, ok := best[res.Chunk.ID]; !ok || res.Distance < prev.Distance {
				best[res.Chunk.ID] = res
			}
		}
	}

	merged := make([]domain.SearchResult, 0, len(best))
	for _, res := range best {
		merged = append(merged, res)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Distance != merged[j].Distance {
			return merged[i].Distance < merged[j].Distance
		}
		return merged[i].Chunk.ID < merged[j].Chunk.ID
	})
	if len(merged) > k {
		merged = merged[:k]
	}
	for i := range merged {
		merged[i].Rank = i + 1
	}
	return merged, nil
}
