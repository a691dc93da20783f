// Package similarity answers k-nearest-neighbour queries over stored game embeddings.
package similarity

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/gamesub/gamesub/internal/domain"
	"github.com/gamesub/gamesub/internal/metrics"
)

// Backend labels.
const (
	BackendNative     = "native"
	BackendBruteForce = "bruteforce"
)

// Hit is one neighbour with its similarity in [0, 1].
type Hit struct {
	ID         int64
	Similarity float64
}

// Index picks the native backend when the store has a vector index and scans in memory otherwise.
type Index struct {
	native nativeIndex
	corpus corpus
	logger *zap.Logger
}

// New creates an Index. native may be nil.
func New(native nativeIndex, c corpus, logger *zap.Logger) *Index {
	return &Index{native: native, corpus: c, logger: logger}
}

// Search returns up to k games most similar to vec, excluding ids in exclude.
// Exclusion happens before truncation so k results come back whenever k eligible games exist.
func (x *Index) Search(ctx context.Context, vec []float32, k int, exclude map[int64]bool) ([]Hit, error) {
	if k <= 0 || len(vec) == 0 {
		return nil, nil
	}

	if x.native != nil && x.native.Available() {
		hits, err := x.searchNative(ctx, vec, k, exclude)
		if err == nil {
			metrics.SimilarityBackendTotal.WithLabelValues(BackendNative).Inc()
			return hits, nil
		}
		x.logger.Warn("Native vector search failed, scanning",
			zap.Int("k", k),
			zap.Error(err),
		)
		metrics.SearchFallbacksTotal.WithLabelValues("native_index").Inc()
	}

	metrics.SimilarityBackendTotal.WithLabelValues(BackendBruteForce).Inc()
	return x.BruteForce(ctx, vec, k, exclude)
}

func (x *Index) searchNative(ctx context.Context, vec []float32, k int, exclude map[int64]bool) ([]Hit, error) {
	raw, err := x.native.SearchKNN(ctx, vec, k+len(exclude))
	if err != nil {
		return nil, fmt.Errorf("native knn: %w", err)
	}
	hits := make([]Hit, 0, len(raw))
	for _, h := range raw {
		if exclude[h.ID] {
			continue
		}
		hits = append(hits, Hit{ID: h.ID, Similarity: domain.ClampSimilarity(h.Similarity)})
	}
	return truncate(hits, k), nil
}

// BruteForce scores every stored embedding against vec.
func (x *Index) BruteForce(ctx context.Context, vec []float32, k int, exclude map[int64]bool) ([]Hit, error) {
	items, err := x.corpus.AllWithEmbedding(ctx)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}

	hits := make([]Hit, 0, len(items))
	for _, it := range items {
		if exclude[it.ID] {
			continue
		}
		if len(it.Embedding) != len(vec) {
			x.logger.Debug("Skipping embedding of unexpected size",
				zap.Int64("game_id", it.ID),
				zap.Int("dims", len(it.Embedding)),
			)
			continue
		}
		hits = append(hits, Hit{ID: it.ID, Similarity: domain.ClampSimilarity(domain.Cosine(vec, it.Embedding))})
	}
	return truncate(hits, k), nil
}

// truncate orders hits by similarity desc, id asc and keeps the first k.
func truncate(hits []Hit, k int) []Hit {
	slices.SortFunc(hits, func(a, b Hit) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return hits[:min(k, len(hits))]
}

