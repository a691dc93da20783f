package search

import (
	"context"

	"github.com/gamesub/gamesub/internal/domain/game"
	"github.com/gamesub/gamesub/internal/domain/intent"
	"github.com/gamesub/gamesub/internal/domain/search/request"
	"github.com/gamesub/gamesub/internal/domain/search/result"
	"github.com/gamesub/gamesub/internal/repository/history"
)

// SemanticEngine ranks by embedding similarity.
type SemanticEngine interface {
	Search(ctx context.Context, query string, limit int, minSimilarity float64) ([]result.Result, error)
}

// HybridEngine blends semantic and lexical hits.
type HybridEngine interface {
	Search(ctx context.Context, query string, limit int) ([]result.Result, error)
}

// AdaptiveEngine rescores semantic hits by intent tags.
type AdaptiveEngine interface {
	Search(ctx context.Context, query string, tags []intent.Tag, limit int, minSimilarity float64) ([]result.Result, error)
}

// Catalog serves the model-free strategies.
type Catalog interface {
	FindByText(ctx context.Context, q string, limit int, exclude map[int64]bool) ([]*game.Item, error)
	TopRated(ctx context.Context, limit int, exclude map[int64]bool) ([]*game.Item, error)
}

// ResultCache stores answers by structured key. Optional.
type ResultCache interface {
	Get(key request.CacheKey) ([]result.Result, bool, error)
	Put(key request.CacheKey, rs []result.Result) error
}

// HistoryRecorder logs served searches. Optional.
type HistoryRecorder interface {
	Record(ctx context.Context, e history.Entry) error
}
