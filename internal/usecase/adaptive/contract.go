package adaptive

import (
	"context"

	"github.com/gamesub/gamesub/internal/domain/game"
	"github.com/gamesub/gamesub/internal/domain/search/result"
)

// semanticSearcher is the semantic engine.
type semanticSearcher interface {
	Search(ctx context.Context, query string, limit int, minSimilarity float64) ([]result.Result, error)
}

// gameRepo loads full records for re-scoring.
type gameRepo interface {
	GetMany(ctx context.Context, ids []int64) ([]*game.Item, error)
}
