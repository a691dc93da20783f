package hybrid

import (
	"context"

	"github.com/gamesub/gamesub/internal/domain/game"
	"github.com/gamesub/gamesub/internal/domain/search/result"
)

// semanticSearcher is the semantic engine.
type semanticSearcher interface {
	Search(ctx context.Context, query string, limit int, minSimilarity float64) ([]result.Result, error)
}

// textFinder is the lexical backend.
type textFinder interface {
	FindByText(ctx context.Context, q string, limit int, exclude map[int64]bool) ([]*game.Item, error)
}
