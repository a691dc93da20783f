package semantic

import (
	"context"

	"github.com/gamesub/gamesub/internal/domain/game"
	"github.com/gamesub/gamesub/internal/usecase/similarity"
)

// queryEmbedder turns free text into a normalized query vector.
type queryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// neighbours is the similarity index.
type neighbours interface {
	Search(ctx context.Context, vec []float32, k int, exclude map[int64]bool) ([]similarity.Hit, error)
}

// gameRepo hydrates hits and provides the quality fallback.
type gameRepo interface {
	Get(ctx context.Context, id int64) (*game.Item, error)
	GetMany(ctx context.Context, ids []int64) ([]*game.Item, error)
	TopRated(ctx context.Context, limit int, exclude map[int64]bool) ([]*game.Item, error)
}
