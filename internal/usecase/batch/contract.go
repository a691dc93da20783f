package batch

import (
	"context"

	"github.com/gamesub/gamesub/internal/domain/game"
	gamerepo "github.com/gamesub/gamesub/internal/repository/game"
)

// gameRepo loads backfill candidates and commits a chunk of vectors atomically.
type gameRepo interface {
	All(ctx context.Context) ([]*game.Item, error)
	AllWithoutEmbedding(ctx context.Context) ([]*game.Item, error)
	UpdateEmbeddings(ctx context.Context, updates []gamerepo.Update) error
}
