package similarity

import (
	"context"

	"github.com/gamesub/gamesub/internal/domain/game"
	searchrepo "github.com/gamesub/gamesub/internal/repository/search"
)

// nativeIndex is the server-side KNN backend.
type nativeIndex interface {
	Available() bool
	SearchKNN(ctx context.Context, vec []float32, k int) ([]searchrepo.Hit, error)
}

// corpus supplies candidates for the brute-force scan.
type corpus interface {
	AllWithEmbedding(ctx context.Context) ([]*game.Item, error)
}
