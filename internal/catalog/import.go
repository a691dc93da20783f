package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gamesub/gamesub/internal/domain/game"
)

// saver is the consumer interface for catalog writes.
type saver interface {
	Save(ctx context.Context, it *game.Item) error
}

// Import upserts items one by one. Stored vectors survive: Save only writes the catalog
// fields, and the fingerprint check marks changed games for re-embedding.
// It stops at the first write error and returns how many records were saved before it.
func Import(ctx context.Context, s saver, items []*game.Item, logger *zap.Logger) (int, error) {
	for i, it := range items {
		if err := ctx.Err(); err != nil {
			return i, fmt.Errorf("import interrupted: %w", err)
		}
		if err := s.Save(ctx, it); err != nil {
			return i, fmt.Errorf("save game %d: %w", it.ID, err)
		}
	}
	logger.Info("Catalog imported", zap.Int("games", len(items)))
	return len(items), nil
}
