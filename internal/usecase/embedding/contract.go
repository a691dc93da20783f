package embedding

import "context"

// gameRepo is the consumer interface for embedding persistence.
type gameRepo interface {
	UpdateEmbedding(ctx context.Context, id int64, vec []float32, fingerprint string) error
}
