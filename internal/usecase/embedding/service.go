package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gamesub/gamesub/internal/domain"
	"github.com/gamesub/gamesub/internal/domain/game"
	"github.com/gamesub/gamesub/internal/projector"
)

// Service turns games and queries into normalized vectors.
type Service struct {
	embedder   domain.Embedder
	query      domain.Embedder
	repo       gameRepo
	dimensions int
	logger     *zap.Logger
}

// New creates an embedding service. dimensions of 0 disables the length check.
func New(embedder domain.Embedder, repo gameRepo, dimensions int, logger *zap.Logger) *Service {
	return &Service{embedder: embedder, query: embedder, repo: repo, dimensions: dimensions, logger: logger}
}

// WithQueryEmbedder routes EmbedQuery through a separate chain (query instruction, cache).
func (s *Service) WithQueryEmbedder(q domain.Embedder) *Service {
	s.query = q
	return s
}

// EmbedOne renders, embeds and stores the vector of it. The stored record is updated with a
// single write, so a failure leaves the previous vector in place.
func (s *Service) EmbedOne(ctx context.Context, it *game.Item) ([]float32, error) {
	text := projector.Render(it)

	res, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed game %d: %w", it.ID, err)
	}
	vec, err := s.vector(res.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embed game %d: %w", it.ID, err)
	}

	fp := projector.FingerprintText(text)
	if err := s.repo.UpdateEmbedding(ctx, it.ID, vec, fp); err != nil {
		return nil, fmt.Errorf("store embedding %d: %w", it.ID, err)
	}
	it.Embedding = vec
	it.Fingerprint = fp
	return vec, nil
}

// Refresh re-embeds it only when its stored vector is missing or stale.
// Returns true when a new vector was written.
func (s *Service) Refresh(ctx context.Context, it *game.Item) (bool, error) {
	if !it.EmbeddingStale(projector.Fingerprint(it)) {
		return false, nil
	}
	if _, err := s.EmbedOne(ctx, it); err != nil {
		return false, err
	}
	s.logger.Debug("Embedding refreshed", zap.Int64("game_id", it.ID))
	return true, nil
}

// EmbedQuery embeds free text for search. Token usage is added to the request collector.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	res, err := s.query.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	domain.UsageFromContext(ctx).Record(res.TotalTokens)
	return s.vector(res.Embedding)
}

func (s *Service) vector(raw []float32) ([]float32, error) {
	if err := domain.CheckDim(raw, s.dimensions); err != nil {
		return nil, err
	}
	return domain.Normalize(raw), nil
}
