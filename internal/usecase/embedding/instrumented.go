package embedding

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/gamesub/gamesub/internal/domain"
	logpkg "github.com/gamesub/gamesub/internal/logger"
)

// DefaultMaxAPIBatchSize caps the texts sent to the provider in one request.
const DefaultMaxAPIBatchSize = 256

// InstrumentedEmbedder logs provider calls and splits large batches into
// provider-sized requests. Request counters live in the transport packages.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	maxBatch int
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps inner for the named provider and model.
func NewInstrumentedEmbedder(inner domain.Embedder, provider, model string, logger *zap.Logger) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		maxBatch: DefaultMaxAPIBatchSize,
		logger:   logger,
	}
}

// WithMaxBatch overrides DefaultMaxAPIBatchSize. Non-positive values are ignored.
func (p *InstrumentedEmbedder) WithMaxBatch(n int) *InstrumentedEmbedder {
	if n > 0 {
		p.maxBatch = n
	}
	return p
}

// Embed vectorizes one text.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	res, err := p.inner.Embed(ctx, text)
	log := p.log(ctx).With(zap.Duration("duration", time.Since(start)))
	if err != nil {
		log.Error("Embedding request failed", zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	log.Debug("Embedding request completed",
		zap.Int("dimensions", len(res.Embedding)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

// BatchEmbed vectorizes texts in chunks of at most maxBatch, preserving input order.
// A failed chunk fails the whole call.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	log := p.log(ctx)
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	offset := 0
	for chunk := range slices.Chunk(texts, p.maxBatch) {
		res, err := p.embedChunk(ctx, chunk)
		if err != nil {
			log.Error("Batch embedding request failed",
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
		offset += len(chunk)
	}

	log.Debug("Batch embedding completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}

// HealthCheck delegates to the inner embedder when it can check itself.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	return domain.CheckHealth(ctx, p.inner) //nolint:wrapcheck // transparent decorator
}

func (p *InstrumentedEmbedder) embedChunk(ctx context.Context, chunk []string) (domain.BatchEmbeddingResult, error) {
	res, err := domain.EmbedBatch(ctx, p.inner, chunk)
	if err != nil {
		return res, err //nolint:wrapcheck // wrapped by BatchEmbed
	}
	if len(res.Embeddings) != len(chunk) {
		return res, fmt.Errorf("got %d vectors for %d texts: %w",
			len(res.Embeddings), len(chunk), domain.ErrEmbeddingProviderError)
	}
	return res, nil
}

func (p *InstrumentedEmbedder) log(ctx context.Context) *zap.Logger {
	return logpkg.FromContextOr(ctx, p.logger).With(
		zap.String("provider", p.provider),
		zap.String("model", p.model),
	)
}
