package embedding

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/gamesub/gamesub/internal/domain"
	"github.com/gamesub/gamesub/internal/metrics"
)

// Loader builds the embedding model. It may be slow (weights download, provider handshake).
type Loader func(ctx context.Context) (domain.Embedder, error)

// Lazy defers model construction to the first call that needs it.
// Concurrent first callers wait on one load; a failed load is retried by the next caller.
type Lazy struct {
	load   Loader
	logger *zap.Logger

	mu    sync.Mutex
	model domain.Embedder
}

// NewLazy creates a lazy embedder around load.
func NewLazy(load Loader, logger *zap.Logger) *Lazy {
	return &Lazy{load: load, logger: logger}
}

// Loaded reports whether the model is initialised.
func (l *Lazy) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.model != nil
}

// Model returns the initialised model, loading it on first use.
func (l *Lazy) Model(ctx context.Context) (domain.Embedder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.model != nil {
		return l.model, nil
	}

	m, err := l.load(ctx)
	if err != nil {
		metrics.ModelLoadsTotal.WithLabelValues("error").Inc()
		l.logger.Warn("Embedding model load failed", zap.Error(err))
		return nil, fmt.Errorf("load model: %v: %w", err, domain.ErrModelUnavailable)
	}
	if m == nil {
		metrics.ModelLoadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load model: loader returned nil: %w", domain.ErrModelUnavailable)
	}

	metrics.ModelLoadsTotal.WithLabelValues("success").Inc()
	l.logger.Info("Embedding model loaded")
	l.model = m
	return m, nil
}

// Embed implements domain.Embedder.
func (l *Lazy) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m, err := l.Model(ctx)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return m.Embed(ctx, text) //nolint:wrapcheck // transparent decorator
}

// BatchEmbed implements domain.BatchEmbedder.
func (l *Lazy) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m, err := l.Model(ctx)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	return domain.EmbedBatch(ctx, m, texts) //nolint:wrapcheck // transparent decorator
}

// HealthCheck loads the model if needed and asks it to check itself.
func (l *Lazy) HealthCheck(ctx context.Context) error {
	m, err := l.Model(ctx)
	if err != nil {
		return err
	}
	if err := domain.CheckHealth(ctx, m); err != nil {
		return fmt.Errorf("model health: %v: %w", err, domain.ErrModelUnavailable)
	}
	return nil
}
