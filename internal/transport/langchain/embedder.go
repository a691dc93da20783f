// Package langchain adapts langchaingo embedders to the domain embedding contracts.
package langchain

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/gamesub/gamesub/internal/domain"
	"github.com/gamesub/gamesub/internal/metrics"
)

const provider = "langchain"

// Config holds the langchaingo client settings.
type Config struct {
	BaseURL string
	// APIKey may be empty for local servers; "none" is sent instead.
	APIKey string
	Model  string
	Logger *zap.Logger
}

// Embedder vectorizes text through a langchaingo OpenAI-compatible client.
// langchaingo does not expose token usage, so results report zero tokens.
type Embedder struct {
	embedder embeddings.Embedder
	model    string
	logger   *zap.Logger
}

// NewEmbedder creates a langchaingo-backed embedder.
func NewEmbedder(cfg *Config) (*Embedder, error) {
	token := cfg.APIKey
	if token == "" {
		token = "none"
	}
	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("langchain client: %w", err)
	}
	emb, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("langchain embedder: %w", err)
	}
	return &Embedder{embedder: emb, model: cfg.Model, logger: cfg.Logger}, nil
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	vecs, err := e.embed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: vecs[0]}, nil
}

// BatchEmbed implements domain.BatchEmbedder. langchaingo splits large inputs itself.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	vecs, err := e.embed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	return domain.BatchEmbeddingResult{Embeddings: vecs}, nil
}

// HealthCheck embeds a probe string.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.embed(ctx, []string{"ping"}); err != nil {
		return fmt.Errorf("probe embedding: %w", err)
	}
	return nil
}

func (e *Embedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	took := time.Since(start)
	if err != nil {
		e.countError("api_error")
		e.logger.Debug("langchain embedding failed", zap.Int("count", len(texts)), zap.Error(err))
		return nil, fmt.Errorf("langchain embed: %v: %w", err, domain.ErrEmbeddingProviderError)
	}
	if len(vecs) != len(texts) {
		e.countError("count_mismatch")
		return nil, fmt.Errorf("expected %d embeddings, got %d: %w",
			len(texts), len(vecs), domain.ErrEmbeddingProviderError)
	}

	metrics.ObserveEmbeddingCall(provider, e.model, len(texts), took)
	return vecs, nil
}

func (e *Embedder) countError(kind string) {
	metrics.CountEmbeddingError(provider, e.model, kind)
}
