// Package bootstrap assembles the storage and embedding stack shared by the server and the CLI.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gamesub/gamesub/internal/config"
	"github.com/gamesub/gamesub/internal/db"
	dbredis "github.com/gamesub/gamesub/internal/db/redis"
	"github.com/gamesub/gamesub/internal/domain"
	"github.com/gamesub/gamesub/internal/metrics"
	"github.com/gamesub/gamesub/internal/repository/embcache"
	langchainEmb "github.com/gamesub/gamesub/internal/transport/langchain"
	openaiEmb "github.com/gamesub/gamesub/internal/transport/openai"
	embeddinguc "github.com/gamesub/gamesub/internal/usecase/embedding"
)

// OpenStore connects to Redis and waits until it answers.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (*dbredis.Store, error) {
	store, err := dbredis.NewStore(dbredis.Config{
		Addrs:    cfg.Addrs,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	return store, nil
}

// Embedders is the composed embedding stack.
type Embedders struct {
	// Model is the lazily loaded provider shared by both chains.
	Model    *embeddinguc.Lazy
	Document domain.Embedder
	Query    domain.Embedder
}

// NewLoader returns a loader for the configured provider. The loader probes the
// provider, so an unreachable model fails the load and is retried on the next call.
func NewLoader(cfg config.EmbeddingConfig, logger *zap.Logger) embeddinguc.Loader {
	return func(ctx context.Context) (domain.Embedder, error) {
		var (
			model domain.Embedder
			probe domain.HealthChecker
		)
		switch cfg.Provider {
		case config.ProviderLangchain:
			e, err := langchainEmb.NewEmbedder(&langchainEmb.Config{
				BaseURL: cfg.BaseURL,
				APIKey:  cfg.APIKey,
				Model:   cfg.Model,
				Logger:  logger,
			})
			if err != nil {
				return nil, err
			}
			model, probe = e, e
		default:
			e := openaiEmb.NewEmbedder(&openaiEmb.Config{
				APIKey:     cfg.APIKey,
				BaseURL:    cfg.BaseURL,
				Model:      cfg.Model,
				Dimensions: cfg.RequestDimensions,
				Provider:   cfg.Provider,
				Logger:     logger,
			})
			model, probe = e, e
		}
		if err := probe.HealthCheck(ctx); err != nil {
			return nil, err
		}
		return model, nil
	}
}

// BuildEmbedders assembles the decorator chains:
// provider -> Lazy -> Instrumented -> Cached (when kv != nil) -> Instruction.
func BuildEmbedders(cfg *config.Config, kv db.KVStore, logger *zap.Logger) Embedders {
	return BuildEmbeddersWithLoader(cfg, NewLoader(cfg.Embedding, logger), kv, logger)
}

// BuildEmbeddersWithLoader is BuildEmbedders with an explicit model loader.
func BuildEmbeddersWithLoader(cfg *config.Config, load embeddinguc.Loader, kv db.KVStore, logger *zap.Logger) Embedders {
	lazy := embeddinguc.NewLazy(load, logger)

	var base domain.Embedder = embeddinguc.NewInstrumentedEmbedder(
		lazy, cfg.Embedding.Provider, cfg.Embedding.Model, logger,
	).WithMaxBatch(cfg.Embedding.MaxAPIBatch)

	if kv != nil && cfg.Cache.Embeddings {
		ttl := time.Duration(cfg.Cache.EmbeddingTTLHours) * time.Hour
		base = embcache.New(base, kv, cfg.Embedding.Model, ttl, metrics.EmbeddingCacheTotal, logger)
	}

	// Instruction prefix is outermost, so cache keys include it.
	return Embedders{
		Model:    lazy,
		Document: withInstruction(base, cfg.Embedding.DocumentInstruction),
		Query:    withInstruction(base, cfg.Embedding.QueryInstruction),
	}
}

func withInstruction(e domain.Embedder, instruction string) domain.Embedder {
	if instruction == "" {
		return e
	}
	return domain.NewInstructionEmbedder(e, instruction)
}
