// Package embcache memoizes embeddings in the key-value store so repeated
// queries and unchanged catalog texts skip the provider.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/gamesub/gamesub/internal/db"
	"github.com/gamesub/gamesub/internal/domain"
)

var keyPrefix = domain.KeyPrefix + "emb:"

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEmbedder wraps an embedder with a store-backed cache.
// Entries are keyed by model and text hash; a model switch starts from an empty cache.
type CachedEmbedder struct {
	inner   domain.Embedder
	store   store
	model   string
	ttl     time.Duration
	lookups *prometheus.CounterVec // label "result": hit / miss; may be nil
	logger  *zap.Logger
}

// New creates a caching decorator. ttl <= 0 keeps entries until evicted.
func New(
	inner domain.Embedder,
	s store,
	model string,
	ttl time.Duration,
	lookups *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	return &CachedEmbedder{
		inner:   inner,
		store:   s,
		model:   model,
		ttl:     ttl,
		lookups: lookups,
		logger:  logger,
	}
}

// Embed serves text from the cache or the provider. Hits report zero tokens.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.key(text)
	if vec, ok := c.lookup(ctx, key); ok {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	res, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	c.remember(ctx, key, res.Embedding)
	return res, nil
}

// BatchEmbed answers what it can from the cache and sends each distinct
// missing text to the provider once, in a single call.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	pending := make(map[string][]int) // missing text -> positions in texts
	var misses []string

	for i, text := range texts {
		if at, ok := pending[text]; ok {
			pending[text] = append(at, i)
			continue
		}
		if vec, ok := c.lookup(ctx, c.key(text)); ok {
			out.Embeddings[i] = vec
			continue
		}
		pending[text] = []int{i}
		misses = append(misses, text)
	}
	if len(misses) == 0 {
		return out, nil
	}

	res, err := c.embedMisses(ctx, misses)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	for j, text := range misses {
		vec := res.Embeddings[j]
		c.remember(ctx, c.key(text), vec)
		for _, i := range pending[text] {
			out.Embeddings[i] = vec
		}
	}
	out.PromptTokens = res.PromptTokens
	out.TotalTokens = res.TotalTokens
	return out, nil
}

func (c *CachedEmbedder) embedMisses(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	res, err := domain.EmbedBatch(ctx, c.inner, texts)
	if err != nil {
		return res, fmt.Errorf("batch embed %d misses: %w", len(texts), err)
	}
	if len(res.Embeddings) != len(texts) {
		return res, fmt.Errorf("%w: got %d embeddings for %d texts",
			domain.ErrEmbeddingProviderError, len(res.Embeddings), len(texts))
	}
	return res, nil
}

// HealthCheck delegates to the inner embedder.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	return domain.CheckHealth(ctx, c.inner) //nolint:wrapcheck // transparent decorator
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return keyPrefix + c.model + ":" + hex.EncodeToString(sum[:])
}

// lookup reads a cached vector. Store failures and corrupt entries count as misses.
func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	vec, err := c.read(ctx, key)
	if err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		c.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
	}
	hit := err == nil && len(vec) > 0
	c.count(hit)
	return vec, hit
}

func (c *CachedEmbedder) count(hit bool) {
	if c.lookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.lookups.WithLabelValues(result).Inc()
}

func (c *CachedEmbedder) read(ctx context.Context, key string) ([]float32, error) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err //nolint:wrapcheck // classified by lookup
	}
	return domain.DecodeVector(data) //nolint:wrapcheck // classified by lookup
}

func (c *CachedEmbedder) remember(ctx context.Context, key string, vec []float32) {
	data := domain.EncodeVector(vec)
	var err error
	if c.ttl > 0 {
		err = c.store.SetWithTTL(ctx, key, data, c.ttl)
	} else {
		err = c.store.Set(ctx, key, data)
	}
	if err != nil {
		c.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}
