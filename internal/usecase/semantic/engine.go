// Package semantic ranks games by embedding similarity to a query, a game or a user profile.
package semantic

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/gamesub/gamesub/internal/domain"
	"github.com/gamesub/gamesub/internal/domain/game"
	"github.com/gamesub/gamesub/internal/domain/search/result"
	"github.com/gamesub/gamesub/internal/metrics"
	"github.com/gamesub/gamesub/internal/usecase/similarity"
)

// Suggestion parameters.
const (
	MinSuggestLength     = 3
	SuggestMinSimilarity = 0.4
	DefaultSuggestLimit  = 5

	suggestCandidates = 10
	minSuggestTerm    = 3
)

// Engine is the semantic search engine.
type Engine struct {
	embedder queryEmbedder
	index    neighbours
	games    gameRepo
	logger   *zap.Logger
}

// New creates a semantic engine.
func New(embedder queryEmbedder, index neighbours, games gameRepo, logger *zap.Logger) *Engine {
	return &Engine{embedder: embedder, index: index, games: games, logger: logger}
}

// Search embeds query once and returns up to limit games with similarity >= minSimilarity.
// A blank query returns nothing and does not touch the model.
func (e *Engine) Search(ctx context.Context, query string, limit int, minSimilarity float64) ([]result.Result, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}

	vec, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	return e.searchVector(ctx, vec, limit, minSimilarity, nil)
}

// SearchByProfile recommends games close to the mean of the liked games' embeddings.
// Liked games are never recommended back. Without any liked embedding it returns the
// top-rated list unchanged.
func (e *Engine) SearchByProfile(ctx context.Context, liked []int64, limit int) ([]result.Result, error) {
	if limit <= 0 {
		return nil, nil
	}
	exclude := make(map[int64]bool, len(liked))
	for _, id := range liked {
		exclude[id] = true
	}

	items, err := e.games.GetMany(ctx, liked)
	if err != nil {
		return nil, fmt.Errorf("load liked games: %w", err)
	}
	var vecs [][]float32
	for _, it := range items {
		if it.HasEmbedding() {
			vecs = append(vecs, it.Embedding)
		}
	}
	if len(vecs) == 0 {
		e.logger.Debug("Empty profile, using top rated", zap.Int("liked", len(liked)))
		metrics.SearchFallbacksTotal.WithLabelValues("empty_profile").Inc()
		return e.TopRated(ctx, limit, exclude)
	}

	mean, err := domain.Mean(vecs)
	if err != nil {
		return nil, fmt.Errorf("profile vector: %w", err)
	}
	return e.searchVector(ctx, domain.Normalize(mean), limit, 0, exclude)
}

// SimilarTo returns games close to the game id. A game without a vector gets the top-rated list.
func (e *Engine) SimilarTo(ctx context.Context, id int64, limit int) ([]result.Result, error) {
	it, err := e.games.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("similar to %d: %w", id, err)
	}
	exclude := map[int64]bool{id: true}
	if !it.HasEmbedding() {
		metrics.SearchFallbacksTotal.WithLabelValues("missing_embedding").Inc()
		return e.TopRated(ctx, limit, exclude)
	}
	return e.searchVector(ctx, it.Embedding, limit, 0, exclude)
}

// Suggest proposes query completions ("{query} {genre}") taken from the genres of the
// closest games. Queries shorter than MinSuggestLength yield nothing. Suggestions are
// optional: any failure is logged and answered with an empty list.
func (e *Engine) Suggest(ctx context.Context, query string, limit int) ([]string, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinSuggestLength {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}

	hits, err := e.Search(ctx, query, suggestCandidates, SuggestMinSimilarity)
	if err != nil {
		e.logger.Warn("Suggestions unavailable", zap.String("query", query), zap.Error(err))
		metrics.SearchFallbacksTotal.WithLabelValues("suggest_failed").Inc()
		return nil, nil
	}

	seen := make(map[string]bool)
	var out []string
	for i := range hits {
		for _, g := range hits[i].Genres() {
			key := strings.ToLower(g)
			if utf8.RuneCountInString(g) < minSuggestTerm || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, query+" "+g)
			if len(out) == limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// TopRated returns the quality fallback list in provider order.
func (e *Engine) TopRated(ctx context.Context, limit int, exclude map[int64]bool) ([]result.Result, error) {
	items, err := e.games.TopRated(ctx, limit, exclude)
	if err != nil {
		return nil, fmt.Errorf("top rated: %w", err)
	}
	out := make([]result.Result, len(items))
	for i, it := range items {
		out[i] = result.New(it, 0, result.SourceTopRated)
	}
	return out, nil
}

func (e *Engine) searchVector(
	ctx context.Context, vec []float32, limit int, minSimilarity float64, exclude map[int64]bool,
) ([]result.Result, error) {
	hits, err := e.index.Search(ctx, vec, limit, exclude)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	kept := make([]similarity.Hit, 0, len(hits))
	for _, h := range hits {
		if h.Similarity >= minSimilarity {
			kept = append(kept, h)
		}
	}
	if len(kept) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(kept))
	for i, h := range kept {
		ids[i] = h.ID
	}
	items, err := e.games.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate hits: %w", err)
	}
	byID := make(map[int64]*game.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	out := make([]result.Result, 0, len(kept))
	for _, h := range kept {
		it, ok := byID[h.ID]
		if !ok {
			// deleted between the index read and hydration
			continue
		}
		out = append(out, result.New(it, h.Similarity, result.SourceSemantic))
	}
	result.Sort(out)
	return out, nil
}
