// Package adaptive re-ranks semantic hits by human-readable intent tags.
package adaptive

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gamesub/gamesub/internal/domain/game"
	"github.com/gamesub/gamesub/internal/domain/intent"
	"github.com/gamesub/gamesub/internal/domain/search/result"
)

// Tuning controls candidate retrieval and multiplier bounds.
type Tuning struct {
	// CandidateFloor is the similarity floor used when fetching candidates.
	CandidateFloor float64
	// Oversample multiplies limit to get the candidate count, capped at OversampleCap.
	Oversample    int
	OversampleCap int
	MinMultiplier float64
	MaxMultiplier float64
}

// DefaultTuning returns the production tuning.
func DefaultTuning() Tuning {
	return Tuning{
		CandidateFloor: 0.2,
		Oversample:     3,
		OversampleCap:  60,
		MinMultiplier:  MinMultiplier,
		MaxMultiplier:  MaxMultiplier,
	}
}

// Engine is the adaptive filter engine.
type Engine struct {
	semantic semanticSearcher
	games    gameRepo
	opts     Tuning
	logger   *zap.Logger
}

// New creates an Engine. Out-of-range tuning fields take their defaults.
func New(semantic semanticSearcher, games gameRepo, opts Tuning, logger *zap.Logger) *Engine {
	def := DefaultTuning()
	if opts.CandidateFloor < 0 || opts.CandidateFloor > 1 {
		opts.CandidateFloor = def.CandidateFloor
	}
	if opts.Oversample <= 0 {
		opts.Oversample = def.Oversample
	}
	if opts.OversampleCap <= 0 {
		opts.OversampleCap = def.OversampleCap
	}
	if opts.MinMultiplier <= 0 || opts.MaxMultiplier < opts.MinMultiplier {
		opts.MinMultiplier, opts.MaxMultiplier = def.MinMultiplier, def.MaxMultiplier
	}
	return &Engine{semantic: semantic, games: games, opts: opts, logger: logger}
}

// Search enriches query with the boost keywords of tags, fetches oversampled candidates and
// rescores them. Results below minSimilarity after rescoring are dropped.
func (e *Engine) Search(
	ctx context.Context, query string, tags []intent.Tag, limit int, minSimilarity float64,
) ([]result.Result, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}

	mappings := intent.Resolve(tags)
	enriched := Enrich(query, mappings)

	candidates, err := e.semantic.Search(ctx, enriched, e.candidateCount(limit), e.opts.CandidateFloor)
	if err != nil {
		return nil, fmt.Errorf("adaptive candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	items, err := e.load(ctx, candidates)
	if err != nil {
		return nil, err
	}

	out := make([]result.Result, 0, len(candidates))
	for _, c := range candidates {
		it, ok := items[c.ID()]
		if !ok {
			e.logger.Warn("Candidate vanished before rescoring", zap.Int64("game_id", c.ID()))
			continue
		}
		m := max(e.opts.MinMultiplier, min(e.opts.MaxMultiplier, rawMultiplier(it, mappings)))
		r := c.WithMultiplier(m)
		if r.Score() < minSimilarity {
			continue
		}
		out = append(out, r)
	}

	result.Sort(out)
	if len(out) > limit {
		out = out[:limit]
	}

	e.logger.Debug("Adaptive search",
		zap.String("enriched_query", enriched),
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(out)),
	)
	return out, nil
}

// Options returns the intent catalogue grouped by category.
func (e *Engine) Options() []intent.Group {
	return intent.Catalogue()
}

func (e *Engine) candidateCount(limit int) int {
	return max(limit, min(limit*e.opts.Oversample, e.opts.OversampleCap))
}

func (e *Engine) load(ctx context.Context, rs []result.Result) (map[int64]*game.Item, error) {
	ids := make([]int64, len(rs))
	for i := range rs {
		ids[i] = rs[i].ID()
	}
	items, err := e.games.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	out := make(map[int64]*game.Item, len(items))
	for _, it := range items {
		out[it.ID] = it
	}
	return out, nil
}
