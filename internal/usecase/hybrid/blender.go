// Package hybrid blends semantic hits with lexical substring matches.
package hybrid

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gamesub/gamesub/internal/domain/search/result"
	"github.com/gamesub/gamesub/internal/metrics"
)

// Defaults.
const (
	DefaultSemanticShare = 0.7
	DefaultSemanticFloor = 0.2
)

// Blender is the hybrid search engine.
type Blender struct {
	semantic semanticSearcher
	lexical  textFinder
	share    float64
	floor    float64
	logger   *zap.Logger
}

// New creates a Blender. share is the fraction of limit reserved for semantic hits;
// floor is the similarity floor applied to them.
func New(semantic semanticSearcher, lexical textFinder, share, floor float64, logger *zap.Logger) *Blender {
	if share <= 0 || share > 1 {
		share = DefaultSemanticShare
	}
	if floor < 0 || floor > 1 {
		floor = DefaultSemanticFloor
	}
	return &Blender{semantic: semantic, lexical: lexical, share: share, floor: floor, logger: logger}
}

// Search returns up to limit games: semantic hits first, then lexical matches not already present.
// When the semantic side fails the result is lexical only.
func (b *Blender) Search(ctx context.Context, query string, limit int) ([]result.Result, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}

	semanticLimit := max(1, int(float64(limit)*b.share))
	sem, err := b.semantic.Search(ctx, query, semanticLimit, b.floor)
	if err != nil {
		b.logger.Warn("Semantic side failed, lexical only", zap.Error(err))
		metrics.SearchFallbacksTotal.WithLabelValues("hybrid_lexical_only").Inc()
		sem = nil
	}

	out := make([]result.Result, 0, limit)
	seen := make(map[int64]bool, limit)
	for _, r := range sem {
		if len(out) == limit {
			break
		}
		if seen[r.ID()] {
			continue
		}
		seen[r.ID()] = true
		out = append(out, r)
	}
	if len(out) >= limit {
		return out, nil
	}

	items, lexErr := b.lexical.FindByText(ctx, query, limit-len(out), seen)
	if lexErr != nil {
		if err != nil {
			return nil, fmt.Errorf("hybrid search: semantic: %w; lexical: %w", err, lexErr)
		}
		b.logger.Warn("Lexical fill failed", zap.Error(lexErr))
		return out, nil
	}
	for _, it := range items {
		if seen[it.ID] || len(out) == limit {
			continue
		}
		seen[it.ID] = true
		out = append(out, result.New(it, result.LexicalScore, result.SourceLexical))
	}
	return out, nil
}
