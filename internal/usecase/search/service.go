package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gamesub/gamesub/internal/domain/search/mode"
	"github.com/gamesub/gamesub/internal/domain/search/request"
	"github.com/gamesub/gamesub/internal/domain/search/result"
	logpkg "github.com/gamesub/gamesub/internal/logger"
	"github.com/gamesub/gamesub/internal/metrics"
	"github.com/gamesub/gamesub/internal/repository/history"
)

// ServedByTopRated marks an answer that came from the quality fallback.
const ServedByTopRated = "top_rated"

// Outcome labels for search metrics.
const (
	outcomeOK       = "ok"
	outcomeCached   = "cached"
	outcomeDegraded = "degraded"
	outcomeError    = "error"
)

// SideEffects reports what happened around the core search. Errors here never
// fail the search and are not logged by the service; the caller decides.
type SideEffects struct {
	CacheHit bool
	// Degraded is set when the requested mode failed and a cheaper strategy answered.
	Degraded bool
	// ServedBy names the strategy that produced the results.
	ServedBy   string
	CacheErr   error
	HistoryErr error
}

// Service dispatches searches by mode and owns caching, degradation and history.
type Service struct {
	semantic SemanticEngine
	hybrid   HybridEngine
	adaptive AdaptiveEngine
	catalog  Catalog
	cache    ResultCache
	history  HistoryRecorder
	now      func() time.Time
	logger   *zap.Logger
}

// New creates a search service.
func New(semantic SemanticEngine, hybrid HybridEngine, adaptive AdaptiveEngine, catalog Catalog, logger *zap.Logger) *Service {
	return &Service{
		semantic: semantic,
		hybrid:   hybrid,
		adaptive: adaptive,
		catalog:  catalog,
		now:      time.Now,
		logger:   logger,
	}
}

// WithCache enables the result cache.
func (s *Service) WithCache(c ResultCache) *Service {
	s.cache = c
	return s
}

// WithHistory enables search history.
func (s *Service) WithHistory(h HistoryRecorder) *Service {
	s.history = h
	return s
}

// Search answers req. A blank query returns no results and has no side effects.
// When the requested strategy fails, lexical search answers, then the top-rated list;
// only when every strategy fails is an error returned.
func (s *Service) Search(ctx context.Context, req *request.Request) ([]result.Result, SideEffects, error) {
	var fx SideEffects
	if req.IsBlank() {
		return nil, fx, nil
	}

	start := time.Now()
	m := string(req.Mode())
	defer func() {
		metrics.SearchDuration.WithLabelValues(m).Observe(time.Since(start).Seconds())
	}()

	key := req.Key()
	if s.cache != nil {
		rs, ok, err := s.cache.Get(key)
		switch {
		case err != nil:
			fx.CacheErr = err
		case ok:
			fx.CacheHit = true
			fx.ServedBy = m
			metrics.SearchRequestsTotal.WithLabelValues(m, outcomeCached).Inc()
			return rs, fx, nil
		}
	}

	rs, err := s.dispatch(ctx, req)
	fx.ServedBy = m
	if err != nil {
		s.log(ctx).Warn("Search failed, degrading",
			zap.String("mode", m),
			zap.String("query", req.Query()),
			zap.Error(err),
		)
		rs, fx.ServedBy, err = s.degrade(ctx, req, err)
		if err != nil {
			metrics.SearchRequestsTotal.WithLabelValues(m, outcomeError).Inc()
			return nil, fx, err
		}
		fx.Degraded = true
		metrics.SearchRequestsTotal.WithLabelValues(m, outcomeDegraded).Inc()
	} else {
		metrics.SearchRequestsTotal.WithLabelValues(m, outcomeOK).Inc()
		if s.cache != nil {
			if err := s.cache.Put(key, rs); err != nil {
				fx.CacheErr = err
			}
		}
	}

	fx.HistoryErr = s.record(ctx, req, len(rs))
	return rs, fx, nil
}

func (s *Service) dispatch(ctx context.Context, req *request.Request) ([]result.Result, error) {
	switch req.Mode() {
	case mode.Semantic:
		return s.semantic.Search(ctx, req.Query(), req.Limit(), req.MinSimilarity()) //nolint:wrapcheck // engine errors carry context
	case mode.Hybrid:
		return s.hybrid.Search(ctx, req.Query(), req.Limit()) //nolint:wrapcheck // engine errors carry context
	case mode.Adaptive:
		return s.adaptive.Search(ctx, req.Query(), req.Tags(), req.Limit(), req.MinSimilarity()) //nolint:wrapcheck // engine errors carry context
	case mode.Lexical:
		return s.lexical(ctx, req.Query(), req.Limit())
	default:
		return nil, fmt.Errorf("unsupported search mode: %s", req.Mode())
	}
}

// degrade answers after the requested strategy failed with cause: model-backed modes
// retry as lexical, and anything still empty or failing gets the top-rated list.
func (s *Service) degrade(ctx context.Context, req *request.Request, cause error) ([]result.Result, string, error) {
	if req.Mode().NeedsModel() {
		lex := req.WithMode(mode.Lexical)
		rs, err := s.dispatch(ctx, &lex)
		if err == nil && len(rs) > 0 {
			metrics.SearchFallbacksTotal.WithLabelValues("lexical").Inc()
			return rs, string(mode.Lexical), nil
		}
		if err != nil {
			s.log(ctx).Warn("Lexical fallback failed", zap.Error(err))
		}
	}

	items, err := s.catalog.TopRated(ctx, req.Limit(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("search %s: %w (top rated fallback: %w)", req.Mode(), cause, err)
	}
	metrics.SearchFallbacksTotal.WithLabelValues(ServedByTopRated).Inc()
	rs := make([]result.Result, len(items))
	for i, it := range items {
		rs[i] = result.New(it, 0, result.SourceTopRated)
	}
	return rs, ServedByTopRated, nil
}

func (s *Service) lexical(ctx context.Context, query string, limit int) ([]result.Result, error) {
	items, err := s.catalog.FindByText(ctx, query, limit, nil)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	rs := make([]result.Result, len(items))
	for i, it := range items {
		rs[i] = result.New(it, result.LexicalScore, result.SourceLexical)
	}
	return rs, nil
}

func (s *Service) record(ctx context.Context, req *request.Request, n int) error {
	if s.history == nil {
		return nil
	}
	tags := make([]string, len(req.Tags()))
	for i, t := range req.Tags() {
		tags[i] = string(t)
	}
	return s.history.Record(ctx, history.Entry{ //nolint:wrapcheck // reported as a side effect
		Query:   req.Query(),
		Mode:    string(req.Mode()),
		Tags:    tags,
		Results: n,
		At:      s.now().UTC(),
	})
}

// log prefers the request-scoped logger (it carries request_id).
func (s *Service) log(ctx context.Context) *zap.Logger {
	return logpkg.FromContextOr(ctx, s.logger)
}
