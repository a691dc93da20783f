package request

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gamesub/gamesub/internal/domain/intent"
	"github.com/gamesub/gamesub/internal/domain/search/mode"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength       = 1024
	DefaultLimit         = 20
	MaxLimit             = 100
	DefaultMinSimilarity = 0.3
)

// Request is a validated search query.
type Request struct {
	query         string
	searchMode    mode.Mode
	tags          []intent.Tag
	limit         int
	minSimilarity float64
}

// New validates and normalizes search parameters.
// Defaults: mode=semantic (adaptive when tags are given), limit=20, min_similarity=0.3.
// A blank query is accepted; the engines answer it with an empty list.
func New(query string, m mode.Mode, tags []intent.Tag, limit int, minSimilarity *float64) (Request, error) {
	query = strings.TrimSpace(query)
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	if m == "" {
		m = mode.Semantic
		if len(tags) > 0 {
			m = mode.Adaptive
		}
	}
	if !m.IsValid() {
		return Request{}, fmt.Errorf("invalid search mode: %q", m)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	minSim := DefaultMinSimilarity
	if minSimilarity != nil {
		minSim = *minSimilarity
	}
	if minSim < 0 || minSim > 1 {
		return Request{}, fmt.Errorf("min_similarity must be between 0 and 1")
	}

	return Request{
		query:         query,
		searchMode:    m,
		tags:          slices.Clone(tags),
		limit:         limit,
		minSimilarity: minSim,
	}, nil
}

// Query returns the trimmed query text.
func (r *Request) Query() string { return r.query }

// IsBlank reports whether there is nothing to search for.
func (r *Request) IsBlank() bool { return r.query == "" }

// Mode returns the search strategy.
func (r *Request) Mode() mode.Mode { return r.searchMode }

// Tags returns the intent tags in request order.
func (r *Request) Tags() []intent.Tag { return r.tags }

// Limit returns the maximum results to return.
func (r *Request) Limit() int { return r.limit }

// MinSimilarity returns the score floor.
func (r *Request) MinSimilarity() float64 { return r.minSimilarity }

// WithMode returns a copy of r searching with m, the way a failed search is retried lexically.
func (r Request) WithMode(m mode.Mode) Request {
	r.searchMode = m
	return r
}

// CacheKey identifies a search by its semantic fields. It is comparable and used as-is
// by in-process caches; tags are sorted so permutations share an entry.
type CacheKey struct {
	Mode          mode.Mode
	Query         string
	Tags          string
	Limit         int
	MinSimilarity float64
}

// Key returns the cache key of the request.
func (r *Request) Key() CacheKey {
	tags := make([]string, len(r.tags))
	for i, t := range r.tags {
		tags[i] = string(t)
	}
	slices.Sort(tags)
	tags = slices.Compact(tags)
	return CacheKey{
		Mode:          r.searchMode,
		Query:         strings.ToLower(r.query),
		Tags:          strings.Join(tags, ","),
		Limit:         r.limit,
		MinSimilarity: r.minSimilarity,
	}
}
