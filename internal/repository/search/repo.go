package search

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gamesub/gamesub/internal/db"
	"github.com/gamesub/gamesub/internal/domain"
	gamerepo "github.com/gamesub/gamesub/internal/repository/game"
)

// IndexName is the FT index over stored games.
const IndexName = domain.KeyPrefix + "games:idx"

const vectorField = "embedding"

// store is the consumer interface for search operations (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Hit is one nearest neighbour.
type Hit struct {
	ID         int64
	Similarity float64
}

// Repo runs native vector search over the games index.
type Repo struct {
	store     store
	available atomic.Bool

	// set by EnsureIndex, read by SearchKNN
	metric    atomic.Value // db.DistanceMetric
	efRuntime atomic.Int64
}

// New creates a search repository. Native search stays off until EnsureIndex succeeds.
func New(s store) *Repo {
	return &Repo{store: s}
}

// EnsureIndex creates the games index if missing and marks native search available.
// Backends without the search module leave it unavailable.
func (r *Repo) EnsureIndex(ctx context.Context, cfg domain.VectorConfig) error {
	exists, err := r.store.IndexExists(ctx, IndexName)
	if err != nil {
		r.available.Store(false)
		return fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	metric := distance(cfg.DistanceMetric)
	r.metric.Store(metric)
	alg := algorithm(cfg.Algorithm)
	r.efRuntime.Store(0)
	if alg == db.VectorHNSW {
		r.efRuntime.Store(int64(cfg.HNSWEFRuntime))
	}

	if !exists {
		def, err := db.NewIndex(IndexName).
			Prefix(gamerepo.KeyPrefix).
			SortableNumeric("rating").
			Vector(vectorField, db.VectorSpec{
				Algorithm:   alg,
				Dim:         cfg.Dimensions,
				Distance:    metric,
				M:           cfg.HNSWM,
				EFConstruct: cfg.HNSWEFConstruction,
			}).
			Build()
		if err != nil {
			return fmt.Errorf("build index definition: %w", err)
		}
		if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
			r.available.Store(false)
			return fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
		}
	}
	r.available.Store(true)
	return nil
}

// Rebuild drops the games index (stored hashes are kept) and creates it again,
// e.g. after the model dimensions changed.
func (r *Repo) Rebuild(ctx context.Context, cfg domain.VectorConfig) error {
	r.available.Store(false)
	if err := r.store.DropIndex(ctx, IndexName); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index: %w", err)
	}
	return r.EnsureIndex(ctx, cfg)
}

// Available reports whether native search can be used.
func (r *Repo) Available() bool {
	return r.available.Load()
}

// SearchKNN returns up to k nearest games to vec, most similar first.
func (r *Repo) SearchKNN(ctx context.Context, vec []float32, k int) ([]Hit, error) {
	if !r.Available() {
		return nil, domain.ErrIndexUnavailable
	}
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    IndexName,
		VectorField:  vectorField,
		Vector:       vec,
		K:            k,
		Distance:     r.distance(),
		EFRuntime:    int(r.efRuntime.Load()),
		ReturnFields: []string{"id"},
	})
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	if sr == nil {
		return nil, nil
	}

	hits := make([]Hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		id, ok := gamerepo.IDFromKey(e.Key)
		if !ok {
			continue
		}
		hits = append(hits, Hit{ID: id, Similarity: e.Score})
	}
	return hits, nil
}

func (r *Repo) distance() db.DistanceMetric {
	m, _ := r.metric.Load().(db.DistanceMetric)
	return m
}

func algorithm(s string) db.VectorAlgorithm {
	if s == "flat" {
		return db.VectorFlat
	}
	return db.VectorHNSW
}

func distance(s string) db.DistanceMetric {
	switch s {
	case "l2":
		return db.DistanceL2
	case "ip":
		return db.DistanceIP
	default:
		return db.DistanceCosine
	}
}
