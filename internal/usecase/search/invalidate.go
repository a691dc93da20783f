package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gamesub/gamesub/internal/metrics"
)

// DefaultRevisionPoll is how often the catalog revision is compared.
const DefaultRevisionPoll = 15 * time.Second

// CatalogRevision reports a marker that changes whenever stored games or their vectors do.
type CatalogRevision interface {
	Revision(ctx context.Context) (string, error)
}

// Purger drops every cached answer.
type Purger interface {
	Purge() error
}

// Invalidator purges the result cache when the catalog moves underneath it,
// e.g. after a backfill run by the CLI in another process.
type Invalidator struct {
	revision CatalogRevision
	cache    Purger
	interval time.Duration
	logger   *zap.Logger

	last string
	seen bool
}

// NewInvalidator creates an Invalidator polling every interval (DefaultRevisionPoll when <= 0).
func NewInvalidator(revision CatalogRevision, cache Purger, interval time.Duration, logger *zap.Logger) *Invalidator {
	if interval <= 0 {
		interval = DefaultRevisionPoll
	}
	return &Invalidator{revision: revision, cache: cache, interval: interval, logger: logger}
}

// Check reads the revision once and purges when it differs from the previous read.
// The first read only records the revision. It reports whether a purge happened.
// Not safe for concurrent use; Run is the only caller in the server.
func (v *Invalidator) Check(ctx context.Context) (bool, error) {
	rev, err := v.revision.Revision(ctx)
	if err != nil {
		return false, fmt.Errorf("read catalog revision: %w", err)
	}
	if !v.seen {
		v.last, v.seen = rev, true
		return false, nil
	}
	if rev == v.last {
		return false, nil
	}
	if err := v.cache.Purge(); err != nil {
		// keep the old revision so the next tick retries
		return false, err //nolint:wrapcheck // wrapped by the cache
	}
	v.last = rev
	metrics.ResultCachePurgesTotal.Inc()
	return true, nil
}

// Run checks every interval until ctx is done.
func (v *Invalidator) Run(ctx context.Context) {
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	if _, err := v.Check(ctx); err != nil {
		v.logger.Warn("Catalog revision check failed", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := v.Check(ctx)
			if err != nil {
				v.logger.Warn("Catalog revision check failed", zap.Error(err))
				continue
			}
			if purged {
				v.logger.Info("Catalog changed, result cache purged")
			}
		}
	}
}
