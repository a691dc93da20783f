package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding model availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// IndexReporter tells whether native vector search is in use.
type IndexReporter interface {
	Available() bool
}
