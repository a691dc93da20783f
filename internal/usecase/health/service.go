package health

import (
	"context"
	"sync"
	"time"
)

// Status is the overall verdict served by GET /health.
type Status string

const (
	Healthy   Status = "ok"
	Degraded  Status = "degraded" // searches still answered, by fallbacks
	Unhealthy Status = "error"    // store unreachable
)

// CheckResult is the outcome of one component check.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
	// CheckFallback means a slower equivalent is serving, e.g. brute-force similarity.
	CheckFallback CheckResult = "fallback"
)

// Component names used as Report.Checks keys.
const (
	componentDatabase  = "database"
	componentEmbedding = "embedding"
	componentIndex     = "vector_index"
)

// DefaultCheckTimeout bounds each probe. The embedding probe may load the model.
const DefaultCheckTimeout = 5 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service runs the component probes.
type Service struct {
	db        DBPinger
	embedding EmbeddingChecker
	index     IndexReporter
	timeout   time.Duration
}

// New creates a Service. embedding may be nil.
func New(db DBPinger, embedding EmbeddingChecker) *Service {
	return &Service{db: db, embedding: embedding, timeout: DefaultCheckTimeout}
}

// WithIndex adds the vector index state to the report.
func (s *Service) WithIndex(idx IndexReporter) *Service {
	s.index = idx
	return s
}

// WithTimeout overrides DefaultCheckTimeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check probes every component concurrently.
// The store decides between Healthy and Unhealthy; a failing embedding model
// degrades; an index served by brute force is reported but stays Healthy.
func (s *Service) Check(ctx context.Context) Report {
	probes := map[string]func(context.Context) error{
		componentDatabase: s.db.Ping,
	}
	if s.embedding != nil {
		probes[componentEmbedding] = s.embedding.HealthCheck
	}

	checks := make(map[string]CheckResult, len(probes)+1)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, probe := range probes {
		wg.Go(func() {
			res := s.run(ctx, probe)
			mu.Lock()
			checks[name] = res
			mu.Unlock()
		})
	}
	wg.Wait()

	if s.index != nil {
		checks[componentIndex] = CheckFallback
		if s.index.Available() {
			checks[componentIndex] = CheckOK
		}
	}

	return Report{Status: verdict(checks), Checks: checks}
}

func (s *Service) run(ctx context.Context, probe func(context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := probe(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}

func verdict(checks map[string]CheckResult) Status {
	if checks[componentDatabase] != CheckOK {
		return Unhealthy
	}
	for _, c := range checks {
		if c == CheckError {
			return Degraded
		}
	}
	return Healthy
}
