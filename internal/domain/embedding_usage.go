package domain

import "context"

type embeddingUsageKey struct{}

// EmbeddingUsage accumulates model usage over one search request.
// The HTTP layer seeds the context, the engines record after each model call,
// and the handler reports the totals in response headers.
type EmbeddingUsage struct {
	TotalTokens int
	Calls       int
}

// NewContextWithUsage returns a context carrying a fresh usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext returns the collector from ctx, or nil.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// Record adds one model call. Cached embeddings count as a call with 0 tokens.
func (u *EmbeddingUsage) Record(tokens int) {
	if u == nil {
		return
	}
	u.TotalTokens += tokens
	u.Calls++
}

// Used reports whether the model was consulted at all.
func (u *EmbeddingUsage) Used() bool { return u != nil && u.Calls > 0 }
