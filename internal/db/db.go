// Package db declares the storage surface the service needs from a
// Redis-compatible server with the search module: game hashes, cached
// blobs, capped history lists and the FT vector index.
package db

import (
	"context"
	"time"
)

// Store is everything the redis adapter implements. Callers depend on the
// narrow interfaces below, or on their own consumer interfaces.
//
//nolint:interfacebloat // adapter surface; consumers take sub-interfaces
type Store interface {
	Pinger
	HashStore
	KVStore
	ListStore
	IndexManager
	Searcher

	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()
}

// Pinger checks connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem is one hash write inside an HSetAtomic batch.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore holds game records, one hash per game.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	// HSetAtomic applies every item or none of them.
	HSetAtomic(ctx context.Context, items []HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// KVStore holds opaque blobs such as cached embeddings.
// Get returns ErrKeyNotFound for a missing key.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ListStore keeps bounded, newest-first lists.
type ListStore interface {
	// PushCapped prepends value and trims the list to maxLen entries.
	PushCapped(ctx context.Context, key string, value []byte, maxLen int) error
	LRange(ctx context.Context, key string, start, stop int) ([]string, error)
}

// IndexManager creates and drops FT indexes.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher runs KNN queries against an FT index.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}
