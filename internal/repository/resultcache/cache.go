// Package resultcache keeps recent search answers in an in-memory badger store with per-entry TTL.
package resultcache

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/gamesub/gamesub/internal/domain/search/request"
	"github.com/gamesub/gamesub/internal/domain/search/result"
)

const keyPrefix = "search:"

// Cache stores ranked results keyed by request.CacheKey.
type Cache struct {
	db     *badger.DB
	ttl    time.Duration
	logger *zap.Logger
}

// Open starts an in-memory cache. ttl must be positive.
func Open(ttl time.Duration, logger *zap.Logger) (*Cache, error) {
	if ttl <= 0 {
		return nil, errors.New("result cache ttl must be positive")
	}
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = &zapAdapter{logger: logger.Named("badger")}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open result cache: %w", err)
	}
	return &Cache{db: db, ttl: ttl, logger: logger}, nil
}

// Get returns the cached results for key. A miss is (nil, false, nil).
func (c *Cache) Get(key request.CacheKey) ([]result.Result, bool, error) {
	k, err := encodeKey(key)
	if err != nil {
		return nil, false, err
	}

	var dtos []entryDTO
	err = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &dtos)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached results: %w", err)
	}

	out := make([]result.Result, len(dtos))
	for i := range dtos {
		out[i] = dtos[i].toResult()
	}
	return out, true, nil
}

// Put stores rs under key for the configured TTL.
func (c *Cache) Put(key request.CacheKey, rs []result.Result) error {
	return c.Set(key, rs, 0)
}

// Set stores rs under key for ttl; ttl <= 0 means the configured TTL.
func (c *Cache) Set(key request.CacheKey, rs []result.Result, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	k, err := encodeKey(key)
	if err != nil {
		return err
	}
	dtos := make([]entryDTO, len(rs))
	for i := range rs {
		dtos[i] = fromResult(&rs[i])
	}
	data, err := json.Marshal(dtos)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		if err := txn.SetEntry(badger.NewEntry(k, data).WithTTL(ttl)); err != nil {
			return fmt.Errorf("set cached results: %w", err)
		}
		return nil
	})
}

// Purge drops every cached answer.
func (c *Cache) Purge() error {
	if err := c.db.DropAll(); err != nil {
		return fmt.Errorf("purge result cache: %w", err)
	}
	return nil
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.db.Close()
}

func encodeKey(key request.CacheKey) ([]byte, error) {
	b, err := json.Marshal(key)
	if err != nil {
		return nil, fmt.Errorf("encode cache key: %w", err)
	}
	return append([]byte(keyPrefix), b...), nil
}

type entryDTO struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Slug        string        `json:"slug,omitempty"`
	Description string        `json:"description,omitempty"`
	Image       string        `json:"image,omitempty"`
	Genres      []string      `json:"genres,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	Rating      *float64      `json:"rating,omitempty"`
	Released    *time.Time    `json:"released,omitempty"`
	Similarity  float64       `json:"similarity"`
	Multiplier  float64       `json:"multiplier"`
	Final       float64       `json:"final"`
	Source      result.Source `json:"source"`
}

func fromResult(r *result.Result) entryDTO {
	f := r.Flatten()
	return entryDTO(f)
}

func (d *entryDTO) toResult() result.Result {
	return result.Reconstruct(result.Fields(*d))
}

// zapAdapter adapts zap to badger.Logger.
type zapAdapter struct {
	logger *zap.Logger
}

var _ badger.Logger = (*zapAdapter)(nil)

func (a *zapAdapter) Errorf(msg string, args ...any)   { a.logger.Sugar().Errorf(msg, args...) }
func (a *zapAdapter) Warningf(msg string, args ...any) { a.logger.Sugar().Warnf(msg, args...) }
func (a *zapAdapter) Infof(msg string, args ...any)    { a.logger.Sugar().Debugf(msg, args...) }
func (a *zapAdapter) Debugf(msg string, args ...any)   { a.logger.Sugar().Debugf(msg, args...) }
