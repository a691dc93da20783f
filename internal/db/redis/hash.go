package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/gamesub/gamesub/internal/db"
)

// scanBatch is the COUNT hint for each SCAN page.
const scanBatch = 500

func (s *Store) hsetCmd(key string, fields map[string]string) rueidis.Completed {
	fv := s.b().Hset().Key(key).FieldValue()
	for k, v := range fields {
		fv = fv.FieldValue(k, v)
	}
	return fv.Build()
}

// HSet sets hash fields.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if err := s.do(ctx, s.hsetCmd(key, fields)).Error(); err != nil {
		return &db.Error{Op: db.OpHSet, Err: err}
	}
	return nil
}

// HSetAtomic sends MULTI, one HSET per item and EXEC as a single pipeline.
// rueidis keeps the pipeline on one connection, so EXEC applies all of it or nothing.
func (s *Store) HSetAtomic(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}

	tx := make([]rueidis.Completed, 0, len(items)+2)
	tx = append(tx, s.b().Multi().Build())
	for _, it := range items {
		tx = append(tx, s.hsetCmd(it.Key, it.Fields))
	}
	tx = append(tx, s.b().Exec().Build())

	results := s.client.DoMulti(ctx, tx...)
	exec := results[len(results)-1]
	for _, queued := range results[:len(results)-1] {
		if err := queued.Error(); err != nil {
			return &db.Error{Op: db.OpHSet, Err: err}
		}
	}

	replies, err := exec.ToArray()
	switch {
	case rueidis.IsRedisNil(err):
		return db.ErrTxAborted
	case err != nil:
		return &db.Error{Op: db.OpExec, Err: err}
	}
	for i, reply := range replies {
		if err := reply.Error(); err != nil {
			return &db.Error{Op: db.OpExec, Err: fmt.Errorf("key %s: %w", items[i].Key, err)}
		}
	}
	return nil
}

// HGetAll returns all fields of a hash. A missing key yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.do(ctx, s.b().Hgetall().Key(key).Build()).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return m, nil
}

// HGetAllMulti pipelines HGETALL for keys; the result is index-aligned with keys.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Hgetall().Key(key).Build()
	}

	out := make([]map[string]string, len(keys))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, &db.Error{Op: db.OpHGetAll, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		out[i] = m
	}
	return out, nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.do(ctx, s.b().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Err: err}
	}
	return n > 0, nil
}

// Scan walks the keyspace for keys matching pattern. SCAN may report a key more
// than once while the table rehashes; the result holds each key once, in first-seen order.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		seen   = make(map[string]struct{})
		cursor uint64
	)
	for {
		page, err := s.do(ctx, s.b().Scan().Cursor(cursor).Match(pattern).Count(scanBatch).Build()).AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: err}
		}
		for _, k := range page.Elements {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		if cursor = page.Cursor; cursor == 0 {
			return keys, nil
		}
	}
}
