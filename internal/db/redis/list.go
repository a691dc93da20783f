package redis

import (
	"context"
	"errors"

	"github.com/redis/rueidis"

	"github.com/gamesub/gamesub/internal/db"
)

// PushCapped runs LPUSH + LTRIM in one round-trip, keeping the newest maxLen entries.
func (s *Store) PushCapped(ctx context.Context, key string, value []byte, maxLen int) error {
	if maxLen <= 0 {
		return errors.New("maxLen must be positive")
	}
	results := s.client.DoMulti(ctx,
		s.b().Lpush().Key(key).Element(rueidis.BinaryString(value)).Build(),
		s.b().Ltrim().Key(key).Start(0).Stop(int64(maxLen-1)).Build(),
	)
	for _, res := range results {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpLPush, Err: err}
		}
	}
	return nil
}

// LRange returns list entries between start and stop (inclusive, negative from the tail).
func (s *Store) LRange(ctx context.Context, key string, start, stop int) ([]string, error) {
	cmd := s.b().Lrange().Key(key).Start(int64(start)).Stop(int64(stop)).Build()
	vals, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpLRange, Err: err}
	}
	return vals, nil
}
