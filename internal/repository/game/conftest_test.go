package game

import (
	"context"
	"maps"
	"path"
	"testing"

	"github.com/gamesub/gamesub/internal/db"
	domgame "github.com/gamesub/gamesub/internal/domain/game"
)

// mockStore implements the consumer interface for tests. Without an override
// each method operates on the in-memory hashes map.
type mockStore struct {
	hashes map[string]map[string]string
	kv     map[string][]byte

	hsetFn       func(ctx context.Context, key string, fields map[string]string) error
	hsetAtomicFn func(ctx context.Context, items []db.HashSetItem) error
	scanFn       func(ctx context.Context, pattern string) ([]string, error)
	hsetCalls    int
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	m.hsetCalls++
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	if m.hashes[key] == nil {
		m.hashes[key] = map[string]string{}
	}
	maps.Copy(m.hashes[key], fields)
	return nil
}

func (m *mockStore) HSetAtomic(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetAtomicFn != nil {
		return m.hsetAtomicFn(ctx, items)
	}
	for _, it := range items {
		if m.hashes[it.Key] == nil {
			m.hashes[it.Key] = map[string]string{}
		}
		maps.Copy(m.hashes[it.Key], it.Fields)
	}
	return nil
}

func (m *mockStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	return maps.Clone(m.hashes[key]), nil
}

func (m *mockStore) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i] = maps.Clone(m.hashes[k])
	}
	return out, nil
}

func (m *mockStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.hashes[key]
	return ok, nil
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockStore) Set(_ context.Context, key string, value []byte) error {
	m.kv[key] = value
	return nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	var keys []string
	for k := range m.hashes {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{hashes: map[string]map[string]string{}, kv: map[string][]byte{}}
	return New(ms), ms
}

func seed(t *testing.T, r *Repo, items ...*domgame.Item) {
	t.Helper()
	for _, it := range items {
		if err := r.Save(context.Background(), it); err != nil {
			t.Fatalf("seed %d: %v", it.ID, err)
		}
	}
}

func rated(id int64, name string, rating float64) *domgame.Item {
	return &domgame.Item{ID: id, Name: name, Rating: &rating}
}
