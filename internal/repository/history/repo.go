// Package history keeps a capped log of served searches in a Redis list.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/gamesub/gamesub/internal/domain"
)

const listKey = domain.KeyPrefix + "history"

// store is the consumer interface for the history log (ISP).
type store interface {
	PushCapped(ctx context.Context, key string, value []byte, maxLen int) error
	LRange(ctx context.Context, key string, start, stop int) ([]string, error)
}

// Entry is one served search.
type Entry struct {
	Query   string    `json:"query"`
	Mode    string    `json:"mode"`
	Tags    []string  `json:"tags,omitempty"`
	Results int       `json:"results"`
	At      time.Time `json:"at"`
}

// Repo appends to and reads the history list.
type Repo struct {
	store  store
	maxLen int
}

// New creates a history repository keeping at most maxLen entries.
func New(s store, maxLen int) *Repo {
	return &Repo{store: s, maxLen: maxLen}
}

// Record prepends e, dropping the oldest entries beyond the cap.
func (r *Repo) Record(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	if err := r.store.PushCapped(ctx, listKey, data, r.maxLen); err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first. Unreadable entries are skipped.
func (r *Repo) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := r.store.LRange(ctx, listKey, 0, n-1)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	out := make([]Entry, 0, len(raw))
	for _, s := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
