// Package game holds the catalog record that search and recommendations run over.
package game

import (
	"fmt"
	"time"
)

// Ref is one entry of a categorical collection (genre, platform, tag, store).
type Ref struct {
	ID   int64
	Name string
}

// Item is a catalog game. Fields other than the embedding pair are owned by the catalog import.
type Item struct {
	ID          int64
	Slug        string
	Name        string
	Description string
	Genres      []Ref
	Platforms   []Ref
	Tags        []Ref
	Stores      []Ref
	ESRB        string
	Rating      *float64
	Metacritic  *int
	Playtime    *int // typical completion time, hours
	Released    *time.Time
	Website     string
	Image       string

	Embedding []float32
	// Fingerprint identifies the rendering the embedding was computed from.
	Fingerprint string
}

// Validate checks the minimal invariants of an imported record.
func (it *Item) Validate() error {
	if it.ID <= 0 {
		return fmt.Errorf("game id must be positive, got %d", it.ID)
	}
	if it.Name == "" {
		return fmt.Errorf("game %d: name is required", it.ID)
	}
	return nil
}

// HasEmbedding reports whether a vector is stored for the game.
func (it *Item) HasEmbedding() bool { return len(it.Embedding) > 0 }

// EmbeddingStale reports whether the stored vector is missing or was derived
// from a rendering other than current.
func (it *Item) EmbeddingStale(current string) bool {
	return !it.HasEmbedding() || it.Fingerprint != current
}

// RatingOr returns the rating or def when absent.
func (it *Item) RatingOr(def float64) float64 {
	if it.Rating == nil {
		return def
	}
	return *it.Rating
}

// Names extracts the display names of refs; a nameless entry maps to placeholder.
func Names(refs []Ref, placeholder string) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		if r.Name == "" {
			out[i] = placeholder
			continue
		}
		out[i] = r.Name
	}
	return out
}
