package adaptive

import (
	"math"
	"strings"

	"github.com/gamesub/gamesub/internal/domain/game"
	"github.com/gamesub/gamesub/internal/domain/intent"
	"github.com/gamesub/gamesub/internal/projector"
)

// Multiplier bounds.
const (
	MinMultiplier = 0.1
	MaxMultiplier = 3.0
)

// Per-match factors.
const (
	boostStep     = 0.1
	genreStep     = 0.15
	tagStep       = 0.1
	excludeFactor = 0.9
	inRange       = 1.2
	outOfRange    = 0.8
)

// Enrich appends the boost keywords of mappings to query, in mapping order then keyword
// order, each keyword once.
func Enrich(query string, mappings []intent.Mapping) string {
	seen := make(map[string]bool)
	var extra []string
	for _, m := range mappings {
		for _, kw := range m.BoostKeywords {
			if seen[kw] {
				continue
			}
			seen[kw] = true
			extra = append(extra, kw)
		}
	}
	if len(extra) == 0 {
		return query
	}
	return query + " " + strings.Join(extra, " ")
}

// Multiplier returns the clamped intent multiplier of it for tags. Unknown tags are ignored.
func Multiplier(it *game.Item, tags []intent.Tag) float64 {
	return clamp(rawMultiplier(it, intent.Resolve(tags)), MinMultiplier, MaxMultiplier)
}

// rawMultiplier compounds the per-tag factors. A tag whose exclusion keywords hit the game
// contributes at most its exclusion penalty, whatever its other factors.
func rawMultiplier(it *game.Item, mappings []intent.Mapping) float64 {
	if len(mappings) == 0 {
		return 1
	}

	text := strings.ToLower(projector.Render(it))
	genres := lowerSet(game.Names(it.Genres, ""))
	tags := lowerSet(game.Names(it.Tags, ""))

	total := 1.0
	for _, m := range mappings {
		f := 1.0
		f *= 1 + boostStep*float64(countIn(text, m.BoostKeywords))
		f *= 1 + genreStep*float64(countMembers(genres, m.PreferredGenres))
		f *= 1 + tagStep*float64(countMembers(tags, m.PreferredTags))

		if m.Playtime != nil && it.Playtime != nil && *it.Playtime > 0 {
			if m.Playtime.Contains(*it.Playtime) {
				f *= inRange
			} else {
				f *= outOfRange
			}
		}

		f *= m.Multiplier

		if excluded := countIn(text, m.ExcludeKeywords); excluded > 0 {
			penalty := math.Pow(excludeFactor, float64(excluded))
			f = min(f*penalty, penalty)
		}
		total *= f
	}
	return total
}

func countIn(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			n++
		}
	}
	return n
}

func countMembers(set map[string]bool, want []string) int {
	n := 0
	for _, w := range want {
		if set[strings.ToLower(w)] {
			n++
		}
	}
	return n
}

func lowerSet(names []string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		if n != "" {
			out[strings.ToLower(n)] = true
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
