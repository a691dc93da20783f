// Package intent holds the closed vocabulary of human-readable search intents
// ("relaxing", "coop", ...) and the keyword/category hints each one maps to.
package intent

import (
	"cmp"
	"slices"
)

// Tag is an intent identifier as sent by clients.
type Tag string

// Category groups related tags for presentation.
type Category string

// Intent categories.
const (
	Ambiance   Category = "ambiance"
	Engagement Category = "engagement"
	Session    Category = "session"
	Social     Category = "social"
	Difficulty Category = "difficulty"
)

// Range is an inclusive preferred interval for typical playtime, in hours.
type Range struct {
	Min int
	Max int
}

// Contains reports whether v falls inside the range.
func (r Range) Contains(v int) bool { return v >= r.Min && v <= r.Max }

// Mapping describes how one intent tag biases retrieval and scoring.
type Mapping struct {
	Tag             Tag
	Category        Category
	Label           string
	Description     string
	BoostKeywords   []string
	PreferredGenres []string
	PreferredTags   []string
	ExcludeKeywords []string
	Playtime        *Range
	Multiplier      float64
}

// Version identifies the mapping table revision.
const Version = 1

var mappings = []Mapping{
	{
		Tag: "relaxing", Category: Ambiance,
		Label: "Relaxing", Description: "Unwind and decompress",
		BoostKeywords:   []string{"zen", "peaceful", "calm", "meditative", "cozy", "chill", "atmospheric", "beautiful"},
		PreferredGenres: []string{"simulation", "puzzle", "casual", "adventure"},
		PreferredTags:   []string{"relaxing", "atmospheric", "beautiful", "exploration", "nature"},
		ExcludeKeywords: []string{"horror", "violent", "stressful", "competitive", "fast-paced"},
		Playtime:        &Range{Min: 0, Max: 100},
		Multiplier:      1.4,
	},
	{
		Tag: "intense", Category: Ambiance,
		Label: "Intense", Description: "Action and adrenaline",
		BoostKeywords:   []string{"action", "fast-paced", "adrenaline", "combat", "intense", "thrilling"},
		PreferredGenres: []string{"action", "shooter", "fighting", "racing"},
		PreferredTags:   []string{"fast-paced", "action", "combat", "competitive"},
		ExcludeKeywords: []string{"slow", "turn-based", "relaxing", "peaceful"},
		Multiplier:      1.3,
	},
	{
		Tag: "mysterious", Category: Ambiance,
		Label: "Mysterious", Description: "Puzzles and investigations",
		BoostKeywords:   []string{"mystery", "investigation", "detective", "puzzle", "enigma", "secret"},
		PreferredGenres: []string{"adventure", "puzzle", "mystery"},
		PreferredTags:   []string{"mystery", "investigation", "atmospheric", "story"},
		Multiplier:      1.3,
	},
	{
		Tag: "epic", Category: Ambiance,
		Label: "Epic", Description: "Grand heroic adventures",
		BoostKeywords:   []string{"epic", "grand", "massive", "legendary", "hero", "adventure", "fantasy"},
		PreferredGenres: []string{"rpg", "action-adventure", "strategy"},
		PreferredTags:   []string{"epic", "fantasy", "adventure", "story-rich"},
		Playtime:        &Range{Min: 20, Max: 500},
		Multiplier:      1.4,
	},
	{
		Tag: "funny", Category: Ambiance,
		Label: "Funny", Description: "Humor and good mood",
		BoostKeywords:   []string{"funny", "humor", "comedy", "silly", "parody", "cartoon"},
		PreferredGenres: []string{"comedy", "casual", "party"},
		PreferredTags:   []string{"funny", "comedy", "humor", "family-friendly"},
		Multiplier:      1.3,
	},
	{
		Tag: "casual", Category: Engagement,
		Label: "Casual", Description: "Easy to pick up",
		BoostKeywords:   []string{"easy", "accessible", "family-friendly", "simple", "casual"},
		PreferredGenres: []string{"casual", "puzzle", "simulation"},
		PreferredTags:   []string{"casual", "easy", "family-friendly"},
		ExcludeKeywords: []string{"complex", "hardcore", "punishing", "difficult"},
		Playtime:        &Range{Min: 0, Max: 50},
		Multiplier:      1.3,
	},
	{
		Tag: "story", Category: Engagement,
		Label: "Story-driven", Description: "Narrative first",
		BoostKeywords:   []string{"narrative", "story", "character", "dialogue", "plot", "cinematic"},
		PreferredGenres: []string{"rpg", "adventure", "visual-novel"},
		PreferredTags:   []string{"story-rich", "narrative", "character-driven"},
		Playtime:        &Range{Min: 8, Max: 200},
		Multiplier:      1.5,
	},
	{
		Tag: "hardcore", Category: Engagement,
		Label: "Hardcore", Description: "For experienced players",
		BoostKeywords:   []string{"challenging", "difficult", "complex", "hardcore", "skill-based"},
		PreferredGenres: []string{"strategy", "simulation", "rpg"},
		PreferredTags:   []string{"difficult", "complex", "challenging"},
		ExcludeKeywords: []string{"easy", "casual", "simple"},
		Multiplier:      1.4,
	},
	{
		Tag: "short_session", Category: Session,
		Label: "Short session", Description: "15-60 minutes",
		BoostKeywords:   []string{"quick", "short", "bite-sized", "mobile"},
		PreferredGenres: []string{"arcade", "puzzle", "casual"},
		ExcludeKeywords: []string{"long", "epic", "extensive"},
		Playtime:        &Range{Min: 0, Max: 20},
		Multiplier:      1.3,
	},
	{
		Tag: "medium_session", Category: Session,
		Label: "Medium session", Description: "1-3 hours",
		BoostKeywords: []string{"medium", "moderate"},
		Playtime:      &Range{Min: 10, Max: 80},
		Multiplier:    1.2,
	},
	{
		Tag: "long_session", Category: Session,
		Label: "Long adventure", Description: "10+ hours",
		BoostKeywords:   []string{"epic", "extensive", "long", "massive", "endless"},
		PreferredGenres: []string{"rpg", "strategy", "simulation"},
		Playtime:        &Range{Min: 30, Max: 500},
		Multiplier:      1.4,
	},
	{
		Tag: "solo", Category: Social,
		Label: "Solo", Description: "Immersive single-player",
		BoostKeywords:   []string{"single-player", "solo", "offline"},
		PreferredTags:   []string{"single-player", "solo"},
		ExcludeKeywords: []string{"multiplayer", "online", "coop"},
		Multiplier:      1.3,
	},
	{
		Tag: "coop", Category: Social,
		Label: "Co-op", Description: "Play with friends",
		BoostKeywords:   []string{"cooperative", "coop", "team", "friends"},
		PreferredTags:   []string{"co-op", "cooperative", "multiplayer"},
		ExcludeKeywords: []string{"single-player", "solo"},
		Multiplier:      1.4,
	},
	{
		Tag: "competitive", Category: Social,
		Label: "Competitive", Description: "PvP and rankings",
		BoostKeywords:   []string{"competitive", "pvp", "versus", "ranked", "esports"},
		PreferredGenres: []string{"fighting", "shooter", "moba", "racing"},
		PreferredTags:   []string{"competitive", "pvp", "multiplayer"},
		Multiplier:      1.3,
	},
	{
		Tag: "accessible", Category: Difficulty,
		Label: "Accessible", Description: "Any skill level",
		BoostKeywords:   []string{"easy", "beginner", "accessible", "user-friendly"},
		PreferredTags:   []string{"easy", "beginner-friendly"},
		ExcludeKeywords: []string{"difficult", "punishing", "hardcore"},
		Multiplier:      1.3,
	},
	{
		Tag: "challenging", Category: Difficulty,
		Label: "Challenging", Description: "Demands mastery",
		BoostKeywords:   []string{"challenging", "difficult", "demanding"},
		PreferredTags:   []string{"difficult", "challenging"},
		ExcludeKeywords: []string{"easy", "casual"},
		Multiplier:      1.3,
	},
	{
		Tag: "punishing", Category: Difficulty,
		Label: "Punishing", Description: "Extremely difficult",
		BoostKeywords:   []string{"punishing", "brutal", "unforgiving", "souls-like"},
		PreferredTags:   []string{"difficult", "punishing", "souls-like"},
		ExcludeKeywords: []string{"easy", "forgiving"},
		Multiplier:      1.4,
	},
}

var byTag = func() map[Tag]*Mapping {
	m := make(map[Tag]*Mapping, len(mappings))
	for i := range mappings {
		m[mappings[i].Tag] = &mappings[i]
	}
	return m
}()

var categoryOrder = []Category{Ambiance, Engagement, Session, Social, Difficulty}

// Lookup returns a copy of the mapping for tag.
func Lookup(tag Tag) (Mapping, bool) {
	m, ok := byTag[tag]
	if !ok {
		return Mapping{}, false
	}
	return *m, true
}

// Resolve returns the mappings of the recognized tags sorted by tag, dropping unknown
// ones and repeats. The order is canonical so that any permutation of the same tags
// enriches a query identically.
func Resolve(tags []Tag) []Mapping {
	out := make([]Mapping, 0, len(tags))
	seen := make(map[Tag]bool, len(tags))
	for _, t := range tags {
		if seen[t] {
			continue
		}
		seen[t] = true
		if m, ok := Lookup(t); ok {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b Mapping) int { return cmp.Compare(a.Tag, b.Tag) })
	return out
}

// Group is one category of the public catalogue.
type Group struct {
	Category Category
	Options  []Mapping
}

// Catalogue lists every tag grouped by category in presentation order.
func Catalogue() []Group {
	groups := make([]Group, 0, len(categoryOrder))
	for _, c := range categoryOrder {
		g := Group{Category: c}
		for i := range mappings {
			if mappings[i].Category == c {
				g.Options = append(g.Options, mappings[i])
			}
		}
		groups = append(groups, g)
	}
	return groups
}
