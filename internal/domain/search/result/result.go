package result

import (
	"cmp"
	"slices"
	"time"

	"github.com/gamesub/gamesub/internal/domain/game"
)

// Source tells which retrieval path produced a hit.
type Source string

// Result sources.
const (
	SourceSemantic Source = "semantic"
	SourceLexical  Source = "lexical"
	SourceTopRated Source = "top_rated"
)

// LexicalScore is the fixed similarity assigned to substring matches.
const LexicalScore = 0.5

// Result is a single ranked game.
type Result struct {
	id          int64
	name        string
	slug        string
	description string
	image       string
	genres      []string
	tags        []string
	rating      *float64
	released    *time.Time

	similarity float64
	multiplier float64
	final      float64
	source     Source
}

// New creates a result for it scored by similarity. The multiplier starts neutral.
func New(it *game.Item, similarity float64, source Source) Result {
	return Result{
		id:          it.ID,
		name:        it.Name,
		slug:        it.Slug,
		description: it.Description,
		image:       it.Image,
		genres:      game.Names(it.Genres, ""),
		tags:        game.Names(it.Tags, ""),
		rating:      it.Rating,
		released:    it.Released,
		similarity:  similarity,
		multiplier:  1,
		final:       similarity,
		source:      source,
	}
}

// Fields is the flat form of a Result used for hydration from caches.
type Fields struct {
	ID          int64
	Name        string
	Slug        string
	Description string
	Image       string
	Genres      []string
	Tags        []string
	Rating      *float64
	Released    *time.Time
	Similarity  float64
	Multiplier  float64
	Final       float64
	Source      Source
}

// Reconstruct creates a Result without recomputing scores (cache hydration).
func Reconstruct(f Fields) Result {
	return Result{
		id: f.ID, name: f.Name, slug: f.Slug, description: f.Description, image: f.Image,
		genres: f.Genres, tags: f.Tags, rating: f.Rating, released: f.Released,
		similarity: f.Similarity, multiplier: f.Multiplier, final: f.Final, source: f.Source,
	}
}

// Flatten returns the flat form of r.
func (r *Result) Flatten() Fields {
	return Fields{
		ID: r.id, Name: r.name, Slug: r.slug, Description: r.description, Image: r.image,
		Genres: r.genres, Tags: r.tags, Rating: r.rating, Released: r.released,
		Similarity: r.similarity, Multiplier: r.multiplier, Final: r.final, Source: r.source,
	}
}

// WithMultiplier returns a copy rescored as similarity × m.
func (r Result) WithMultiplier(m float64) Result {
	r.multiplier = m
	r.final = r.similarity * m
	return r
}

// ID returns the game identifier.
func (r *Result) ID() int64 { return r.id }

// Name returns the game name.
func (r *Result) Name() string { return r.name }

// Slug returns the game slug.
func (r *Result) Slug() string { return r.slug }

// Description returns the game description.
func (r *Result) Description() string { return r.description }

// Image returns the background image URL.
func (r *Result) Image() string { return r.image }

// Genres returns genre names.
func (r *Result) Genres() []string { return r.genres }

// Tags returns tag names.
func (r *Result) Tags() []string { return r.tags }

// Rating returns the catalog rating, if any.
func (r *Result) Rating() *float64 { return r.rating }

// Released returns the release date, if any.
func (r *Result) Released() *time.Time { return r.released }

// Similarity returns the retrieval score in [0, 1] before any re-scoring.
func (r *Result) Similarity() float64 { return r.similarity }

// Multiplier returns the intent multiplier (1 when not re-scored).
func (r *Result) Multiplier() float64 { return r.multiplier }

// Score returns the final ranking score.
func (r *Result) Score() float64 { return r.final }

// Source returns the retrieval path that produced the hit.
func (r *Result) Source() Source { return r.source }

// Sort orders results by descending score, ties by ascending id.
func Sort(rs []Result) {
	slices.SortStableFunc(rs, func(a, b Result) int {
		if c := cmp.Compare(b.final, a.final); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
}
