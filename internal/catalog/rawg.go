// Package catalog reads game records exported from the RAWG API.
package catalog

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/gamesub/gamesub/internal/domain/game"
)

// MaxTags is how many tags are kept per game; RAWG lists dozens, most of them noise.
const MaxTags = 10

const releasedLayout = "2006-01-02"

type rawgRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type rawgGame struct {
	ID          int64     `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description_raw"`
	Released    string    `json:"released"`
	Rating      *float64  `json:"rating"`
	Metacritic  *int      `json:"metacritic"`
	Playtime    *int      `json:"playtime"`
	Website     string    `json:"website"`
	Image       string    `json:"background_image"`
	Genres      []rawgRef `json:"genres"`
	Tags        []rawgRef `json:"tags"`
	ESRB        *rawgRef  `json:"esrb_rating"`

	Platforms []struct {
		Platform rawgRef `json:"platform"`
	} `json:"platforms"`
	Stores []struct {
		Store rawgRef `json:"store"`
	} `json:"stores"`
}

// Skipped describes a record that could not be imported.
type Skipped struct {
	Index  int
	Reason string
}

// Decode reads either a bare JSON array of games or a RAWG page ({"results": [...]}).
// Records without an id or name are reported in skipped rather than failing the whole file.
func Decode(r io.Reader) (items []*game.Item, skipped []Skipped, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read catalog: %w", err)
	}

	var raw []rawgGame
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var page struct {
			Results []rawgGame `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, nil, fmt.Errorf("decode catalog page: %w", err)
		}
		raw = page.Results
	} else if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode catalog: %w", err)
	}

	items = make([]*game.Item, 0, len(raw))
	for i := range raw {
		it, err := raw[i].toItem()
		if err != nil {
			skipped = append(skipped, Skipped{Index: i, Reason: err.Error()})
			continue
		}
		items = append(items, it)
	}
	return items, skipped, nil
}

func (g *rawgGame) toItem() (*game.Item, error) {
	it := &game.Item{
		ID:          g.ID,
		Slug:        g.Slug,
		Name:        strings.TrimSpace(g.Name),
		Description: g.Description,
		Rating:      g.Rating,
		Metacritic:  g.Metacritic,
		Playtime:    g.Playtime,
		Website:     g.Website,
		Image:       g.Image,
		Genres:      refs(g.Genres),
		Tags:        refs(g.Tags),
	}
	if len(it.Tags) > MaxTags {
		it.Tags = it.Tags[:MaxTags]
	}
	if g.ESRB != nil {
		it.ESRB = g.ESRB.Name
	}
	for _, p := range g.Platforms {
		if p.Platform.Name != "" {
			it.Platforms = append(it.Platforms, game.Ref{ID: p.Platform.ID, Name: p.Platform.Name})
		}
	}
	for _, s := range g.Stores {
		if s.Store.Name != "" {
			it.Stores = append(it.Stores, game.Ref{ID: s.Store.ID, Name: s.Store.Name})
		}
	}
	// Unparseable dates are dropped, not fatal: RAWG sometimes sends "TBA".
	if g.Released != "" {
		if t, err := time.Parse(releasedLayout, g.Released); err == nil {
			it.Released = &t
		}
	}
	if err := it.Validate(); err != nil {
		return nil, err
	}
	return it, nil
}

func refs(in []rawgRef) []game.Ref {
	var out []game.Ref
	for _, r := range in {
		if r.Name != "" {
			out = append(out, game.Ref{ID: r.ID, Name: r.Name})
		}
	}
	return out
}
