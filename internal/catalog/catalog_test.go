package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/gamesub/gamesub/internal/domain/game"
)

const page = `{
  "count": 2,
  "results": [
    {
      "id": 3498,
      "slug": "grand-theft-auto-v",
      "name": " Grand Theft Auto V ",
      "description_raw": "Rockstar's open world.",
      "released": "2013-09-17",
      "rating": 4.47,
      "metacritic": 92,
      "playtime": 74,
      "background_image": "https://media.rawg.io/gta.jpg",
      "esrb_rating": {"id": 4, "name": "Mature"},
      "genres": [{"id": 4, "name": "Action"}, {"id": 3, "name": "Adventure"}],
      "platforms": [{"platform": {"id": 4, "name": "PC"}}, {"platform": {"id": 0, "name": ""}}],
      "stores": [{"store": {"id": 1, "name": "Steam"}}],
      "tags": [{"id": 31, "name": "Singleplayer"}, {"id": 7, "name": "Multiplayer"}]
    },
    {"id": 0, "name": "no id"}
  ]
}`

func TestDecode_Page(t *testing.T) {
	items, skipped, err := Decode(strings.NewReader(page))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(items) != 1 || len(skipped) != 1 || skipped[0].Index != 1 {
		t.Fatalf("items=%d skipped=%+v", len(items), skipped)
	}

	it := items[0]
	if it.Name != "Grand Theft Auto V" || it.ESRB != "Mature" || *it.Playtime != 74 {
		t.Errorf("unexpected item: %+v", it)
	}
	if it.Released == nil || it.Released.Year() != 2013 {
		t.Errorf("Released = %v", it.Released)
	}
	if len(it.Platforms) != 1 || it.Platforms[0].Name != "PC" {
		t.Errorf("Platforms = %+v, nameless entries must be dropped", it.Platforms)
	}
	if len(it.Stores) != 1 || len(it.Genres) != 2 || len(it.Tags) != 2 {
		t.Errorf("refs: stores=%d genres=%d tags=%d", len(it.Stores), len(it.Genres), len(it.Tags))
	}
}

func TestDecode_ArrayAndTagCap(t *testing.T) {
	var tags []string
	for i := range 15 {
		tags = append(tags, fmt.Sprintf(`{"id": %d, "name": "t%d"}`, i+1, i))
	}
	doc := `[{"id": 1, "name": "Celeste", "released": "TBA", "tags": [` + strings.Join(tags, ",") + `]}]`

	items, skipped, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(items) != 1 || len(skipped) != 0 {
		t.Fatalf("items=%d skipped=%d", len(items), len(skipped))
	}
	if len(items[0].Tags) != MaxTags {
		t.Errorf("tags = %d, want %d", len(items[0].Tags), MaxTags)
	}
	if items[0].Released != nil {
		t.Error("unparseable release date must be dropped")
	}
}

func TestDecode_Malformed(t *testing.T) {
	if _, _, err := Decode(strings.NewReader(`[{"id": `)); err == nil {
		t.Fatal("expected error")
	}
}

type mockSaver struct {
	saved  []int64
	failOn int64
}

func (m *mockSaver) Save(_ context.Context, it *game.Item) error {
	if it.ID == m.failOn {
		return errors.New("hset failed")
	}
	m.saved = append(m.saved, it.ID)
	return nil
}

func TestImport(t *testing.T) {
	items := []*game.Item{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}, {ID: 3, Name: "c"}}

	s := &mockSaver{}
	n, err := Import(context.Background(), s, items, zap.NewNop())
	if err != nil || n != 3 || len(s.saved) != 3 {
		t.Fatalf("Import = %d, %v (saved %v)", n, err, s.saved)
	}

	s = &mockSaver{failOn: 2}
	n, err = Import(context.Background(), s, items, zap.NewNop())
	if err == nil || n != 1 {
		t.Errorf("Import = %d, %v; want 1 and an error", n, err)
	}
}

func TestImport_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := Import(ctx, &mockSaver{}, []*game.Item{{ID: 1, Name: "a"}}, zap.NewNop())
	if !errors.Is(err, context.Canceled) || n != 0 {
		t.Errorf("Import = %d, %v", n, err)
	}
}
