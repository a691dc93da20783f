package game

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/gamesub/gamesub/internal/domain"
	domgame "github.com/gamesub/gamesub/internal/domain/game"
)

// Hash field names of a stored game.
const (
	fieldID          = "id"
	fieldSlug        = "slug"
	fieldName        = "name"
	fieldDescription = "description"
	fieldGenres      = "genres"
	fieldPlatforms   = "platforms"
	fieldTags        = "tags"
	fieldStores      = "stores"
	fieldESRB        = "esrb"
	fieldRating      = "rating"
	fieldMetacritic  = "metacritic"
	fieldPlaytime    = "playtime"
	fieldReleased    = "released"
	fieldWebsite     = "website"
	fieldImage       = "image"
	fieldEmbedding   = "embedding"
	fieldFingerprint = "embedding_fp"
)

const dateLayout = "2006-01-02"

// refDTO is one categorical entry as imported. The catalog feed is inconsistent:
// entries arrive either as plain names or as {id, name} objects.
type refDTO struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
}

func (r *refDTO) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		r.Name = name
		return nil
	}
	type plain refDTO
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("categorical entry: %w", err)
	}
	*r = refDTO(p)
	return nil
}

func encodeRefs(refs []domgame.Ref) (string, error) {
	dtos := make([]refDTO, len(refs))
	for i, r := range refs {
		dtos[i] = refDTO{ID: r.ID, Name: r.Name}
	}
	b, err := json.Marshal(dtos)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeRefs(s string) ([]domgame.Ref, error) {
	if s == "" {
		return nil, nil
	}
	var dtos []refDTO
	if err := json.Unmarshal([]byte(s), &dtos); err != nil {
		return nil, err
	}
	refs := make([]domgame.Ref, len(dtos))
	for i, d := range dtos {
		refs[i] = domgame.Ref{ID: d.ID, Name: d.Name}
	}
	return refs, nil
}

// buildHashFields flattens a game into HSET fields. Absent optional scalars are omitted.
func buildHashFields(it *domgame.Item) (map[string]string, error) {
	m := map[string]string{
		fieldID:          strconv.FormatInt(it.ID, 10),
		fieldSlug:        it.Slug,
		fieldName:        it.Name,
		fieldDescription: it.Description,
		fieldESRB:        it.ESRB,
		fieldWebsite:     it.Website,
		fieldImage:       it.Image,
	}

	for field, refs := range map[string][]domgame.Ref{
		fieldGenres:    it.Genres,
		fieldPlatforms: it.Platforms,
		fieldTags:      it.Tags,
		fieldStores:    it.Stores,
	} {
		s, err := encodeRefs(refs)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", field, err)
		}
		m[field] = s
	}

	if it.Rating != nil {
		m[fieldRating] = strconv.FormatFloat(*it.Rating, 'f', -1, 64)
	}
	if it.Metacritic != nil {
		m[fieldMetacritic] = strconv.Itoa(*it.Metacritic)
	}
	if it.Playtime != nil {
		m[fieldPlaytime] = strconv.Itoa(*it.Playtime)
	}
	if it.Released != nil {
		m[fieldReleased] = it.Released.UTC().Format(dateLayout)
	}
	if it.HasEmbedding() {
		m[fieldEmbedding] = string(domain.EncodeVector(it.Embedding))
		m[fieldFingerprint] = it.Fingerprint
	}
	return m, nil
}

// embeddingFields is the partial update written when only the vector changes.
func embeddingFields(vec []float32, fingerprint string) map[string]string {
	return map[string]string{
		fieldEmbedding:   string(domain.EncodeVector(vec)),
		fieldFingerprint: fingerprint,
	}
}

// parseHashFields converts a stored hash back into a game.
func parseHashFields(m map[string]string) (*domgame.Item, error) {
	id, err := strconv.ParseInt(m[fieldID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse id %q: %w", m[fieldID], err)
	}

	it := &domgame.Item{
		ID:          id,
		Slug:        m[fieldSlug],
		Name:        m[fieldName],
		Description: m[fieldDescription],
		ESRB:        m[fieldESRB],
		Website:     m[fieldWebsite],
		Image:       m[fieldImage],
		Fingerprint: m[fieldFingerprint],
	}

	for field, dst := range map[string]*[]domgame.Ref{
		fieldGenres:    &it.Genres,
		fieldPlatforms: &it.Platforms,
		fieldTags:      &it.Tags,
		fieldStores:    &it.Stores,
	} {
		refs, err := decodeRefs(m[field])
		if err != nil {
			return nil, fmt.Errorf("game %d: decode %s: %w", id, field, err)
		}
		*dst = refs
	}

	if v, ok := m[fieldRating]; ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			it.Rating = &f
		}
	}
	it.Metacritic = parseOptInt(m[fieldMetacritic])
	it.Playtime = parseOptInt(m[fieldPlaytime])
	if v := m[fieldReleased]; v != "" {
		if t, err := time.Parse(dateLayout, v); err == nil {
			it.Released = &t
		}
	}
	return it, nil
}

// decodeEmbedding returns the stored vector, nil when the game has none.
func decodeEmbedding(m map[string]string) ([]float32, error) {
	v := m[fieldEmbedding]
	if v == "" {
		return nil, nil
	}
	vec, err := domain.DecodeVector([]byte(v))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", fieldEmbedding, err)
	}
	return vec, nil
}

func parseOptInt(s string) *int {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
