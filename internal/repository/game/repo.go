package game

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gamesub/gamesub/internal/db"
	"github.com/gamesub/gamesub/internal/domain"
	domgame "github.com/gamesub/gamesub/internal/domain/game"
)

// KeyPrefix is the hash key prefix of stored games; the vector index is declared over it.
const KeyPrefix = domain.KeyPrefix + "game:"

// RevisionKey holds a marker rewritten after every catalog write.
const RevisionKey = domain.KeyPrefix + "games:revision"

const loadChunk = 500

// store is the consumer interface for games (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetAtomic(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Update is a regenerated embedding for one game.
type Update struct {
	ID          int64
	Vector      []float32
	Fingerprint string
}

// Repo stores games as Redis hashes.
type Repo struct {
	store  store
	logger *zap.Logger
	now    func() time.Time

	// ids whose stored vector failed to decode, reported once each
	corrupt sync.Map
}

// New creates a game repository.
func New(s store) *Repo {
	return &Repo{store: s, logger: zap.NewNop(), now: time.Now}
}

// WithLogger sets the logger used for skipped or corrupt records.
func (r *Repo) WithLogger(l *zap.Logger) *Repo {
	r.logger = l
	return r
}

// Key returns the hash key of a game.
func Key(id int64) string {
	return KeyPrefix + strconv.FormatInt(id, 10)
}

// IDFromKey extracts the game id from a hash key.
func IDFromKey(key string) (int64, bool) {
	s, ok := strings.CutPrefix(key, KeyPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Save writes the full game record.
func (r *Repo) Save(ctx context.Context, it *domgame.Item) error {
	if err := it.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
	}
	fields, err := buildHashFields(it)
	if err != nil {
		return err
	}
	if err := r.store.HSet(ctx, Key(it.ID), fields); err != nil {
		return fmt.Errorf("hset game %d: %w", it.ID, err)
	}
	r.touch(ctx)
	return nil
}

// Get returns one game.
func (r *Repo) Get(ctx context.Context, id int64) (*domgame.Item, error) {
	m, err := r.store.HGetAll(ctx, Key(id))
	if err != nil {
		return nil, fmt.Errorf("hgetall game %d: %w", id, err)
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("game %d: %w", id, domain.ErrNotFound)
	}
	return r.parse(m)
}

// GetMany returns the games that exist among ids, in ids order.
func (r *Repo) GetMany(ctx context.Context, ids []int64) ([]*domgame.Item, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = Key(id)
	}
	return r.load(ctx, keys)
}

// All returns every stored game ordered by id.
func (r *Repo) All(ctx context.Context) ([]*domgame.Item, error) {
	keys, err := r.store.Scan(ctx, KeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan games: %w", err)
	}
	items, err := r.load(ctx, keys)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(items, func(a, b *domgame.Item) int { return cmp.Compare(a.ID, b.ID) })
	return items, nil
}

// AllWithEmbedding returns the games that can take part in vector search.
func (r *Repo) AllWithEmbedding(ctx context.Context) ([]*domgame.Item, error) {
	return r.filter(ctx, (*domgame.Item).HasEmbedding)
}

// AllWithoutEmbedding returns the games still waiting for a vector.
func (r *Repo) AllWithoutEmbedding(ctx context.Context) ([]*domgame.Item, error) {
	return r.filter(ctx, func(it *domgame.Item) bool { return !it.HasEmbedding() })
}

// FindByText returns games whose name or description contains q (case-insensitive),
// best rated first, skipping ids in exclude.
func (r *Repo) FindByText(ctx context.Context, q string, limit int, exclude map[int64]bool) ([]*domgame.Item, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" || limit <= 0 {
		return nil, nil
	}
	matches, err := r.filter(ctx, func(it *domgame.Item) bool {
		if exclude[it.ID] {
			return false
		}
		return strings.Contains(strings.ToLower(it.Name), q) ||
			strings.Contains(strings.ToLower(it.Description), q)
	})
	if err != nil {
		return nil, err
	}
	sortByRating(matches)
	return matches[:min(limit, len(matches))], nil
}

// TopRated returns the best rated games, unrated last, skipping ids in exclude.
func (r *Repo) TopRated(ctx context.Context, limit int, exclude map[int64]bool) ([]*domgame.Item, error) {
	if limit <= 0 {
		return nil, nil
	}
	items, err := r.filter(ctx, func(it *domgame.Item) bool { return !exclude[it.ID] })
	if err != nil {
		return nil, err
	}
	sortByRating(items)
	return items[:min(limit, len(items))], nil
}

// UpdateEmbedding replaces the vector of one existing game in a single write.
func (r *Repo) UpdateEmbedding(ctx context.Context, id int64, vec []float32, fingerprint string) error {
	key := Key(id)
	ok, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !ok {
		return fmt.Errorf("game %d: %w", id, domain.ErrNotFound)
	}
	if err := r.store.HSet(ctx, key, embeddingFields(vec, fingerprint)); err != nil {
		return fmt.Errorf("hset embedding %d: %w", id, err)
	}
	r.touch(ctx)
	return nil
}

// UpdateEmbeddings writes all updates in one transaction; on error none of them is applied.
func (r *Repo) UpdateEmbeddings(ctx context.Context, updates []Update) error {
	if len(updates) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, len(updates))
	for i, u := range updates {
		items[i] = db.HashSetItem{Key: Key(u.ID), Fields: embeddingFields(u.Vector, u.Fingerprint)}
	}
	if err := r.store.HSetAtomic(ctx, items); err != nil {
		return fmt.Errorf("commit %d embeddings: %w", len(updates), err)
	}
	r.touch(ctx)
	return nil
}

// Revision returns the current catalog marker, "" when nothing was ever written.
// Any write through this repository changes it.
func (r *Repo) Revision(ctx context.Context) (string, error) {
	b, err := r.store.Get(ctx, RevisionKey)
	if errors.Is(err, db.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get catalog revision: %w", err)
	}
	return string(b), nil
}

// touch moves the catalog revision. A failure only delays cache invalidation until the TTL.
func (r *Repo) touch(ctx context.Context) {
	rev := strconv.FormatInt(r.now().UnixNano(), 10)
	if err := r.store.Set(ctx, RevisionKey, []byte(rev)); err != nil {
		r.logger.Warn("Failed to bump catalog revision", zap.Error(err))
	}
}

// parse decodes a stored hash. A vector that does not decode leaves the game without
// an embedding and is logged once per game.
func (r *Repo) parse(m map[string]string) (*domgame.Item, error) {
	it, err := parseHashFields(m)
	if err != nil {
		return nil, err
	}
	vec, err := decodeEmbedding(m)
	if err != nil {
		if _, seen := r.corrupt.LoadOrStore(it.ID, struct{}{}); !seen {
			r.logger.Warn("Stored embedding is corrupt, treating game as not embedded",
				zap.Int64("game_id", it.ID), zap.Error(err))
		}
		return it, nil
	}
	it.Embedding = vec
	return it, nil
}

func (r *Repo) filter(ctx context.Context, keep func(*domgame.Item) bool) ([]*domgame.Item, error) {
	all, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domgame.Item, 0, len(all))
	for _, it := range all {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out, nil
}

// load fetches hashes in chunks, skipping keys that vanished between SCAN and HGETALL
// and hashes that do not parse, such as a vector written for a game deleted meanwhile.
func (r *Repo) load(ctx context.Context, keys []string) ([]*domgame.Item, error) {
	items := make([]*domgame.Item, 0, len(keys))
	for start := 0; start < len(keys); start += loadChunk {
		chunk := keys[start:min(start+loadChunk, len(keys))]
		maps, err := r.store.HGetAllMulti(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("load games: %w", err)
		}
		for i, m := range maps {
			if len(m) == 0 {
				continue
			}
			it, err := r.parse(m)
			if err != nil {
				r.logger.Warn("Skipping unreadable game hash", zap.String("key", chunk[i]), zap.Error(err))
				continue
			}
			items = append(items, it)
		}
	}
	return items, nil
}

func sortByRating(items []*domgame.Item) {
	slices.SortStableFunc(items, func(a, b *domgame.Item) int {
		switch {
		case a.Rating == nil && b.Rating != nil:
			return 1
		case a.Rating != nil && b.Rating == nil:
			return -1
		}
		if c := cmp.Compare(b.RatingOr(0), a.RatingOr(0)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
