package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/gamesub/gamesub/internal/domain"
	dombatch "github.com/gamesub/gamesub/internal/domain/batch"
	"github.com/gamesub/gamesub/internal/domain/game"
	"github.com/gamesub/gamesub/internal/metrics"
	"github.com/gamesub/gamesub/internal/projector"
	gamerepo "github.com/gamesub/gamesub/internal/repository/game"
)

func TestMain(m *testing.M) {
	metrics.RegisterSearchMetrics()
	os.Exit(m.Run())
}

// --- Mocks ---

type mockGameRepo struct {
	mu        sync.Mutex
	items     []*game.Item
	committed map[int64][]float32
	commits   int
	failOn    func(updates []gamerepo.Update) error
}

func (m *mockGameRepo) All(_ context.Context) ([]*game.Item, error) { return m.items, nil }

func (m *mockGameRepo) AllWithoutEmbedding(_ context.Context) ([]*game.Item, error) {
	var out []*game.Item
	for _, it := range m.items {
		if !it.HasEmbedding() {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *mockGameRepo) UpdateEmbeddings(_ context.Context, updates []gamerepo.Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != nil {
		if err := m.failOn(updates); err != nil {
			return err
		}
	}
	if m.committed == nil {
		m.committed = map[int64][]float32{}
	}
	for _, u := range updates {
		m.committed[u.ID] = u.Vector
	}
	m.commits++
	return nil
}

// mockEmbedder fails every text whose rendering starts with a name in failNames.
type mockEmbedder struct {
	mu         sync.Mutex
	failNames  map[string]bool
	batchErr   error
	calls      int
	batchCalls int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	name, _, _ := strings.Cut(text, " | ")
	if m.failNames[name] {
		return domain.EmbeddingResult{}, fmt.Errorf("inference failed: %w", domain.ErrEmbeddingProviderError)
	}
	return domain.EmbeddingResult{Embedding: []float32{3, 4}}, nil
}

func (m *mockEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.mu.Lock()
	m.batchCalls++
	m.mu.Unlock()
	if m.batchErr != nil {
		return domain.BatchEmbeddingResult{}, m.batchErr
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, text := range texts {
		name, _, _ := strings.Cut(text, " | ")
		if m.failNames[name] {
			return domain.BatchEmbeddingResult{}, errors.New("one input rejected")
		}
		out.Embeddings[i] = []float32{3, 4}
	}
	return out, nil
}

func makeGames(n int) []*game.Item {
	items := make([]*game.Item, n)
	for i := range items {
		items[i] = &game.Item{ID: int64(i + 1), Name: fmt.Sprintf("game-%d", i+1)}
	}
	return items
}

func newService(t *testing.T, emb domain.Embedder, repo *mockGameRepo) *Service {
	t.Helper()
	svc, err := New(emb, repo, 2, 4, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(svc.Release)
	return svc
}

// --- Tests ---

func TestEmbed_AllSucceed(t *testing.T) {
	items := makeGames(250)
	repo := &mockGameRepo{items: items}
	emb := &mockEmbedder{}
	svc := newService(t, emb, repo)

	sum := svc.Embed(context.Background(), items, 100)

	if sum.Total != 250 || sum.Committed != 250 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.Chunks != 3 || repo.commits != 3 {
		t.Errorf("chunks = %d, commits = %d, want 3/3", sum.Chunks, repo.commits)
	}
	if emb.batchCalls != 3 || emb.calls != 0 {
		t.Errorf("batchCalls = %d, calls = %d; batch path expected", emb.batchCalls, emb.calls)
	}
	if v := repo.committed[1]; len(v) != 2 || v[0] != 0.6 {
		t.Errorf("stored vector not normalized: %v", v)
	}
	if items[0].Fingerprint == "" || !items[0].HasEmbedding() {
		t.Error("committed item must carry its new vector")
	}
}

func TestEmbed_ItemFailureIsIsolated(t *testing.T) {
	items := makeGames(250)
	repo := &mockGameRepo{items: items}
	emb := &mockEmbedder{failNames: map[string]bool{"game-230": true}}
	svc := newService(t, emb, repo)

	sum := svc.Embed(context.Background(), items, 100)

	if sum.Committed != 249 || sum.Failed != 1 {
		t.Fatalf("committed = %d, failed = %d, want 249/1", sum.Committed, sum.Failed)
	}
	errs := sum.Errors()
	if len(errs) != 1 || errs[0].ID() != 230 {
		t.Fatalf("errors = %+v", errs)
	}
	if !errors.Is(errs[0].Err(), domain.ErrEmbeddingProviderError) {
		t.Errorf("unexpected error: %v", errs[0].Err())
	}
	// chunk 3 fell back to per-item embedding: 50 single calls
	if emb.calls != 50 {
		t.Errorf("per-item calls = %d, want 50", emb.calls)
	}
	if _, ok := repo.committed[230]; ok {
		t.Error("failed item must not be written")
	}
	if len(sum.Results) != 250 || sum.Results[229].Status() != dombatch.StatusError {
		t.Error("results must follow input order")
	}
}

func TestEmbed_CommitFailureKeepsOtherChunks(t *testing.T) {
	items := makeGames(250)
	items[149].Embedding = []float32{1, 0}
	items[149].Fingerprint = "old"
	repo := &mockGameRepo{items: items, failOn: func(updates []gamerepo.Update) error {
		for _, u := range updates {
			if u.ID == 150 {
				return errors.New("EXECABORT")
			}
		}
		return nil
	}}
	svc := newService(t, &mockEmbedder{}, repo)

	sum := svc.Embed(context.Background(), items, 100)

	if sum.Committed != 150 || sum.Failed != 100 {
		t.Fatalf("committed = %d, failed = %d, want 150/100", sum.Committed, sum.Failed)
	}
	for id := int64(101); id <= 200; id++ {
		if _, ok := repo.committed[id]; ok {
			t.Fatalf("item %d of the failed chunk was written", id)
		}
	}
	if items[149].Fingerprint != "old" {
		t.Error("failed chunk must keep the prior embedding state")
	}
	if _, ok := repo.committed[250]; !ok {
		t.Error("later chunks must still be processed")
	}
}

func TestEmbed_PlainEmbedderUsesPool(t *testing.T) {
	items := makeGames(10)
	repo := &mockGameRepo{items: items}
	emb := &plainEmbedder{}
	svc := newService(t, emb, repo)

	sum := svc.Embed(context.Background(), items, 4)

	if sum.Committed != 10 || sum.Chunks != 3 {
		t.Fatalf("summary = %+v", sum)
	}
}

type plainEmbedder struct{}

func (plainEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: []float32{1, 1}}, nil
}

func TestEmbed_DimensionMismatchIsPerItem(t *testing.T) {
	items := makeGames(3)
	repo := &mockGameRepo{items: items}
	svc, err := New(&mockEmbedder{}, repo, 384, 2, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Release()

	sum := svc.Embed(context.Background(), items, 10)
	if sum.Failed != 3 || !errors.Is(sum.Results[0].Err(), domain.ErrVectorDimMismatch) {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestEmbed_CancelledBetweenChunks(t *testing.T) {
	items := makeGames(300)
	ctx, cancel := context.WithCancel(context.Background())
	repo := &mockGameRepo{items: items, failOn: func([]gamerepo.Update) error {
		cancel()
		return nil
	}}
	svc := newService(t, &mockEmbedder{}, repo)

	sum := svc.Embed(ctx, items, 100)

	if !sum.Interrupted {
		t.Fatal("expected interrupted run")
	}
	if sum.Chunks != 1 || sum.Committed != 100 {
		t.Errorf("chunks = %d, committed = %d, want 1/100", sum.Chunks, sum.Committed)
	}
}

func TestBackfill_OnlyMissing(t *testing.T) {
	items := makeGames(5)
	items[0].Embedding = []float32{1, 0}
	items[3].Embedding = []float32{0, 1}
	repo := &mockGameRepo{items: items}
	svc := newService(t, &mockEmbedder{}, repo)

	sum, err := svc.Backfill(context.Background(), true, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Total != 3 || sum.Committed != 3 {
		t.Errorf("summary = %+v", sum)
	}

	sum, err = svc.Backfill(context.Background(), false, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Total != 5 {
		t.Errorf("full backfill total = %d, want 5", sum.Total)
	}
}

func TestRefreshStaleAndStats(t *testing.T) {
	items := makeGames(4)
	// 1: current vector, 2: outdated fingerprint, 3 and 4: no vector.
	items[0].Embedding = []float32{1, 0}
	items[0].Fingerprint = projector.Fingerprint(items[0])
	items[1].Embedding = []float32{0, 1}
	items[1].Fingerprint = "old"
	repo := &mockGameRepo{items: items}
	svc := newService(t, &mockEmbedder{}, repo)

	st, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Total != 4 || st.Embedded != 2 || st.Stale != 1 || st.Missing() != 2 {
		t.Errorf("stats = %+v", st)
	}

	sum, err := svc.RefreshStale(context.Background(), 0)
	if err != nil {
		t.Fatalf("RefreshStale: %v", err)
	}
	if sum.Total != 3 || sum.Committed != 3 {
		t.Errorf("summary = %+v", sum)
	}
	if _, touched := repo.committed[1]; touched {
		t.Error("current vector must not be recomputed")
	}

	st, _ = svc.Stats(context.Background())
	if st.Embedded != 4 || st.Stale != 0 {
		t.Errorf("after refresh stats = %+v", st)
	}
}
