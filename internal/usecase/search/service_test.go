package search

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/gamesub/gamesub/internal/domain"
	"github.com/gamesub/gamesub/internal/domain/game"
	"github.com/gamesub/gamesub/internal/domain/intent"
	"github.com/gamesub/gamesub/internal/domain/search/mode"
	"github.com/gamesub/gamesub/internal/domain/search/request"
	"github.com/gamesub/gamesub/internal/domain/search/result"
	"github.com/gamesub/gamesub/internal/metrics"
	"github.com/gamesub/gamesub/internal/repository/history"
)

func TestMain(m *testing.M) {
	metrics.RegisterSearchMetrics()
	os.Exit(m.Run())
}

// --- Mocks ---

type mockSemantic struct {
	results []result.Result
	err     error
	calls   int
}

func (m *mockSemantic) Search(_ context.Context, _ string, _ int, _ float64) ([]result.Result, error) {
	m.calls++
	return m.results, m.err
}

type mockHybrid struct {
	results []result.Result
	err     error
}

func (m *mockHybrid) Search(_ context.Context, _ string, _ int) ([]result.Result, error) {
	return m.results, m.err
}

type mockAdaptive struct {
	results []result.Result
	err     error
	gotTags []intent.Tag
}

func (m *mockAdaptive) Search(_ context.Context, _ string, tags []intent.Tag, _ int, _ float64) ([]result.Result, error) {
	m.gotTags = tags
	return m.results, m.err
}

type mockCatalog struct {
	text      []*game.Item
	textErr   error
	textCalls int
	top       []*game.Item
	topErr    error
	topCalls  int
}

func (m *mockCatalog) FindByText(_ context.Context, _ string, _ int, _ map[int64]bool) ([]*game.Item, error) {
	m.textCalls++
	return m.text, m.textErr
}

func (m *mockCatalog) TopRated(_ context.Context, _ int, _ map[int64]bool) ([]*game.Item, error) {
	m.topCalls++
	return m.top, m.topErr
}

type mockCache struct {
	entries map[request.CacheKey][]result.Result
	getErr  error
	putErr  error
	puts    int
}

func (m *mockCache) Get(key request.CacheKey) ([]result.Result, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	rs, ok := m.entries[key]
	return rs, ok, nil
}

func (m *mockCache) Put(key request.CacheKey, rs []result.Result) error {
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	if m.entries == nil {
		m.entries = map[request.CacheKey][]result.Result{}
	}
	m.entries[key] = rs
	return nil
}

type mockHistory struct {
	entries []history.Entry
	err     error
}

func (m *mockHistory) Record(_ context.Context, e history.Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func hits(ids ...int64) []result.Result {
	out := make([]result.Result, len(ids))
	for i, id := range ids {
		out[i] = result.New(&game.Item{ID: id, Name: "g"}, 0.8, result.SourceSemantic)
	}
	return out
}

func newReq(t *testing.T, q string, m mode.Mode, tags ...intent.Tag) *request.Request {
	t.Helper()
	r, err := request.New(q, m, tags, 10, nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return &r
}

type fixture struct {
	sem     *mockSemantic
	hyb     *mockHybrid
	ada     *mockAdaptive
	catalog *mockCatalog
	cache   *mockCache
	hist    *mockHistory
	svc     *Service
}

func newFixture() *fixture {
	f := &fixture{
		sem:     &mockSemantic{results: hits(1, 2)},
		hyb:     &mockHybrid{results: hits(3)},
		ada:     &mockAdaptive{results: hits(4)},
		catalog: &mockCatalog{text: []*game.Item{{ID: 9}}, top: []*game.Item{{ID: 7}, {ID: 8}}},
		cache:   &mockCache{},
		hist:    &mockHistory{},
	}
	f.svc = New(f.sem, f.hyb, f.ada, f.catalog, zap.NewNop()).WithCache(f.cache).WithHistory(f.hist)
	f.svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return f
}

// --- Tests ---

func TestSearch_DispatchByMode(t *testing.T) {
	tests := []struct {
		mode   mode.Mode
		wantID int64
	}{
		{mode.Semantic, 1},
		{mode.Hybrid, 3},
		{mode.Adaptive, 4},
		{mode.Lexical, 9},
	}
	for _, tc := range tests {
		t.Run(string(tc.mode), func(t *testing.T) {
			f := newFixture()
			rs, fx, err := f.svc.Search(context.Background(), newReq(t, "zelda", tc.mode, "coop"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(rs) == 0 || rs[0].ID() != tc.wantID {
				t.Errorf("got %+v", rs)
			}
			if fx.Degraded || fx.CacheHit || fx.ServedBy != string(tc.mode) {
				t.Errorf("side effects = %+v", fx)
			}
		})
	}
}

func TestSearch_AdaptiveGetsTags(t *testing.T) {
	f := newFixture()
	if _, _, err := f.svc.Search(context.Background(), newReq(t, "zelda", "", "relaxing", "coop")); err != nil {
		t.Fatal(err)
	}
	if len(f.ada.gotTags) != 2 || f.ada.gotTags[0] != "relaxing" {
		t.Errorf("tags = %v", f.ada.gotTags)
	}
}

func TestSearch_BlankQueryNoSideEffects(t *testing.T) {
	f := newFixture()
	rs, fx, err := f.svc.Search(context.Background(), newReq(t, "   ", mode.Semantic))
	if rs != nil || err != nil {
		t.Fatalf("got %v, %v", rs, err)
	}
	if f.sem.calls != 0 || f.cache.puts != 0 || len(f.hist.entries) != 0 || fx.ServedBy != "" {
		t.Error("blank query must not touch engines, cache or history")
	}
}

func TestSearch_CacheHit(t *testing.T) {
	f := newFixture()
	req := newReq(t, "zelda", mode.Semantic)

	if _, _, err := f.svc.Search(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	before := testutil.ToFloat64(metrics.SearchRequestsTotal.WithLabelValues("semantic", "cached"))
	rs, fx, err := f.svc.Search(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !fx.CacheHit || f.sem.calls != 1 || len(rs) != 2 {
		t.Errorf("fx=%+v calls=%d len=%d", fx, f.sem.calls, len(rs))
	}
	if after := testutil.ToFloat64(metrics.SearchRequestsTotal.WithLabelValues("semantic", "cached")); after-before != 1 {
		t.Errorf("cached counter delta = %f", after-before)
	}
}

func TestSearch_CacheErrorsAreSideEffects(t *testing.T) {
	f := newFixture()
	f.cache.getErr = errors.New("badger closed")
	f.cache.putErr = errors.New("badger closed")

	rs, fx, err := f.svc.Search(context.Background(), newReq(t, "zelda", mode.Semantic))
	if err != nil || len(rs) != 2 {
		t.Fatalf("core search must succeed: %v", err)
	}
	if fx.CacheErr == nil {
		t.Error("expected CacheErr")
	}
	if fx.HistoryErr != nil {
		t.Errorf("unexpected HistoryErr: %v", fx.HistoryErr)
	}
}

func TestSearch_HistoryRecordedAndFailureIsolated(t *testing.T) {
	f := newFixture()
	if _, _, err := f.svc.Search(context.Background(), newReq(t, "zelda", mode.Adaptive, "coop")); err != nil {
		t.Fatal(err)
	}
	if len(f.hist.entries) != 1 {
		t.Fatalf("entries = %d", len(f.hist.entries))
	}
	e := f.hist.entries[0]
	if e.Query != "zelda" || e.Mode != "adaptive" || e.Results != 1 || len(e.Tags) != 1 || e.At.Year() != 2026 {
		t.Errorf("entry = %+v", e)
	}

	f.hist.err = errors.New("READONLY")
	rs, fx, err := f.svc.Search(context.Background(), newReq(t, "mario", mode.Semantic))
	if err != nil || len(rs) != 2 {
		t.Fatalf("history failure must not fail the search: %v", err)
	}
	if fx.HistoryErr == nil {
		t.Error("expected HistoryErr")
	}
}

func TestSearch_ModelFailureDegradesToLexical(t *testing.T) {
	f := newFixture()
	f.sem.err = domain.ErrModelUnavailable

	rs, fx, err := f.svc.Search(context.Background(), newReq(t, "zelda", mode.Semantic))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fx.Degraded || fx.ServedBy != "lexical" {
		t.Errorf("fx = %+v", fx)
	}
	if len(rs) != 1 || rs[0].Source() != result.SourceLexical {
		t.Errorf("got %+v", rs)
	}
	if f.cache.puts != 0 {
		t.Error("degraded answers must not be cached")
	}
}

func TestSearch_DegradesToTopRated(t *testing.T) {
	f := newFixture()
	f.ada.err = domain.ErrModelUnavailable
	f.catalog.text = nil

	rs, fx, err := f.svc.Search(context.Background(), newReq(t, "zelda", mode.Adaptive, "coop"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fx.ServedBy != ServedByTopRated || len(rs) != 2 || rs[0].ID() != 7 {
		t.Errorf("fx=%+v rs=%+v", fx, rs)
	}
}

func TestSearch_EverythingFails(t *testing.T) {
	f := newFixture()
	f.sem.err = domain.ErrModelUnavailable
	f.catalog.textErr = errors.New("down")
	f.catalog.topErr = errors.New("down")

	_, _, err := f.svc.Search(context.Background(), newReq(t, "zelda", mode.Semantic))
	if !errors.Is(err, domain.ErrModelUnavailable) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestSearch_LexicalEmptyIsNotAFailure(t *testing.T) {
	f := newFixture()
	f.catalog.text = nil

	rs, fx, err := f.svc.Search(context.Background(), newReq(t, "zzz", mode.Lexical))
	if err != nil || len(rs) != 0 || fx.Degraded || f.catalog.topCalls != 0 {
		t.Errorf("rs=%v fx=%+v err=%v", rs, fx, err)
	}
}

func TestSearch_LexicalFailureSkipsToTopRated(t *testing.T) {
	f := newFixture()
	f.catalog.textErr = errors.New("down")

	rs, fx, err := f.svc.Search(context.Background(), newReq(t, "zelda", mode.Lexical))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.catalog.textCalls != 1 {
		t.Errorf("lexical search ran %d times, want 1", f.catalog.textCalls)
	}
	if !fx.Degraded || fx.ServedBy != ServedByTopRated || len(rs) != 2 {
		t.Errorf("fx=%+v rs=%+v", fx, rs)
	}
}
