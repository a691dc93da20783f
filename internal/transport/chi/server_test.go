package chi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/gamesub/gamesub/internal/domain"
	"github.com/gamesub/gamesub/internal/domain/game"
	"github.com/gamesub/gamesub/internal/domain/intent"
	"github.com/gamesub/gamesub/internal/domain/search/mode"
	"github.com/gamesub/gamesub/internal/domain/search/request"
	"github.com/gamesub/gamesub/internal/domain/search/result"
	"github.com/gamesub/gamesub/internal/repository/history"
	healthuc "github.com/gamesub/gamesub/internal/usecase/health"
	searchuc "github.com/gamesub/gamesub/internal/usecase/search"
)

type mockSearcher struct {
	got     *request.Request
	results []result.Result
	fx      searchuc.SideEffects
	tokens  int
	err     error
}

func (m *mockSearcher) Search(ctx context.Context, req *request.Request) ([]result.Result, searchuc.SideEffects, error) {
	r := *req
	m.got = &r
	if m.tokens > 0 {
		domain.UsageFromContext(ctx).Record(m.tokens)
	}
	return m.results, m.fx, m.err
}

type mockRecommender struct {
	similarID    int64
	limit        int
	liked        []int64
	results      []result.Result
	suggestions  []string
	suggestQuery string
	err          error
}

func (m *mockRecommender) SimilarTo(_ context.Context, id int64, limit int) ([]result.Result, error) {
	m.similarID, m.limit = id, limit
	return m.results, m.err
}

func (m *mockRecommender) SearchByProfile(_ context.Context, liked []int64, limit int) ([]result.Result, error) {
	m.liked, m.limit = liked, limit
	return m.results, m.err
}

func (m *mockRecommender) Suggest(ctx context.Context, query string, limit int) ([]string, error) {
	m.suggestQuery, m.limit = query, limit
	domain.UsageFromContext(ctx).Record(3)
	return m.suggestions, m.err
}

type staticIntents struct{}

func (staticIntents) Options() []intent.Group { return intent.Catalogue() }

type mockHistory struct {
	entries []history.Entry
	n       int
}

func (m *mockHistory) Recent(_ context.Context, n int) ([]history.Entry, error) {
	m.n = n
	return m.entries, nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

type fixture struct {
	search    *mockSearcher
	recommend *mockRecommender
	health    *mockHealth
	history   *mockHistory
}

func newFixture() *fixture {
	return &fixture{
		search:    &mockSearcher{},
		recommend: &mockRecommender{},
		health:    &mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK}}},
	}
}

func (f *fixture) router() http.Handler {
	s := NewServer(f.search, f.recommend, staticIntents{}, f.health, zap.NewNop())
	if f.history != nil {
		s.WithHistory(f.history)
	}
	r := gochi.NewRouter()
	s.Routes(r)
	return r
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func sampleResults() []result.Result {
	rating := 4.5
	return []result.Result{
		result.New(&game.Item{ID: 1, Name: "Stardew Valley", Genres: []game.Ref{{ID: 1, Name: "Simulation"}}, Rating: &rating}, 0.8, result.SourceSemantic),
		result.New(&game.Item{ID: 2, Name: "Celeste"}, 0.5, result.SourceLexical),
	}
}

func TestSearch_OK(t *testing.T) {
	f := newFixture()
	f.search.results = sampleResults()
	f.search.tokens = 7
	f.search.fx = searchuc.SideEffects{ServedBy: "semantic"}

	rec := f.do(t, http.MethodGet, "/search?q=farming&limit=5&min_similarity=0.4", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-Embedding-Tokens"); got != "7" {
		t.Errorf("X-Embedding-Tokens = %q, want 7", got)
	}
	resp := decode[searchResponse](t, rec)
	if resp.Total != 2 || resp.Items[0].ID != 1 || resp.Items[1].Source != "lexical" {
		t.Errorf("unexpected body: %+v", resp)
	}
	if resp.Mode != "semantic" || resp.ServedBy != "semantic" {
		t.Errorf("mode/served_by = %q/%q", resp.Mode, resp.ServedBy)
	}
	if resp.Items[0].Genres[0] != "Simulation" || resp.Items[1].Tags == nil {
		t.Errorf("lists must be present: %+v", resp.Items)
	}
	if f.search.got.Limit() != 5 || f.search.got.MinSimilarity() != 0.4 || f.search.got.Query() != "farming" {
		t.Errorf("request not parsed: %+v", f.search.got.Key())
	}
}

func TestSearch_NoModelNoTokenHeader(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodGet, "/search?q=zelda&mode=lexical", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Embedding-Tokens") != "" {
		t.Error("header must be absent when the model was not used")
	}
	if !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Errorf("empty answer must be an empty list: %s", rec.Body.String())
	}
}

func TestSearch_TagsParsing(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodGet, "/search?q=zelda&tags=Relaxing,+coop&tags=story", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	tags := f.search.got.Tags()
	want := []intent.Tag{"relaxing", "coop", "story"}
	if len(tags) != len(want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Errorf("tags[%d] = %q, want %q", i, tags[i], want[i])
		}
	}
	if f.search.got.Mode() != mode.Adaptive {
		t.Errorf("tags must imply adaptive, got %q", f.search.got.Mode())
	}
}

func TestSearch_Validation(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"limit not a number", "q=a&limit=abc"},
		{"negative limit", "q=a&limit=-1"},
		{"bad mode", "q=a&mode=geo"},
		{"min similarity not a number", "q=a&min_similarity=high"},
		{"min similarity out of range", "q=a&min_similarity=1.5"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			rec := f.do(t, http.MethodGet, "/search?"+tc.query, "")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if resp := decode[errorResponse](t, rec); resp.Code != ErrorCodeValidationFailed {
				t.Errorf("code = %q", resp.Code)
			}
			if f.search.got != nil {
				t.Error("search must not run")
			}
		})
	}
}

func TestSearch_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorCode
	}{
		{"model", fmt.Errorf("load: %w", domain.ErrModelUnavailable), http.StatusServiceUnavailable, ErrorCodeModelUnavailable},
		{"provider", fmt.Errorf("embed: %w", domain.ErrEmbeddingProviderError), http.StatusBadGateway, ErrorCodeEmbeddingProviderError},
		{"invalid", domain.ErrInvalidQuery, http.StatusBadRequest, ErrorCodeValidationFailed},
		{"dims", domain.ErrVectorDimMismatch, http.StatusInternalServerError, ErrorCodeVectorDimMismatch},
		{"unknown", errors.New("redis: connection refused"), http.StatusInternalServerError, ErrorCodeInternalError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.search.err = tc.err
			rec := f.do(t, http.MethodGet, "/search?q=zelda", "")
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			resp := decode[errorResponse](t, rec)
			if resp.Code != tc.code {
				t.Errorf("code = %q, want %q", resp.Code, tc.code)
			}
			if strings.Contains(resp.Message, "redis") {
				t.Errorf("internal details leaked: %q", resp.Message)
			}
		})
	}
}

func TestSimilarGames(t *testing.T) {
	f := newFixture()
	f.recommend.results = sampleResults()

	rec := f.do(t, http.MethodGet, "/games/42/similar", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if f.recommend.similarID != 42 || f.recommend.limit != defaultListLimit {
		t.Errorf("called with id=%d limit=%d", f.recommend.similarID, f.recommend.limit)
	}
	if resp := decode[listResponse](t, rec); resp.Total != 2 {
		t.Errorf("total = %d", resp.Total)
	}
}

func TestSimilarGames_Errors(t *testing.T) {
	f := newFixture()
	if rec := f.do(t, http.MethodGet, "/games/abc/similar", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}

	f.recommend.err = fmt.Errorf("game 9: %w", domain.ErrNotFound)
	rec := f.do(t, http.MethodGet, "/games/9/similar?limit=500", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if resp := decode[errorResponse](t, rec); resp.Code != ErrorCodeGameNotFound {
		t.Errorf("code = %q", resp.Code)
	}
	if f.recommend.limit != request.MaxLimit {
		t.Errorf("limit = %d, want clamped to %d", f.recommend.limit, request.MaxLimit)
	}
}

func TestProfileRecommendations(t *testing.T) {
	f := newFixture()
	f.recommend.results = sampleResults()[:1]

	rec := f.do(t, http.MethodPost, "/recommendations/profile", `{"liked_ids":[3,5],"limit":4}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(f.recommend.liked) != 2 || f.recommend.liked[1] != 5 || f.recommend.limit != 4 {
		t.Errorf("called with liked=%v limit=%d", f.recommend.liked, f.recommend.limit)
	}

	if rec := f.do(t, http.MethodPost, "/recommendations/profile", `{"liked_ids":`); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}
}

func TestSuggestions(t *testing.T) {
	f := newFixture()
	f.recommend.suggestions = []string{"zelda adventure"}

	rec := f.do(t, http.MethodGet, "/suggestions?q=+zelda+", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if f.recommend.suggestQuery != "zelda" {
		t.Errorf("query = %q, want trimmed", f.recommend.suggestQuery)
	}
	if rec.Header().Get("X-Embedding-Tokens") != "3" {
		t.Errorf("X-Embedding-Tokens = %q", rec.Header().Get("X-Embedding-Tokens"))
	}
	resp := decode[suggestionsResponse](t, rec)
	if len(resp.Suggestions) != 1 || resp.Suggestions[0] != "zelda adventure" {
		t.Errorf("suggestions = %v", resp.Suggestions)
	}
}

func TestSuggestions_LimitPassedThrough(t *testing.T) {
	f := newFixture()

	f.do(t, http.MethodGet, "/suggestions?q=zelda", "")
	if f.recommend.limit != 0 {
		t.Errorf("limit = %d, want 0 so the engine default applies", f.recommend.limit)
	}

	f.do(t, http.MethodGet, "/suggestions?q=zelda&limit=500", "")
	if f.recommend.limit != request.MaxLimit {
		t.Errorf("limit = %d, want %d", f.recommend.limit, request.MaxLimit)
	}
}

func TestIntents(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodGet, "/intents", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[intentsResponse](t, rec)
	if resp.Version != intent.Version || len(resp.Categories) != 5 {
		t.Fatalf("unexpected catalogue: %+v", resp)
	}
	if resp.Categories[0].Category != string(intent.Ambiance) || resp.Categories[0].Options[0].Label == "" {
		t.Errorf("first group = %+v", resp.Categories[0])
	}
}

func TestHistory(t *testing.T) {
	f := newFixture()
	if rec := f.do(t, http.MethodGet, "/history", ""); rec.Code != http.StatusNotFound {
		t.Errorf("without history status = %d, want 404", rec.Code)
	}

	f.history = &mockHistory{entries: []history.Entry{{Query: "zelda", Mode: "semantic", Results: 3, At: time.Unix(0, 0).UTC()}}}
	rec := f.do(t, http.MethodGet, "/history", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if f.history.n != defaultHistoryLimit {
		t.Errorf("n = %d, want %d", f.history.n, defaultHistoryLimit)
	}
	resp := decode[historyResponse](t, rec)
	if len(resp.Items) != 1 || resp.Items[0].Query != "zelda" {
		t.Errorf("items = %+v", resp.Items)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFixture()
	if rec := f.do(t, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("healthy status = %d", rec.Code)
	}

	f.health.report = healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK, "embedding": healthuc.CheckError},
	}
	rec := f.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded status = %d, want 503", rec.Code)
	}
	resp := decode[healthResponse](t, rec)
	if resp.Status != "degraded" || resp.Checks["embedding"] != "error" {
		t.Errorf("body = %+v", resp)
	}
}

func TestMetrics(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
