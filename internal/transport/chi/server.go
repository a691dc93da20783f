package chi

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	gochi "github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gamesub/gamesub/internal/domain"
	"github.com/gamesub/gamesub/internal/domain/intent"
	"github.com/gamesub/gamesub/internal/domain/search/mode"
	"github.com/gamesub/gamesub/internal/domain/search/request"
	logpkg "github.com/gamesub/gamesub/internal/logger"
	healthuc "github.com/gamesub/gamesub/internal/usecase/health"
)

// Listing defaults for endpoints other than /search.
const (
	defaultListLimit    = 10
	defaultHistoryLimit = 20
	maxBodyBytes        = 1 << 20
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the games search API.
type Server struct {
	search        searcher
	recommend     recommender
	intents       intentCatalogue
	history       historyReader
	health        healthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search searcher,
	recommend recommender,
	intents intentCatalogue,
	health healthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:    search,
		recommend: recommend,
		intents:   intents,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeGameNotFound),
		sentinelHandler(domain.ErrModelUnavailable, http.StatusServiceUnavailable, ErrorCodeModelUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorCodeEmbeddingProviderError),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusInternalServerError, ErrorCodeVectorDimMismatch),
	}
	return s
}

// WithHistory enables GET /history.
func (s *Server) WithHistory(h historyReader) *Server {
	s.history = h
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r gochi.Router) {
	r.Get("/search", s.Search)
	r.Get("/games/{id}/similar", s.SimilarGames)
	r.Post("/recommendations/profile", s.ProfileRecommendations)
	r.Get("/suggestions", s.Suggestions)
	r.Get("/intents", s.Intents)
	if s.history != nil {
		r.Get("/history", s.History)
	}
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Search answers GET /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := intParam(q, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}
	minSim, err := floatParam(q, "min_similarity")
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}
	req, err := request.New(q.Get("q"), mode.Mode(q.Get("mode")), tagsParam(q), limit, minSim)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	rs, fx, err := s.search.Search(ctx, &req)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if fx.CacheErr != nil || fx.HistoryErr != nil {
		logpkg.FromContextOr(ctx, s.logger).Warn("search side effect failed",
			zap.NamedError("cache_error", fx.CacheErr),
			zap.NamedError("history_error", fx.HistoryErr),
		)
	}

	items := resultsToDTO(rs)
	writeJSON(w, http.StatusOK, searchResponse{
		Query:    req.Query(),
		Mode:     string(req.Mode()),
		Items:    items,
		Total:    len(items),
		ServedBy: fx.ServedBy,
		Degraded: fx.Degraded,
		Cached:   fx.CacheHit,
	})
}

// SimilarGames answers GET /games/{id}/similar.
func (s *Server) SimilarGames(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(gochi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "id must be a positive integer")
		return
	}
	limit, err := listLimit(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	rs, err := s.recommend.SimilarTo(r.Context(), id, limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	items := resultsToDTO(rs)
	writeJSON(w, http.StatusOK, listResponse{Items: items, Total: len(items)})
}

// ProfileRecommendations answers POST /recommendations/profile.
func (s *Server) ProfileRecommendations(w http.ResponseWriter, r *http.Request) {
	var body profileRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "invalid request body")
		return
	}
	limit := clampLimit(body.Limit)

	rs, err := s.recommend.SearchByProfile(r.Context(), body.LikedIDs, limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	items := resultsToDTO(rs)
	writeJSON(w, http.StatusOK, listResponse{Items: items, Total: len(items)})
}

// Suggestions answers GET /suggestions.
func (s *Server) Suggestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}
	limit = min(limit, request.MaxLimit)
	query := strings.TrimSpace(q.Get("q"))
	if len(query) > request.MaxQueryLength {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed,
			fmt.Sprintf("query too long (max %d chars)", request.MaxQueryLength))
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	out, err := s.recommend.Suggest(ctx, query, limit)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestionsResponse{Query: query, Suggestions: nonNil(out)})
}

// Intents answers GET /intents.
func (s *Server) Intents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, intentsToDTO(s.intents.Options()))
}

// History answers GET /history.
func (s *Server) History(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query(), "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, request.MaxLimit)

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Items: entries})
}

// HealthCheck answers GET /health. Any status other than ok is a 503.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics exposes Prometheus metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Used() {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrNotFound,
		domain.ErrModelUnavailable,
		domain.ErrEmbeddingProviderError,
		domain.ErrVectorDimMismatch,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

func intParam(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must not be negative", name)
	}
	return v, nil
}

func floatParam(q url.Values, name string) (*float64, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", name)
	}
	return &v, nil
}

// tagsParam accepts both ?tags=a,b and ?tags=a&tags=b. Unknown tags are dropped later by the engine.
func tagsParam(q url.Values) []intent.Tag {
	var tags []intent.Tag
	for _, raw := range q["tags"] {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				tags = append(tags, intent.Tag(t))
			}
		}
	}
	return tags
}

func listLimit(q url.Values) (int, error) {
	limit, err := intParam(q, "limit")
	if err != nil {
		return 0, err
	}
	return clampLimit(limit), nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, request.MaxLimit)
}
