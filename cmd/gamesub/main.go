package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/gamesub/gamesub/internal/bootstrap"
	"github.com/gamesub/gamesub/internal/config"
	logpkg "github.com/gamesub/gamesub/internal/logger"
	"github.com/gamesub/gamesub/internal/metrics"
	gamerepo "github.com/gamesub/gamesub/internal/repository/game"
	historyrepo "github.com/gamesub/gamesub/internal/repository/history"
	"github.com/gamesub/gamesub/internal/repository/resultcache"
	searchrepo "github.com/gamesub/gamesub/internal/repository/search"
	chiTransport "github.com/gamesub/gamesub/internal/transport/chi"
	"github.com/gamesub/gamesub/internal/usecase/adaptive"
	embeddinguc "github.com/gamesub/gamesub/internal/usecase/embedding"
	healthuc "github.com/gamesub/gamesub/internal/usecase/health"
	"github.com/gamesub/gamesub/internal/usecase/hybrid"
	searchuc "github.com/gamesub/gamesub/internal/usecase/search"
	"github.com/gamesub/gamesub/internal/usecase/semantic"
	"github.com/gamesub/gamesub/internal/usecase/similarity"
	"github.com/gamesub/gamesub/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg := config.MustLoad(env)

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting gamesub API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("embedding_model", cfg.Embedding.Model),
	)

	ctx := context.Background()
	watchCtx, stopWatchers := context.WithCancel(ctx)
	defer stopWatchers()

	store, err := bootstrap.OpenStore(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer store.Close()
	logger.Info("Connected to database")

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	gameRepo := gamerepo.New(store).WithLogger(logger)
	searchRepo := searchrepo.New(store)
	if err := searchRepo.EnsureIndex(ctx, cfg.Vector()); err != nil {
		// Brute-force scan over stored vectors takes over.
		logger.Warn("Vector index unavailable, using in-process similarity", zap.Error(err))
	}

	// Model is not loaded here: the first search (or /health) pays for it.
	emb := bootstrap.BuildEmbedders(&cfg, store, logger)
	prometheus.MustRegister(metrics.NewModelLoadedGauge(emb.Model.Loaded))
	embSvc := embeddinguc.New(emb.Document, gameRepo, cfg.Embedding.Dimensions, logger).
		WithQueryEmbedder(emb.Query)

	index := similarity.New(searchRepo, gameRepo, logger)
	sem := semantic.New(embSvc, index, gameRepo, logger)
	blender := hybrid.New(sem, gameRepo, cfg.Search.SemanticShare, cfg.Search.HybridFloor, logger)
	adaptiveEngine := adaptive.New(sem, gameRepo, adaptive.Tuning{
		CandidateFloor: cfg.Search.AdaptiveFloor,
		Oversample:     cfg.Search.Oversample,
		OversampleCap:  cfg.Search.OversampleCap,
		MinMultiplier:  cfg.Search.MinMultiplier,
		MaxMultiplier:  cfg.Search.MaxMultiplier,
	}, logger)

	searchSvc := searchuc.New(sem, blender, adaptiveEngine, gameRepo, logger)

	if cfg.Cache.ResultTTLSec > 0 {
		cache, err := resultcache.Open(time.Duration(cfg.Cache.ResultTTLSec)*time.Second, logger)
		if err != nil {
			logger.Fatal("Failed to open result cache", zap.Error(err))
		}
		defer func() { _ = cache.Close() }()
		searchSvc.WithCache(cache)

		// Backfills run in another process; a catalog revision change purges stale answers.
		invalidator := searchuc.NewInvalidator(gameRepo, cache,
			time.Duration(cfg.Cache.RevisionPollSec)*time.Second, logger)
		go invalidator.Run(watchCtx)
	}

	var histRepo *historyrepo.Repo
	if cfg.History.Enabled {
		histRepo = historyrepo.New(store, cfg.History.MaxEntries)
		searchSvc.WithHistory(histRepo)
	}

	healthSvc := healthuc.New(store, emb.Model).WithIndex(searchRepo)

	server := chiTransport.NewServer(searchSvc, sem, adaptiveEngine, healthSvc, logger)
	if histRepo != nil {
		server.WithHistory(histRepo)
	}

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.String("path", r.URL.Path),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    string(chiTransport.ErrorCodeInternalError),
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line: one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.Query().Get("q")),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
