package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/gamesub/gamesub/internal/bootstrap"
	"github.com/gamesub/gamesub/internal/catalog"
	"github.com/gamesub/gamesub/internal/config"
	dbredis "github.com/gamesub/gamesub/internal/db/redis"
	dombatch "github.com/gamesub/gamesub/internal/domain/batch"
	logpkg "github.com/gamesub/gamesub/internal/logger"
	"github.com/gamesub/gamesub/internal/metrics"
	gamerepo "github.com/gamesub/gamesub/internal/repository/game"
	searchrepo "github.com/gamesub/gamesub/internal/repository/search"
	batchuc "github.com/gamesub/gamesub/internal/usecase/batch"
	embeddinguc "github.com/gamesub/gamesub/internal/usecase/embedding"
)

// runtime is everything a command needs, built from the global flags.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
	store  *dbredis.Store
	games  *gamerepo.Repo
	search *searchrepo.Repo
	embed  *embeddinguc.Service
	batch  *batchuc.Service
}

func openRuntime(ctx context.Context, c *cli.Context) (*runtime, error) {
	env := c.String("env")
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.Logging.Level
	if l := c.String("log-level"); l != "" {
		level = l
	}
	logger, err := logpkg.NewLogger(env, level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	store, err := bootstrap.OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	metrics.RegisterEmbeddingMetrics()

	games := gamerepo.New(store).WithLogger(logger)
	emb := bootstrap.BuildEmbedders(&cfg, store, logger)
	bs, err := batchuc.New(emb.Document, games, cfg.Embedding.Dimensions, cfg.Batch.Workers, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &runtime{
		cfg:    cfg,
		logger: logger,
		store:  store,
		games:  games,
		search: searchrepo.New(store),
		embed:  embeddinguc.New(emb.Document, games, cfg.Embedding.Dimensions, logger),
		batch:  bs,
	}, nil
}

func (rt *runtime) Close() {
	rt.batch.Release()
	rt.store.Close()
	_ = rt.logger.Sync()
}

// batchSize falls back to the configured chunk size when the flag is unset.
func (rt *runtime) batchSize(c *cli.Context) int {
	if c.IsSet("batch-size") {
		return c.Int("batch-size")
	}
	return rt.cfg.Batch.Size
}

// withRuntime runs fn with an interruptible context: Ctrl-C stops batch runs at the next chunk.
func withRuntime(fn func(ctx context.Context, c *cli.Context, rt *runtime) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := openRuntime(ctx, c)
		if err != nil {
			return err
		}
		defer rt.Close()
		return fn(ctx, c, rt)
	}
}

var importCommand = withRuntime(func(ctx context.Context, c *cli.Context, rt *runtime) error {
	f, err := os.Open(c.String("file"))
	if err != nil {
		return fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	items, skipped, err := catalog.Decode(f)
	if err != nil {
		return fmt.Errorf("decode export: %w", err)
	}
	for _, s := range skipped {
		rt.logger.Warn("Record skipped", zap.Int("index", s.Index), zap.String("reason", s.Reason))
	}

	saved, err := catalog.Import(ctx, rt.games, items, rt.logger)
	fmt.Fprintf(c.App.Writer, "imported: %d, skipped: %d\n", saved, len(skipped))
	if err != nil {
		return err
	}

	if !c.Bool("embed") {
		return nil
	}
	sum, err := rt.batch.RefreshStale(ctx, rt.batchSize(c))
	if err != nil {
		return err
	}
	return report(c.App.Writer, sum)
})

var backfillCommand = withRuntime(func(ctx context.Context, c *cli.Context, rt *runtime) error {
	sum, err := rt.batch.Backfill(ctx, c.Bool("only-missing"), rt.batchSize(c))
	if err != nil {
		return err
	}
	return report(c.App.Writer, sum)
})

var refreshStaleCommand = withRuntime(func(ctx context.Context, c *cli.Context, rt *runtime) error {
	sum, err := rt.batch.RefreshStale(ctx, rt.batchSize(c))
	if err != nil {
		return err
	}
	return report(c.App.Writer, sum)
})

var refreshCommand = withRuntime(func(ctx context.Context, c *cli.Context, rt *runtime) error {
	id := c.Int64("id")
	it, err := rt.games.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load game %d: %w", id, err)
	}

	if c.Bool("force") {
		if _, err := rt.embed.EmbedOne(ctx, it); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "game %d: embedded\n", id)
		return nil
	}

	changed, err := rt.embed.Refresh(ctx, it)
	if err != nil {
		return err
	}
	if changed {
		fmt.Fprintf(c.App.Writer, "game %d: embedded\n", id)
	} else {
		fmt.Fprintf(c.App.Writer, "game %d: up to date\n", id)
	}
	return nil
})

var statsCommand = withRuntime(func(ctx context.Context, c *cli.Context, rt *runtime) error {
	st, err := rt.batch.Stats(ctx)
	if err != nil {
		return err
	}
	printStats(c.App.Writer, st)
	return nil
})

var reindexCommand = withRuntime(func(ctx context.Context, c *cli.Context, rt *runtime) error {
	if err := rt.search.Rebuild(ctx, rt.cfg.Vector()); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	fmt.Fprintln(c.App.Writer, "index rebuilt")
	return nil
})

// errIncomplete makes the process exit non-zero when some games failed or the run was interrupted.
var errIncomplete = errors.New("batch incomplete")

func report(w io.Writer, sum dombatch.Summary) error {
	printSummary(w, sum)
	if sum.Failed > 0 || sum.Interrupted {
		return errIncomplete
	}
	return nil
}

func printSummary(w io.Writer, sum dombatch.Summary) {
	fmt.Fprintf(w, "total: %d, committed: %d (%.1f%%), failed: %d, chunks: %d\n",
		sum.Total, sum.Committed, sum.SuccessRate(), sum.Failed, sum.Chunks)
	for _, r := range sum.Errors() {
		fmt.Fprintf(w, "  game %d: %v\n", r.ID(), r.Err())
	}
	if sum.Interrupted {
		fmt.Fprintln(w, "interrupted: remaining chunks were not processed")
	}
}

func printStats(w io.Writer, st batchuc.Stats) {
	coverage := 0.0
	if st.Total > 0 {
		coverage = float64(st.Embedded) / float64(st.Total) * 100
	}
	fmt.Fprintf(w, "games:    %d\n", st.Total)
	fmt.Fprintf(w, "embedded: %d (%.1f%%)\n", st.Embedded, coverage)
	fmt.Fprintf(w, "missing:  %d\n", st.Missing())
	fmt.Fprintf(w, "stale:    %d\n", st.Stale)
}
