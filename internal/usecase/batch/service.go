package batch

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/gamesub/gamesub/internal/domain"
	dombatch "github.com/gamesub/gamesub/internal/domain/batch"
	"github.com/gamesub/gamesub/internal/domain/game"
	"github.com/gamesub/gamesub/internal/metrics"
	"github.com/gamesub/gamesub/internal/projector"
	gamerepo "github.com/gamesub/gamesub/internal/repository/game"
)

// DefaultBatchSize is the chunk size used when the caller passes 0.
const DefaultBatchSize = 100

// Service regenerates game embeddings in chunks. Each chunk is committed in one transaction,
// so an interrupted or failed run never loses chunks that were already written.
type Service struct {
	embedder   domain.Embedder
	games      gameRepo
	pool       *ants.Pool
	dimensions int
	logger     *zap.Logger
}

// New creates a batch service. workers bounds the per-item fallback concurrency
// (0 means half the CPUs).
func New(embedder domain.Embedder, games gameRepo, dimensions, workers int, logger *zap.Logger) (*Service, error) {
	if workers <= 0 {
		workers = max(1, runtime.NumCPU()/2)
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Service{
		embedder:   embedder,
		games:      games,
		pool:       pool,
		dimensions: dimensions,
		logger:     logger,
	}, nil
}

// Release stops the worker pool. The service must not be used afterwards.
func (s *Service) Release() {
	s.pool.Release()
}

// Backfill embeds every game (or only those without a vector) in chunks of batchSize.
func (s *Service) Backfill(ctx context.Context, onlyMissing bool, batchSize int) (dombatch.Summary, error) {
	load := s.games.All
	if onlyMissing {
		load = s.games.AllWithoutEmbedding
	}
	items, err := load(ctx)
	if err != nil {
		return dombatch.Summary{}, fmt.Errorf("load games: %w", err)
	}
	s.logger.Info("Backfill started",
		zap.Int("games", len(items)),
		zap.Bool("only_missing", onlyMissing),
		zap.Int("batch_size", batchSize),
	)
	return s.Embed(ctx, items, batchSize), nil
}

// RefreshStale re-embeds games whose vector is missing or was computed from an older rendering.
func (s *Service) RefreshStale(ctx context.Context, batchSize int) (dombatch.Summary, error) {
	items, err := s.games.All(ctx)
	if err != nil {
		return dombatch.Summary{}, fmt.Errorf("load games: %w", err)
	}
	stale := make([]*game.Item, 0, len(items))
	for _, it := range items {
		if it.EmbeddingStale(projector.Fingerprint(it)) {
			stale = append(stale, it)
		}
	}
	s.logger.Info("Stale refresh started", zap.Int("games", len(items)), zap.Int("stale", len(stale)))
	return s.Embed(ctx, stale, batchSize), nil
}

// Stats counts catalog coverage.
type Stats struct {
	Total    int
	Embedded int
	// Stale counts embedded games whose rendering changed since.
	Stale int
}

// Missing returns the number of games without a vector.
func (st Stats) Missing() int { return st.Total - st.Embedded }

// Stats reports how much of the catalog is embedded and current.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	items, err := s.games.All(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("load games: %w", err)
	}
	st := Stats{Total: len(items)}
	for _, it := range items {
		if !it.HasEmbedding() {
			continue
		}
		st.Embedded++
		if it.EmbeddingStale(projector.Fingerprint(it)) {
			st.Stale++
		}
	}
	return st, nil
}

// Embed computes and stores vectors for items, chunk by chunk.
// Per-item failures are reported in the summary and never abort the run.
// Cancellation is observed between chunks; a chunk in flight always finishes.
func (s *Service) Embed(ctx context.Context, items []*game.Item, batchSize int) dombatch.Summary {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	sum := dombatch.Summary{Total: len(items), Results: make([]dombatch.Result, 0, len(items))}

	for offset := 0; offset < len(items); offset += batchSize {
		if ctx.Err() != nil {
			sum.Interrupted = true
			s.logger.Warn("Batch interrupted",
				zap.Int("processed", offset),
				zap.Int("total", len(items)),
			)
			break
		}

		chunk := items[offset:min(offset+batchSize, len(items))]
		for _, r := range s.processChunk(context.WithoutCancel(ctx), chunk) {
			sum.Add(r)
			metrics.BatchItemsTotal.WithLabelValues(string(r.Status())).Inc()
		}
		sum.Chunks++
	}

	s.logger.Info("Batch finished",
		zap.Int("total", sum.Total),
		zap.Int("committed", sum.Committed),
		zap.Int("failed", sum.Failed),
		zap.Int("chunks", sum.Chunks),
		zap.Bool("interrupted", sum.Interrupted),
	)
	return sum
}

type prepared struct {
	text string
	vec  []float32
	err  error
}

// processChunk embeds and commits one chunk. Results follow chunk order.
func (s *Service) processChunk(ctx context.Context, chunk []*game.Item) []dombatch.Result {
	work := make([]prepared, len(chunk))
	texts := make([]string, len(chunk))
	for i, it := range chunk {
		texts[i] = projector.Render(it)
		work[i].text = texts[i]
	}

	if !s.embedBatch(ctx, texts, work) {
		s.embedEach(ctx, chunk, work)
	}

	results := make([]dombatch.Result, len(chunk))
	updates := make([]gamerepo.Update, 0, len(chunk))
	pending := make([]int, 0, len(chunk))
	for i, it := range chunk {
		if work[i].err != nil {
			results[i] = dombatch.NewError(it.ID, work[i].err)
			continue
		}
		updates = append(updates, gamerepo.Update{
			ID:          it.ID,
			Vector:      work[i].vec,
			Fingerprint: projector.FingerprintText(work[i].text),
		})
		pending = append(pending, i)
	}

	if err := s.games.UpdateEmbeddings(ctx, updates); err != nil {
		s.logger.Error("Chunk commit failed", zap.Int("items", len(updates)), zap.Error(err))
		for _, i := range pending {
			results[i] = dombatch.NewError(chunk[i].ID, fmt.Errorf("commit: %w", err))
		}
		return results
	}

	for j, i := range pending {
		chunk[i].Embedding = updates[j].Vector
		chunk[i].Fingerprint = updates[j].Fingerprint
		results[i] = dombatch.NewOK(chunk[i].ID)
	}
	return results
}

// embedBatch tries one provider call for the whole chunk. Returns false when the caller
// has to fall back to per-item embedding.
func (s *Service) embedBatch(ctx context.Context, texts []string, work []prepared) bool {
	be, ok := s.embedder.(domain.BatchEmbedder)
	if !ok {
		return false
	}
	res, err := be.BatchEmbed(ctx, texts)
	if err != nil || len(res.Embeddings) != len(texts) {
		s.logger.Warn("Batch embedding failed, isolating items",
			zap.Int("chunk_size", len(texts)),
			zap.Int("vectors", len(res.Embeddings)),
			zap.Error(err),
		)
		return false
	}
	for i, raw := range res.Embeddings {
		work[i].vec, work[i].err = s.vector(raw)
	}
	return true
}

// embedEach embeds items one by one on the worker pool so one bad item cannot fail its neighbours.
func (s *Service) embedEach(ctx context.Context, chunk []*game.Item, work []prepared) {
	var wg sync.WaitGroup
	for i := range chunk {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			res, err := s.embedder.Embed(ctx, work[i].text)
			if err != nil {
				work[i].err = fmt.Errorf("embed game %d: %w", chunk[i].ID, err)
				return
			}
			work[i].vec, work[i].err = s.vector(res.Embedding)
		}
		if err := s.pool.Submit(task); err != nil {
			wg.Done()
			work[i].err = fmt.Errorf("submit: %w", err)
		}
	}
	wg.Wait()
}

func (s *Service) vector(raw []float32) ([]float32, error) {
	if err := domain.CheckDim(raw, s.dimensions); err != nil {
		return nil, err
	}
	return domain.Normalize(raw), nil
}
