// Package backfill implements the chunked, resumable embedding backfill:
// pages of catalog videos selected by a stable cursor, bounded concurrent
// embedding calls, and one atomic commit per page.
package backfill

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/syncline/likesync/internal/embedding"
	"github.com/syncline/likesync/internal/store"
	"github.com/syncline/likesync/internal/types"
)

// Store is the persistence surface the scheduler consumes.
type Store interface {
	GetEmbeddingPage(ctx context.Context, cursor string, limit int) ([]types.Video, error)
	ApplyEmbeddingResults(ctx context.Context, results []store.EmbeddingResult) error
}

// PageResult summarizes one processed page. When HasMore is true the sweep
// must be continued from NextCursor.
type PageResult struct {
	Processed  int
	Skipped    int
	Failed     int
	HasMore    bool
	NextCursor string
}

// Scheduler processes embedding generation in bounded chunks. Each page is
// small enough to finish well inside an invocation time budget; a full
// page signals that a continuation must be scheduled.
type Scheduler struct {
	store       Store
	embedder    embedding.Embedder
	pageSize    int
	concurrency int
}

// NewScheduler creates a backfill scheduler.
func NewScheduler(s Store, e embedding.Embedder, pageSize, concurrency int) *Scheduler {
	if pageSize <= 0 {
		pageSize = 25
	}
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Scheduler{
		store:       s,
		embedder:    e,
		pageSize:    pageSize,
		concurrency: concurrency,
	}
}

// ProcessPage processes one page of the sweep starting after cursor.
// Videos that already carry a valid embedding are skipped; the rest are
// fanned out to a bounded worker pool, and every outcome — success or
// failure — is appended to one shared batch committed once after all
// workers resolve. A per-video embedding failure is recorded on the video
// and is never fatal to the page.
func (s *Scheduler) ProcessPage(ctx context.Context, cursor string) (*PageResult, error) {
	videos, err := s.store.GetEmbeddingPage(ctx, cursor, s.pageSize)
	if err != nil {
		return nil, err
	}

	if len(videos) == 0 {
		return &PageResult{}, nil
	}

	result := &PageResult{
		HasMore:    len(videos) == s.pageSize,
		NextCursor: videos[len(videos)-1].VideoID,
	}

	// Idempotency guard: every entry point re-checks validity, so
	// duplicate triggers are no-ops.
	dims := s.embedder.Dimensions()
	var toProcess []types.Video
	for _, v := range videos {
		if v.EmbeddingStatus == types.EmbeddingComplete && v.HasValidEmbedding(dims) {
			result.Skipped++
			continue
		}
		toProcess = append(toProcess, v)
	}

	if len(toProcess) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	results := make([]store.EmbeddingResult, 0, len(toProcess))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, video := range toProcess {
		v := video
		g.Go(func() error {
			input := embedding.BuildInput(v.Title, v.ChannelTitle, v.Description)
			vector, err := s.embedder.Embed(gctx, input)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("embedding failed",
					"component", "backfill",
					"video_id", v.VideoID,
					"error", err,
				)
				results = append(results, store.EmbeddingResult{VideoID: v.VideoID, Err: err.Error()})
				return nil
			}
			results = append(results, store.EmbeddingResult{VideoID: v.VideoID, Embedding: vector})
			return nil
		})
	}
	// Workers record their own failures; Wait only observes ctx errors
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.store.ApplyEmbeddingResults(ctx, results); err != nil {
		return nil, err
	}

	for _, res := range results {
		if res.Err != "" {
			result.Failed++
		} else {
			result.Processed++
		}
	}

	slog.Info("backfill page processed",
		"component", "backfill",
		"processed", result.Processed,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"has_more", result.HasMore,
	)

	return result, nil
}
