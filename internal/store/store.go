package store

import (
	"context"

	"github.com/syncline/likesync/internal/types"
)

// SyncBatch is the full set of document mutations produced by one
// reconciliation run. The writer commits it as a sequence of all-or-nothing
// sub-batches.
type SyncBatch struct {
	// NewVideos are catalog upserts for first-sighted videos. Existing
	// videos are never overwritten by this path.
	NewVideos []types.Video
	// Liked are relation upserts for newly-liked and still-liked videos.
	// SyncedAt is refreshed; the stored LikedAt is preserved on conflict.
	// A re-like also retires any historical unlike record so the video id
	// lives in at most one relation per user.
	Liked []types.LikedVideo
	// Unliked are relation moves: each inserts an UnlikedVideo record and
	// deletes the corresponding LikedVideo edge atomically.
	Unliked []types.UnlikedVideo
}

// EmbeddingResult is one video's outcome from a backfill page. Either
// Embedding is set (success) or Err carries the failure message.
type EmbeddingResult struct {
	VideoID   string
	Embedding []float32
	Err       string
}

// Store defines the interface contract for all persistence operations.
type Store interface {
	// Reconciliation
	ProbeExistingVideos(ctx context.Context, ids []string) (map[string]struct{}, error)
	GetLikedVideos(ctx context.Context, userID string) ([]types.LikedVideo, error)
	ApplySyncBatch(ctx context.Context, batch SyncBatch) error

	// Sync job tracking
	StartSyncJob(ctx context.Context, userID, source string) error
	SetSyncJobTotal(ctx context.Context, userID, source string, total int) error
	SetSyncJobProgress(ctx context.Context, userID, source string, synced int) error
	CompleteSyncJob(ctx context.Context, userID, source string, synced int) error
	FailSyncJob(ctx context.Context, userID, source, errMsg string) error
	GetSyncJob(ctx context.Context, userID, source string) (*types.SyncJob, error)

	// Embedding backfill
	GetEmbeddingPage(ctx context.Context, cursor string, limit int) ([]types.Video, error)
	ApplyEmbeddingResults(ctx context.Context, results []EmbeddingResult) error
	ResetFailedEmbeddings(ctx context.Context, userID string) (int64, error)
	GetEmbeddingProgress(ctx context.Context, userID string) (*types.EmbeddingProgress, error)

	// Waitlist
	AddToWaitlist(ctx context.Context, email string) (bool, error)

	// Health
	CountVideos(ctx context.Context) (int64, error)

	Close() error
}
