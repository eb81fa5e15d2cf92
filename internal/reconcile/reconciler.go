// Package reconcile implements the differential synchronization engine:
// fetch the remote liked set, diff it against persisted state, classify
// and persist the result atomically, and track run progress.
package reconcile

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/syncline/likesync/internal/store"
	"github.com/syncline/likesync/internal/syncerr"
	"github.com/syncline/likesync/internal/types"
)

// Source is the sync source tag recorded on jobs and catalog entries.
const Source = "youtube"

// unlikeReason is recorded on relation moves when the remote set no longer
// contains the video.
const unlikeReason = "no_longer_liked"

// RemoteCatalog is the provider surface the reconciler consumes.
type RemoteCatalog interface {
	FetchLikedItems(ctx context.Context, accessToken string) ([]types.LikedItem, error)
	FetchVideoMetadata(ctx context.Context, accessToken string, ids []string) ([]types.Video, error)
}

// Store is the persistence surface the reconciler consumes.
type Store interface {
	ProbeExistingVideos(ctx context.Context, ids []string) (map[string]struct{}, error)
	GetLikedVideos(ctx context.Context, userID string) ([]types.LikedVideo, error)
	ApplySyncBatch(ctx context.Context, batch store.SyncBatch) error
	StartSyncJob(ctx context.Context, userID, source string) error
	SetSyncJobTotal(ctx context.Context, userID, source string, total int) error
	SetSyncJobProgress(ctx context.Context, userID, source string, synced int) error
	CompleteSyncJob(ctx context.Context, userID, source string, synced int) error
	FailSyncJob(ctx context.Context, userID, source, errMsg string) error
}

// Reconciler drives one differential sync run per user. Runs for distinct
// users may execute concurrently; a single run is sequential.
type Reconciler struct {
	catalog RemoteCatalog
	store   Store
	now     func() time.Time
}

// New creates a Reconciler.
func New(catalog RemoteCatalog, s Store) *Reconciler {
	return &Reconciler{
		catalog: catalog,
		store:   s,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// diff is the three-way set difference between the remote liked set and
// the persisted relation set.
type diff struct {
	newlyLiked   []string
	stillLiked   []string
	newlyUnliked []string
}

// computeDiff partitions R.ids ∪ L.ids into newly liked, still liked, and
// newly unliked. Output is sorted for deterministic persistence order.
func computeDiff(remote map[string]types.LikedItem, local map[string]types.LikedVideo) diff {
	var d diff
	for id := range remote {
		if _, ok := local[id]; ok {
			d.stillLiked = append(d.stillLiked, id)
		} else {
			d.newlyLiked = append(d.newlyLiked, id)
		}
	}
	for id := range local {
		if _, ok := remote[id]; !ok {
			d.newlyUnliked = append(d.newlyUnliked, id)
		}
	}
	sort.Strings(d.newlyLiked)
	sort.Strings(d.stillLiked)
	sort.Strings(d.newlyUnliked)
	return d
}

// Sync runs one full reconciliation for the user. On any failure after the
// job record is created, the job is finalized as failed (best-effort) and
// the error is returned.
func (r *Reconciler) Sync(ctx context.Context, userID, accessToken string) (*types.SyncStats, error) {
	if err := r.store.StartSyncJob(ctx, userID, Source); err != nil {
		return nil, syncerr.Wrap(err, syncerr.CodeStorage, "start sync job")
	}

	stats, err := r.sync(ctx, userID, accessToken)
	if err != nil {
		// Best-effort terminal write; its own failure is logged, not raised
		if failErr := r.store.FailSyncJob(ctx, userID, Source, err.Error()); failErr != nil {
			slog.Error("failed to mark sync job failed",
				"component", "reconcile",
				"user_id", userID,
				"error", failErr,
			)
		}
		return nil, err
	}

	return stats, nil
}

func (r *Reconciler) sync(ctx context.Context, userID, accessToken string) (*types.SyncStats, error) {
	// 1. Complete remote liked set; any page failure aborts the run
	items, err := r.catalog.FetchLikedItems(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	remote := make(map[string]types.LikedItem, len(items))
	for _, item := range items {
		remote[item.VideoID] = item
	}

	if err := r.store.SetSyncJobTotal(ctx, userID, Source, len(remote)); err != nil {
		return nil, syncerr.Wrap(err, syncerr.CodeStorage, "set sync job total")
	}

	// 2. Complete persisted relation set
	likedRows, err := r.store.GetLikedVideos(ctx, userID)
	if err != nil {
		return nil, syncerr.Wrap(err, syncerr.CodeStorage, "load liked videos")
	}
	local := make(map[string]types.LikedVideo, len(likedRows))
	for _, lv := range likedRows {
		local[lv.VideoID] = lv
	}

	// 3. Three-way diff
	d := computeDiff(remote, local)

	// 4. Which remote ids are absent from the catalog. Fail-safe: on a
	// storage error treat everything as new — duplicate writes are
	// idempotent, missed writes are not.
	remoteIDs := make([]string, 0, len(remote))
	for id := range remote {
		remoteIDs = append(remoteIDs, id)
	}
	sort.Strings(remoteIDs)

	existing, err := r.store.ProbeExistingVideos(ctx, remoteIDs)
	if err != nil {
		slog.Warn("existence probe failed, treating all videos as new",
			"component", "reconcile",
			"user_id", userID,
			"error", err,
		)
		existing = map[string]struct{}{}
	}

	var needsMetadata []string
	for _, id := range remoteIDs {
		if _, ok := existing[id]; !ok {
			needsMetadata = append(needsMetadata, id)
		}
	}

	// 5. Best-effort metadata fetch; failed batches are simply absent
	fetched := make(map[string]types.Video)
	if len(needsMetadata) > 0 {
		videos, err := r.catalog.FetchVideoMetadata(ctx, accessToken, needsMetadata)
		if err != nil {
			return nil, err
		}
		for _, v := range videos {
			fetched[v.VideoID] = v
		}
	}

	if err := r.store.SetSyncJobProgress(ctx, userID, Source, len(d.newlyLiked)+len(d.stillLiked)); err != nil {
		return nil, syncerr.Wrap(err, syncerr.CodeStorage, "set sync job progress")
	}

	// 6-7. Real metadata where available, classified placeholders elsewhere
	now := r.now()
	stats := &types.SyncStats{
		Synced:       len(remote),
		NewlyLiked:   len(d.newlyLiked),
		StillLiked:   len(d.stillLiked),
		NewlyUnliked: len(d.newlyUnliked),
	}

	var newVideos []types.Video
	for _, id := range needsMetadata {
		video, ok := fetched[id]
		if !ok {
			video = r.placeholderVideo(remote[id], now)
		}
		video.Category = Classify(video.Title, video.ChannelTitle)
		switch video.Category {
		case types.CategoryPrivate:
			stats.Private++
		case types.CategoryDeleted:
			stats.Deleted++
		case types.CategoryLegacyCatalog:
			stats.LegacyCatalog++
		}
		newVideos = append(newVideos, video)
	}

	// Relation upserts refresh syncedAt and preserve authoritative likedAt
	batch := store.SyncBatch{NewVideos: newVideos}
	for _, id := range append(append([]string{}, d.newlyLiked...), d.stillLiked...) {
		batch.Liked = append(batch.Liked, types.LikedVideo{
			UserID:   userID,
			VideoID:  id,
			LikedAt:  remote[id].LikedAt,
			SyncedAt: now,
		})
	}
	for _, id := range d.newlyUnliked {
		batch.Unliked = append(batch.Unliked, types.UnlikedVideo{
			UserID:          userID,
			VideoID:         id,
			OriginalLikedAt: local[id].LikedAt,
			UnlikedAt:       now,
			Reason:          unlikeReason,
		})
	}

	if err := r.store.ApplySyncBatch(ctx, batch); err != nil {
		return nil, syncerr.Wrap(err, syncerr.CodeStorage, "apply sync batch")
	}

	// Finalized only after the writer's commit succeeded
	if err := r.store.CompleteSyncJob(ctx, userID, Source, len(remote)); err != nil {
		return nil, syncerr.Wrap(err, syncerr.CodeStorage, "complete sync job")
	}

	slog.Info("sync completed",
		"component", "reconcile",
		"user_id", userID,
		"synced", stats.Synced,
		"newly_liked", stats.NewlyLiked,
		"still_liked", stats.StillLiked,
		"newly_unliked", stats.NewlyUnliked,
	)

	return stats, nil
}

// placeholderVideo synthesizes a catalog entry for a video whose metadata
// is unobtainable, carrying the provider-supplied provisional title.
func (r *Reconciler) placeholderVideo(item types.LikedItem, now time.Time) types.Video {
	category := Classify(item.Title, "")
	return types.Video{
		VideoID:         item.VideoID,
		Title:           item.Title,
		Description:     placeholderDescription(category),
		Source:          Source,
		SyncedAt:        now,
		EmbeddingStatus: types.EmbeddingPending,
	}
}
