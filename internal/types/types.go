package types

import "time"

// VideoCategory classifies videos whose real metadata is unobtainable or
// that originate from the legacy music catalog. Public videos carry no
// category.
type VideoCategory string

const (
	CategoryPrivate       VideoCategory = "private"
	CategoryDeleted       VideoCategory = "deleted"
	CategoryLegacyCatalog VideoCategory = "legacy_catalog"
)

// EmbeddingStatus tracks the embedding lifecycle of a video.
type EmbeddingStatus string

const (
	EmbeddingUnset    EmbeddingStatus = ""
	EmbeddingPending  EmbeddingStatus = "pending"
	EmbeddingComplete EmbeddingStatus = "complete"
	EmbeddingFailed   EmbeddingStatus = "failed"
)

// Video is a media unit in the public catalog. It is created on first
// sighting by any user and never duplicated; the video ID is the natural
// key. Metadata and category are write-once at first sight — only the
// embedding fields are updated afterwards.
type Video struct {
	VideoID         string          `json:"video_id"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	ChannelTitle    string          `json:"channel_title,omitempty"`
	ThumbnailURL    string          `json:"thumbnail_url,omitempty"`
	PublishedAt     *time.Time      `json:"published_at,omitempty"`
	Source          string          `json:"source"`
	SyncedAt        time.Time       `json:"synced_at"`
	Category        VideoCategory   `json:"category,omitempty"`
	Embedding       []byte          `json:"-"`
	EmbeddingStatus EmbeddingStatus `json:"embedding_status,omitempty"`
	EmbeddingError  string          `json:"embedding_error,omitempty"`
}

// HasValidEmbedding reports whether the stored embedding is a well-formed
// float32 vector of exactly dims elements. A missing blob, a blob whose
// length is not a multiple of 4, or a wrong-length vector all report false.
func (v Video) HasValidEmbedding(dims int) bool {
	if len(v.Embedding) == 0 {
		return false
	}
	if len(v.Embedding)%4 != 0 {
		return false
	}
	return len(v.Embedding)/4 == dims
}

// LikedVideo is the ownership edge from a user to a catalog video.
// LikedAt is the source-of-truth timestamp from the provider; SyncedAt is
// refreshed on every reconciliation that still observes the like.
type LikedVideo struct {
	UserID   string    `json:"user_id"`
	VideoID  string    `json:"video_id"`
	LikedAt  time.Time `json:"liked_at"`
	SyncedAt time.Time `json:"synced_at"`
}

// UnlikedVideo is the append-only historical record replacing a removed
// LikedVideo edge.
type UnlikedVideo struct {
	UserID          string    `json:"user_id"`
	VideoID         string    `json:"video_id"`
	OriginalLikedAt time.Time `json:"original_liked_at"`
	UnlikedAt       time.Time `json:"unliked_at"`
	Reason          string    `json:"reason,omitempty"`
}

// SyncJobStatus is the lifecycle state of a sync run.
type SyncJobStatus string

const (
	SyncInProgress SyncJobStatus = "in_progress"
	SyncCompleted  SyncJobStatus = "completed"
	SyncFailed     SyncJobStatus = "failed"
)

// SyncJob is the per-user, per-source progress record for a sync run.
// A new run overwrites the prior terminal state.
type SyncJob struct {
	UserID      string        `json:"user_id"`
	Source      string        `json:"source"`
	Status      SyncJobStatus `json:"status"`
	TotalCount  int           `json:"total_count"`
	SyncedCount int           `json:"synced_count"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// EmbeddingProgress aggregates embedding state across a user's liked videos.
type EmbeddingProgress struct {
	UserID    string    `json:"user_id"`
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	Failed    int       `json:"failed"`
	Pending   int       `json:"pending"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LikedItem is one element of the remote liked enumeration: identity, the
// provider's like timestamp, and the provisional title. The title reliably
// distinguishes private, deleted, and legacy-catalog videos even when full
// metadata is unobtainable.
type LikedItem struct {
	VideoID string
	LikedAt time.Time
	Title   string
}

// SyncStats summarizes one reconciliation run.
type SyncStats struct {
	Synced        int `json:"synced"`
	NewlyLiked    int `json:"newly_liked"`
	StillLiked    int `json:"still_liked"`
	NewlyUnliked  int `json:"newly_unliked"`
	Private       int `json:"private"`
	Deleted       int `json:"deleted"`
	LegacyCatalog int `json:"legacy_catalog"`
}

// SyncRequest is the inbound payload for the sync operation.
type SyncRequest struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
}

// RetryEmbeddingsRequest is the inbound payload for the failed-embedding
// retry operation.
type RetryEmbeddingsRequest struct {
	UserID string `json:"user_id"`
}

// RetryEmbeddingsResponse reports how many failed embeddings were reset.
type RetryEmbeddingsResponse struct {
	Reset int64 `json:"reset"`
}

// BackfillResponse is the JSON body returned by the backfill trigger
// endpoint.
type BackfillResponse struct {
	Processed  int    `json:"processed"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
	Batch      int    `json:"batch"`
}

// WaitlistRequest is the inbound payload for waitlist signup.
type WaitlistRequest struct {
	Email string `json:"email"`
}

// WaitlistResponse acknowledges a waitlist signup.
type WaitlistResponse struct {
	Message string `json:"message"`
}

// LikedTotalResponse carries the provider's total liked-video count.
type LikedTotalResponse struct {
	Total int `json:"total"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	EmbeddingModel string `json:"embedding_model"`
	VideoCount     int64  `json:"video_count"`
}
