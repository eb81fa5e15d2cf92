package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/syncline/likesync/internal/backfill"
	"github.com/syncline/likesync/internal/reconcile"
	"github.com/syncline/likesync/internal/store"
	"github.com/syncline/likesync/internal/types"
	"github.com/syncline/likesync/internal/validation"
)

// Syncer runs one reconciliation for a user.
type Syncer interface {
	Sync(ctx context.Context, userID, accessToken string) (*types.SyncStats, error)
}

// BackfillRunner processes one backfill page.
type BackfillRunner interface {
	ProcessPage(ctx context.Context, cursor string) (*backfill.PageResult, error)
}

// LikedTotalFetcher returns the provider's total liked-video count.
type LikedTotalFetcher interface {
	FetchLikedTotal(ctx context.Context, accessToken string) (int, error)
}

// Handler implements the API handlers.
type Handler struct {
	store          store.Store
	syncer         Syncer
	runner         BackfillRunner
	queue          backfill.Queue
	totals         LikedTotalFetcher
	embeddingModel string
	apiKey         string
	backfillSecret string
	version        string
}

// NewHandler creates a Handler wiring all collaborators.
func NewHandler(
	s store.Store,
	syncer Syncer,
	runner BackfillRunner,
	queue backfill.Queue,
	totals LikedTotalFetcher,
	embeddingModel, apiKey, backfillSecret, version string,
) *Handler {
	return &Handler{
		store:          s,
		syncer:         syncer,
		runner:         runner,
		queue:          queue,
		totals:         totals,
		embeddingModel: embeddingModel,
		apiKey:         apiKey,
		backfillSecret: backfillSecret,
		version:        version,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Health returns the health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.CountVideos(r.Context())
	if err != nil {
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, types.HealthResponse{
		Status:         "healthy",
		Version:        h.version,
		EmbeddingModel: h.embeddingModel,
		VideoCount:     count,
	})
}

// Sync handles POST /api/v1/sync.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	var req types.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateSyncRequest(req.AccessToken, req.UserID); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	stats, err := h.syncer.Sync(r.Context(), req.UserID, req.AccessToken)
	if err != nil {
		slog.Error("sync failed", "user_id", req.UserID, "error", err)
		MapError(w, r, err)
		return
	}

	writeJSON(w, stats)
}

// RetryEmbeddings handles POST /api/v1/embeddings/retry. It resets every
// failed embedding among the user's liked videos back to pending.
func (h *Handler) RetryEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req types.RetryEmbeddingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("user_id", req.UserID))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	reset, err := h.store.ResetFailedEmbeddings(r.Context(), req.UserID)
	if err != nil {
		slog.Error("retry embeddings failed", "user_id", req.UserID, "error", err)
		MapError(w, r, err)
		return
	}

	writeJSON(w, types.RetryEmbeddingsResponse{Reset: reset})
}

// Backfill handles POST /api/v1/backfill. The endpoint is protected by a
// shared-secret query parameter and carries an optional resumption cursor
// plus a batch counter. When the processed page was full, a continuation
// task is enqueued; if that fails, the next cursor is still returned so
// an operator can resume manually.
func (h *Handler) Backfill(w http.ResponseWriter, r *http.Request) {
	if !constantTimeEqual(r.URL.Query().Get("secret"), h.backfillSecret) {
		slog.Warn("backfill auth failure", "remote_ip", r.RemoteAddr)
		WriteProblem(w, r, http.StatusUnauthorized, "Missing or invalid secret")
		return
	}

	cursor := r.URL.Query().Get("cursor")
	batch := 0
	if v := r.URL.Query().Get("batch"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			WriteProblem(w, r, http.StatusBadRequest, "batch must be a non-negative integer")
			return
		}
		batch = n
	}

	result, err := h.runner.ProcessPage(r.Context(), cursor)
	if err != nil {
		slog.Error("backfill page failed", "cursor", cursor, "batch", batch, "error", err)
		MapError(w, r, err)
		return
	}

	if result.HasMore {
		task := backfill.Task{Cursor: result.NextCursor, Batch: batch + 1}
		if err := h.queue.Enqueue(task); err != nil {
			slog.Error("backfill continuation not scheduled, resume manually",
				"resume_cursor", task.Cursor,
				"batch", task.Batch,
				"error", err,
			)
		}
	}

	writeJSON(w, types.BackfillResponse{
		Processed:  result.Processed,
		Skipped:    result.Skipped,
		Failed:     result.Failed,
		HasMore:    result.HasMore,
		NextCursor: result.NextCursor,
		Batch:      batch,
	})
}

// SyncStatus handles GET /api/v1/sync/status.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		WriteProblem(w, r, http.StatusBadRequest, "user_id is required")
		return
	}

	job, err := h.store.GetSyncJob(r.Context(), userID, reconcile.Source)
	if err != nil {
		MapError(w, r, err)
		return
	}

	writeJSON(w, job)
}

// EmbeddingProgress handles GET /api/v1/embeddings/progress.
func (h *Handler) EmbeddingProgress(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		WriteProblem(w, r, http.StatusBadRequest, "user_id is required")
		return
	}

	progress, err := h.store.GetEmbeddingProgress(r.Context(), userID)
	if err != nil {
		MapError(w, r, err)
		return
	}

	writeJSON(w, progress)
}

// LikedTotal handles POST /api/v1/liked/total.
func (h *Handler) LikedTotal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}
	if req.AccessToken == "" {
		WriteProblem(w, r, http.StatusBadRequest, "access_token is required")
		return
	}

	total, err := h.totals.FetchLikedTotal(r.Context(), req.AccessToken)
	if err != nil {
		slog.Error("liked total fetch failed", "error", err)
		MapError(w, r, err)
		return
	}

	writeJSON(w, types.LikedTotalResponse{Total: total})
}

// Waitlist handles POST /api/v1/waitlist.
func (h *Handler) Waitlist(w http.ResponseWriter, r *http.Request) {
	var req types.WaitlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("email", req.Email))
	if req.Email != "" {
		c.Add(validation.ValidateEmail("email", req.Email))
	}
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	added, err := h.store.AddToWaitlist(r.Context(), req.Email)
	if err != nil {
		slog.Error("waitlist signup failed", "error", err)
		WriteProblem(w, r, http.StatusInternalServerError, "An error occurred while adding to the waitlist")
		return
	}

	msg := fmt.Sprintf("Successfully added %s to the waitlist!", req.Email)
	if !added {
		msg = fmt.Sprintf("%s is already on our waitlist.", req.Email)
	}
	writeJSON(w, types.WaitlistResponse{Message: msg})
}
