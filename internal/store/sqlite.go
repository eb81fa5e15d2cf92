package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/syncline/likesync/internal/types"
)

const (
	// probeBatchSize bounds IN-list cardinality for existence probes,
	// keeping lookups well under SQLite's bound-variable limit.
	probeBatchSize = 500

	// maxMutationsPerBatch bounds the mutation count of one write
	// transaction. A batch larger than this is split into sequential
	// all-or-nothing sub-batches.
	maxMutationsPerBatch = 500
)

// Compile-time interface check
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore is the SQLite-backed persistence layer.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func packEmbedding(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func unpackEmbedding(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// scanVideo scans a row into a Video, handling nullable columns.
func scanVideo(scanner interface{ Scan(...any) error }) (*types.Video, error) {
	var video types.Video
	var publishedAt, category, embeddingError sql.NullString
	var syncedAt string

	err := scanner.Scan(
		&video.VideoID,
		&video.Title,
		&video.Description,
		&video.ChannelTitle,
		&video.ThumbnailURL,
		&publishedAt,
		&video.Source,
		&syncedAt,
		&category,
		&video.Embedding,
		&video.EmbeddingStatus,
		&embeddingError,
	)
	if err != nil {
		return nil, err
	}

	if t, err := time.Parse(time.RFC3339, syncedAt); err == nil {
		video.SyncedAt = t
	}
	if publishedAt.Valid {
		if t, err := time.Parse(time.RFC3339, publishedAt.String); err == nil {
			video.PublishedAt = &t
		}
	}
	if category.Valid {
		video.Category = types.VideoCategory(category.String)
	}
	if embeddingError.Valid {
		video.EmbeddingError = embeddingError.String
	}

	return &video, nil
}

// ProbeExistingVideos returns the subset of ids already present in the
// public catalog. Lookups are batched to bound IN-list cardinality.
func (s *SQLiteStore) ProbeExistingVideos(ctx context.Context, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(ids))

	for start := 0; start < len(ids); start += probeBatchSize {
		end := start + probeBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		query := fmt.Sprintf(
			"SELECT video_id FROM videos WHERE video_id IN (%s)",
			placeholders(len(batch)),
		)
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("probe existing videos: %w", err)
		}

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan video id: %w", err)
			}
			existing[id] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate rows: %w", err)
		}
		rows.Close()
	}

	return existing, nil
}

// GetLikedVideos returns all liked-video relations for a user.
func (s *SQLiteStore) GetLikedVideos(ctx context.Context, userID string) ([]types.LikedVideo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, video_id, liked_at, synced_at
		FROM liked_videos
		WHERE user_id = ?
		ORDER BY video_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query liked videos: %w", err)
	}
	defer rows.Close()

	var liked []types.LikedVideo
	for rows.Next() {
		var lv types.LikedVideo
		var likedAt, syncedAt string
		if err := rows.Scan(&lv.UserID, &lv.VideoID, &likedAt, &syncedAt); err != nil {
			return nil, fmt.Errorf("scan liked video: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, likedAt); err == nil {
			lv.LikedAt = t
		}
		if t, err := time.Parse(time.RFC3339, syncedAt); err == nil {
			lv.SyncedAt = t
		}
		liked = append(liked, lv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return liked, nil
}

// mutation is one document write with a weight counting toward the
// per-transaction mutation budget. Relation moves weigh 2 (insert +
// delete) and never straddle a transaction boundary.
type mutation struct {
	weight int
	apply  func(ctx context.Context, tx *sql.Tx) error
}

// ApplySyncBatch commits all mutations of a reconciliation run. When the
// total mutation count exceeds the per-transaction budget the batch is
// split into sequential sub-batches, each independently all-or-nothing.
func (s *SQLiteStore) ApplySyncBatch(ctx context.Context, batch SyncBatch) error {
	muts := make([]mutation, 0, len(batch.NewVideos)+len(batch.Liked)+len(batch.Unliked))

	for _, video := range batch.NewVideos {
		v := video
		muts = append(muts, mutation{weight: 1, apply: func(ctx context.Context, tx *sql.Tx) error {
			var publishedAt any
			if v.PublishedAt != nil {
				publishedAt = v.PublishedAt.UTC().Format(time.RFC3339)
			}
			var category any
			if v.Category != "" {
				category = string(v.Category)
			}
			// Write-once: an already-present video is never overwritten
			_, err := tx.ExecContext(ctx, `
				INSERT INTO videos (video_id, title, description, channel_title, thumbnail_url,
					published_at, source, synced_at, category, embedding_status)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(video_id) DO NOTHING
			`, v.VideoID, v.Title, v.Description, v.ChannelTitle, v.ThumbnailURL,
				publishedAt, v.Source, v.SyncedAt.UTC().Format(time.RFC3339), category, string(v.EmbeddingStatus))
			return err
		}})
	}

	for _, liked := range batch.Liked {
		lv := liked
		muts = append(muts, mutation{weight: 2, apply: func(ctx context.Context, tx *sql.Tx) error {
			// A re-like retires the historical unlike record: a video id
			// lives in at most one relation per user
			_, err := tx.ExecContext(ctx, `
				DELETE FROM unliked_videos WHERE user_id = ? AND video_id = ?
			`, lv.UserID, lv.VideoID)
			if err != nil {
				return err
			}
			// Preserve the stored liked_at; only synced_at is refreshed
			_, err = tx.ExecContext(ctx, `
				INSERT INTO liked_videos (user_id, video_id, liked_at, synced_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(user_id, video_id) DO UPDATE SET synced_at = excluded.synced_at
			`, lv.UserID, lv.VideoID, lv.LikedAt.UTC().Format(time.RFC3339), lv.SyncedAt.UTC().Format(time.RFC3339))
			return err
		}})
	}

	for _, unliked := range batch.Unliked {
		uv := unliked
		muts = append(muts, mutation{weight: 2, apply: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO unliked_videos (user_id, video_id, original_liked_at, unliked_at, reason)
				VALUES (?, ?, ?, ?, ?)
			`, uv.UserID, uv.VideoID, uv.OriginalLikedAt.UTC().Format(time.RFC3339),
				uv.UnlikedAt.UTC().Format(time.RFC3339), uv.Reason)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				DELETE FROM liked_videos WHERE user_id = ? AND video_id = ?
			`, uv.UserID, uv.VideoID)
			return err
		}})
	}

	for start := 0; start < len(muts); {
		end := start
		weight := 0
		for end < len(muts) && weight+muts[end].weight <= maxMutationsPerBatch {
			weight += muts[end].weight
			end++
		}
		if end == start {
			end = start + 1 // single mutation over budget; commit it alone
		}

		if err := s.applyMutationsTx(ctx, muts[start:end]); err != nil {
			return err
		}
		start = end
	}

	return nil
}

func (s *SQLiteStore) applyMutationsTx(ctx context.Context, muts []mutation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range muts {
		if err := m.apply(ctx, tx); err != nil {
			return fmt.Errorf("apply mutation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// StartSyncJob creates or replaces the user's sync job record in the
// in_progress state with zero counts.
func (s *SQLiteStore) StartSyncJob(ctx context.Context, userID, source string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sync_jobs (user_id, source, status, total_count, synced_count, started_at, completed_at, error)
		VALUES (?, ?, ?, 0, 0, ?, NULL, NULL)
	`, userID, source, string(types.SyncInProgress), now)
	if err != nil {
		return fmt.Errorf("start sync job: %w", err)
	}
	return nil
}

// SetSyncJobTotal records the true remote item count once known.
func (s *SQLiteStore) SetSyncJobTotal(ctx context.Context, userID, source string, total int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_jobs SET total_count = ? WHERE user_id = ? AND source = ?
	`, total, userID, source)
	if err != nil {
		return fmt.Errorf("set sync job total: %w", err)
	}
	return nil
}

// SetSyncJobProgress records how many items have been synced so far.
func (s *SQLiteStore) SetSyncJobProgress(ctx context.Context, userID, source string, synced int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_jobs SET synced_count = ? WHERE user_id = ? AND source = ?
	`, synced, userID, source)
	if err != nil {
		return fmt.Errorf("set sync job progress: %w", err)
	}
	return nil
}

// CompleteSyncJob finalizes the job as completed.
func (s *SQLiteStore) CompleteSyncJob(ctx context.Context, userID, source string, synced int) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_jobs SET status = ?, synced_count = ?, completed_at = ?
		WHERE user_id = ? AND source = ?
	`, string(types.SyncCompleted), synced, now, userID, source)
	if err != nil {
		return fmt.Errorf("complete sync job: %w", err)
	}
	return nil
}

// FailSyncJob finalizes the job as failed with the error message.
func (s *SQLiteStore) FailSyncJob(ctx context.Context, userID, source, errMsg string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_jobs SET status = ?, completed_at = ?, error = ?
		WHERE user_id = ? AND source = ?
	`, string(types.SyncFailed), now, errMsg, userID, source)
	if err != nil {
		return fmt.Errorf("fail sync job: %w", err)
	}
	return nil
}

// GetSyncJob returns the user's sync job record for a source.
func (s *SQLiteStore) GetSyncJob(ctx context.Context, userID, source string) (*types.SyncJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, source, status, total_count, synced_count, started_at, completed_at, error
		FROM sync_jobs
		WHERE user_id = ? AND source = ?
	`, userID, source)

	var job types.SyncJob
	var startedAt string
	var completedAt, errMsg sql.NullString
	err := row.Scan(&job.UserID, &job.Source, &job.Status, &job.TotalCount, &job.SyncedCount, &startedAt, &completedAt, &errMsg)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan sync job: %w", err)
	}

	if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
		job.StartedAt = t
	}
	if completedAt.Valid {
		if t, err := time.Parse(time.RFC3339, completedAt.String); err == nil {
			job.CompletedAt = &t
		}
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}

	return &job, nil
}

// GetEmbeddingPage returns up to limit videos ordered by video ID,
// starting strictly after the cursor. An empty cursor starts from the
// beginning of the catalog.
func (s *SQLiteStore) GetEmbeddingPage(ctx context.Context, cursor string, limit int) ([]types.Video, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT video_id, title, description, channel_title, thumbnail_url,
		       published_at, source, synced_at, category, embedding, embedding_status, embedding_error
		FROM videos
		WHERE video_id > ?
		ORDER BY video_id
		LIMIT ?
	`, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("query embedding page: %w", err)
	}
	defer rows.Close()

	var videos []types.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, *video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return videos, nil
}

// ApplyEmbeddingResults commits a backfill page's outcomes as one
// transaction and recomputes embedding progress for every user who likes
// an affected video.
func (s *SQLiteStore) ApplyEmbeddingResults(ctx context.Context, results []EmbeddingResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, res := range results {
		if res.Err == "" {
			_, err = tx.ExecContext(ctx, `
				UPDATE videos
				SET embedding = ?, embedding_status = ?, embedding_error = NULL
				WHERE video_id = ?
			`, packEmbedding(res.Embedding), string(types.EmbeddingComplete), res.VideoID)
		} else {
			_, err = tx.ExecContext(ctx, `
				UPDATE videos
				SET embedding_status = ?, embedding_error = ?
				WHERE video_id = ?
			`, string(types.EmbeddingFailed), res.Err, res.VideoID)
		}
		if err != nil {
			return fmt.Errorf("update embedding for %s: %w", res.VideoID, err)
		}
	}

	userIDs, err := affectedUsersTx(ctx, tx, results)
	if err != nil {
		return err
	}
	if err := recomputeProgressTx(ctx, tx, userIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// affectedUsersTx finds every user holding a live like on any of the
// updated videos.
func affectedUsersTx(ctx context.Context, tx *sql.Tx, results []EmbeddingResult) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT user_id FROM liked_videos WHERE video_id IN (%s)
	`, placeholders(len(results)))
	args := make([]any, len(results))
	for i, res := range results {
		args[i] = res.VideoID
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query affected users: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		userIDs = append(userIDs, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return userIDs, nil
}

// recomputeProgressTx rebuilds the per-user embedding progress aggregate
// from the user's liked videos.
func recomputeProgressTx(ctx context.Context, tx *sql.Tx, userIDs []string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	for _, userID := range userIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO embedding_progress (user_id, total, completed, failed, pending, updated_at)
			SELECT ?,
			       COUNT(*),
			       COALESCE(SUM(CASE WHEN v.embedding_status = 'complete' THEN 1 ELSE 0 END), 0),
			       COALESCE(SUM(CASE WHEN v.embedding_status = 'failed' THEN 1 ELSE 0 END), 0),
			       COALESCE(SUM(CASE WHEN v.embedding_status IN ('', 'pending') THEN 1 ELSE 0 END), 0),
			       ?
			FROM liked_videos lv
			JOIN videos v ON v.video_id = lv.video_id
			WHERE lv.user_id = ?
			ON CONFLICT(user_id) DO UPDATE SET
				total = excluded.total,
				completed = excluded.completed,
				failed = excluded.failed,
				pending = excluded.pending,
				updated_at = excluded.updated_at
		`, userID, now, userID)
		if err != nil {
			return fmt.Errorf("recompute progress for %s: %w", userID, err)
		}
	}
	return nil
}

// ResetFailedEmbeddings moves every failed embedding among the user's
// liked videos back to pending and returns the count reset.
func (s *SQLiteStore) ResetFailedEmbeddings(ctx context.Context, userID string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE videos
		SET embedding_status = ?, embedding_error = NULL
		WHERE embedding_status = ?
		  AND video_id IN (SELECT video_id FROM liked_videos WHERE user_id = ?)
	`, string(types.EmbeddingPending), string(types.EmbeddingFailed), userID)
	if err != nil {
		return 0, fmt.Errorf("reset failed embeddings: %w", err)
	}

	reset, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	if reset > 0 {
		if err := recomputeProgressTx(ctx, tx, []string{userID}); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return reset, nil
}

// GetEmbeddingProgress returns the user's embedding progress aggregate.
func (s *SQLiteStore) GetEmbeddingProgress(ctx context.Context, userID string) (*types.EmbeddingProgress, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, total, completed, failed, pending, updated_at
		FROM embedding_progress
		WHERE user_id = ?
	`, userID)

	var progress types.EmbeddingProgress
	var updatedAt string
	err := row.Scan(&progress.UserID, &progress.Total, &progress.Completed, &progress.Failed, &progress.Pending, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan embedding progress: %w", err)
	}

	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		progress.UpdatedAt = t
	}

	return &progress, nil
}

// AddToWaitlist records an email on the waitlist. Returns false when the
// email is already present. The conflict clause makes concurrent signups
// for the same email race-free: exactly one insert wins.
func (s *SQLiteStore) AddToWaitlist(ctx context.Context, email string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO waitlist (id, email, created_at) VALUES (?, ?, ?)
		ON CONFLICT(email) DO NOTHING
	`, ulid.Make().String(), email, now)
	if err != nil {
		return false, fmt.Errorf("insert waitlist entry: %w", err)
	}

	added, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return added > 0, nil
}

// CountVideos returns the number of videos in the public catalog.
func (s *SQLiteStore) CountVideos(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM videos").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count videos: %w", err)
	}
	return count, nil
}
