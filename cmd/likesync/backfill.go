package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/syncline/likesync/internal/backfill"
	"github.com/syncline/likesync/internal/config"
	"github.com/syncline/likesync/internal/embedding"
	"github.com/syncline/likesync/internal/store"
)

var (
	backfillCursor   string
	backfillMaxPages int
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Run the embedding backfill to completion without starting the server",
	RunE:  runBackfill,
}

func init() {
	backfillCmd.Flags().StringVar(&backfillCursor, "cursor", "",
		"Resume from this video ID (exclusive)")
	backfillCmd.Flags().IntVar(&backfillMaxPages, "max-pages", 0,
		"Stop after this many pages (0 = run until done)")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	embedder := embedding.NewOpenAI(
		cfg.Embedding.APIKey,
		cfg.Embedding.Model,
		cfg.Embedding.Dimensions,
		time.Duration(cfg.Embedding.RequestTimeout),
	)
	scheduler := backfill.NewScheduler(db, embedder,
		cfg.Backfill.PageSize, cfg.Backfill.Concurrency)

	cursor := backfillCursor
	var processed, skipped, failed, pages int
	for {
		result, err := scheduler.ProcessPage(ctx, cursor)
		if err != nil {
			// The cursor lets an operator resume where this run stopped
			return fmt.Errorf("backfill page failed at cursor %q: %w", cursor, err)
		}

		processed += result.Processed
		skipped += result.Skipped
		failed += result.Failed
		pages++

		if !result.HasMore {
			break
		}
		if backfillMaxPages > 0 && pages >= backfillMaxPages {
			fmt.Printf("Stopped after %d pages; resume with --cursor %s\n",
				pages, result.NextCursor)
			break
		}
		cursor = result.NextCursor
	}

	fmt.Printf("Backfill complete: %d pages, %d processed, %d skipped, %d failed\n",
		pages, processed, skipped, failed)
	return nil
}
