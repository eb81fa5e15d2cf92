package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/syncline/likesync/internal/config"
	"github.com/syncline/likesync/internal/reconcile"
	"github.com/syncline/likesync/internal/store"
	"github.com/syncline/likesync/internal/youtube"
)

var (
	syncUserID      string
	syncAccessToken string
	syncJSONOutput  bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one liked-video synchronization without starting the server",
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncUserID, "user", "", "User ID to sync (required)")
	syncCmd.Flags().StringVar(&syncAccessToken, "token", "",
		"OAuth access token (defaults to LIKESYNC_ACCESS_TOKEN)")
	syncCmd.Flags().BoolVar(&syncJSONOutput, "json", false, "Output stats in JSON format")
	syncCmd.MarkFlagRequired("user")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	token := syncAccessToken
	if token == "" {
		token = os.Getenv("LIKESYNC_ACCESS_TOKEN")
	}
	if token == "" {
		return fmt.Errorf("access token required: pass --token or set LIKESYNC_ACCESS_TOKEN")
	}

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

	reconciler := reconcile.New(youtube.NewClient(cfg.YouTube), db)

	start := time.Now()
	stats, err := reconciler.Sync(ctx, syncUserID, token)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	if syncJSONOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Printf("Synced %d videos in %s\n", stats.Synced, time.Since(start).Round(time.Millisecond))
	fmt.Printf("  newly liked:    %d\n", stats.NewlyLiked)
	fmt.Printf("  still liked:    %d\n", stats.StillLiked)
	fmt.Printf("  newly unliked:  %d\n", stats.NewlyUnliked)
	fmt.Printf("  private:        %d\n", stats.Private)
	fmt.Printf("  deleted:        %d\n", stats.Deleted)
	fmt.Printf("  legacy catalog: %d\n", stats.LegacyCatalog)
	return nil
}
