package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	syncsvc "github.com/kwatson/puttlog/internal/sync"
	"github.com/kwatson/puttlog/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Run one sync cycle against the remote backend",
	Long: `Pull remote changes newer than the local watermark, then push all
locally dirty rounds and courses. Conflicts resolve last-write-wins by
updated_at, ties favoring the remote copy.

Unlike the background daemon, a manual sync reports failure directly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		client, err := newRemote()
		if err != nil {
			return err
		}

		svc := syncsvc.New(s, client, nil, log.New(os.Stderr, "[sync] ", log.LstdFlags))

		fmt.Printf("%s Syncing...\n", ui.RenderAccent("🔄"))
		start := time.Now()

		if err := svc.Sync(ctx); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		status, err := svc.Status(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("%s Sync complete in %v\n", ui.RenderPass("✓"), time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Pending changes: %d\n", status.PendingChanges)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show local database and sync status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		pending, err := s.PendingChanges(ctx)
		if err != nil {
			return err
		}
		watermark, err := s.SyncWatermark(ctx)
		if err != nil {
			return err
		}
		rounds, err := s.GetRounds(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("\n%s\n", ui.RenderHeader("Puttlog Status"))
		fmt.Printf("   User:    %s\n", ui.RenderAccent(s.UserID()))
		fmt.Printf("   Rounds:  %d\n", len(rounds))
		fmt.Printf("   Pending: %d\n", pending)
		if watermark.IsZero() {
			fmt.Printf("   Last sync: %s\n", ui.RenderDim("never"))
		} else {
			fmt.Printf("   Last sync: %s\n", ui.RenderDim(watermark.Local().Format(time.RFC1123)))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
}
