package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kwatson/puttlog/internal/migrate"
	"github.com/kwatson/puttlog/internal/ui"
)

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	GroupID: "data",
	Short:   "Import rounds from the legacy single-file format",
	Long: `Import all rounds from the old flat JSON snapshot into the local
database, preserving the original identifiers and timestamps.

The import runs once per database; rerunning is a no-op. A failed import
leaves no completion flag, so the next run retries from the top. Replayed
rounds overwrite by id, making the retry safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		path, _ := cmd.Flags().GetString("file")
		if path == "" {
			path = viper.GetString("legacy.path")
		}

		var opts []migrate.Option
		if backup, _ := cmd.Flags().GetBool("backup"); backup {
			opts = append(opts, migrate.WithBackup())
		}
		opts = append(opts, migrate.WithLogger(log.New(os.Stderr, "[migrate] ", log.LstdFlags)))

		result, err := migrate.NewRunner(s, path, opts...).Run(ctx)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		if result.AlreadyRun {
			fmt.Printf("%s Migration already completed, nothing to do\n", ui.RenderDim("○"))
			return nil
		}
		fmt.Printf("%s Migrated %d legacy rounds\n", ui.RenderPass("✓"), result.Migrated)
		return nil
	},
}

func init() {
	migrateCmd.Flags().String("file", "", "legacy snapshot path (overrides config)")
	migrateCmd.Flags().Bool("backup", false, "copy the legacy file aside after import")
	rootCmd.AddCommand(migrateCmd)
}
