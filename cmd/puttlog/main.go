// Command puttlog is an offline-first putting tracker. Rounds, holes, and
// putts live in a local SQLite database that is always writable; a sync
// service reconciles it with the cloud backend when one is configured.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kwatson/puttlog/internal/identity"
	"github.com/kwatson/puttlog/internal/remote"
	"github.com/kwatson/puttlog/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "puttlog",
	Short: "Offline-first putting tracker with cloud sync",
	Long: `Track putting rounds in a local database that works fully offline.

All writes land locally first and always succeed. When a remote backend is
configured, a two-phase sync (pull then push) reconciles local and cloud
state, resolving conflicts last-write-wins.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default ~/.puttlog/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "path to the local database")

	rootCmd.AddGroup(
		&cobra.Group{ID: "data", Title: "Data commands:"},
		&cobra.Group{ID: "sync", Title: "Sync commands:"},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(configDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PUTTLOG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("db.path", filepath.Join(configDir(), "puttlog.db"))
	viper.SetDefault("legacy.path", filepath.Join(configDir(), "legacy.json"))
	viper.SetDefault("sync.interval", "5m")
	viper.SetDefault("dashboard.port", 7319)
	viper.SetDefault("log.file", "")

	// Missing config file is fine; defaults plus env cover a fresh install.
	_ = viper.ReadInConfig()
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".puttlog")
}

// openStore resolves the current identity and opens the local database
// scoped to it. Caller closes.
func openStore(ctx context.Context) (*store.Store, error) {
	provider := identity.New(identityPath())
	userID, isNew, err := provider.GetOrCreate()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve identity: %w", err)
	}
	if isNew {
		fmt.Fprintf(os.Stderr, "Created new identity %s\n", userID)
	}

	dbPath := viper.GetString("db.path")
	if flagPath, _ := rootCmd.PersistentFlags().GetString("db"); flagPath != "" {
		dbPath = flagPath
	}

	s, err := store.Open(dbPath, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return s, nil
}

func identityPath() string {
	return filepath.Join(configDir(), "identity.json")
}

// newRemote builds the remote client from config, or returns an error
// when no backend is configured.
func newRemote() (*remote.Client, error) {
	baseURL := viper.GetString("remote.url")
	if baseURL == "" {
		return nil, fmt.Errorf("no remote configured (set remote.url or PUTTLOG_REMOTE_URL)")
	}
	return remote.New(baseURL, viper.GetString("remote.key"), nil), nil
}
