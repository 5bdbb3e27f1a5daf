package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kwatson/puttlog/internal/dashboard"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "sync",
	Short:   "Run the sync dashboard server on its own",
	Long: `Start the WebSocket dashboard without the sync daemon. Useful for
watching sync events published by a daemon running in another process, or
for testing dashboard clients.

Connect with a WebSocket client:
  ws://localhost:7319/ws

Messages carry sync lifecycle events: sync_started, sync_complete,
sync_failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		if port == 0 {
			port = viper.GetInt("dashboard.port")
		}

		server := dashboard.NewServer(&dashboard.Config{
			Port:   port,
			Logger: log.New(os.Stderr, "[dashboard] ", log.LstdFlags),
		})
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start dashboard: %w", err)
		}

		fmt.Printf("Dashboard server started on http://localhost:%d\n", port)
		fmt.Printf("WebSocket endpoint: ws://localhost:%d/ws\n", port)
		fmt.Println("\nPress Ctrl+C to stop...")

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		return server.Stop()
	},
}

func init() {
	dashboardCmd.Flags().Int("port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(dashboardCmd)
}
