package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kwatson/puttlog/internal/daemon"
	"github.com/kwatson/puttlog/internal/dashboard"
	syncsvc "github.com/kwatson/puttlog/internal/sync"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run the background auto-sync daemon",
	Long: `Run sync continuously: once at startup, then on a recurring timer,
plus an extra cycle whenever the remote becomes reachable again after an
outage. Sync errors are logged and retried, never fatal.

A local dashboard server broadcasts sync events over WebSocket and serves
a JSON status endpoint.

Example usage:
  puttlog daemon                     # default 5m interval
  puttlog daemon --interval 1m       # custom interval
  puttlog daemon --no-dashboard      # disable the dashboard server

Changing sync.interval in the config file takes effect without a restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger := log.New(daemonLogWriter(), "[daemon] ", log.LstdFlags)

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		client, err := newRemote()
		if err != nil {
			return err
		}

		interval, _ := cmd.Flags().GetDuration("interval")
		if interval <= 0 {
			interval = viper.GetDuration("sync.interval")
		}

		var svc *syncsvc.Service

		var pub syncsvc.Publisher
		var dash *dashboard.Server
		if noDash, _ := cmd.Flags().GetBool("no-dashboard"); !noDash {
			dash = dashboard.NewServer(&dashboard.Config{
				Port:   viper.GetInt("dashboard.port"),
				Logger: log.New(daemonLogWriter(), "[dashboard] ", log.LstdFlags),
				Status: func(ctx context.Context) (*syncsvc.Status, error) {
					if svc == nil {
						return nil, fmt.Errorf("sync service not ready")
					}
					return svc.Status(ctx)
				},
			})
			if err := dash.Start(); err != nil {
				return fmt.Errorf("failed to start dashboard: %w", err)
			}
			defer func() { _ = dash.Stop() }()
			pub = dash
			fmt.Printf("Dashboard: http://localhost:%d\n", viper.GetInt("dashboard.port"))
		}

		svc = syncsvc.New(s, client, pub, log.New(daemonLogWriter(), "[sync] ", log.LstdFlags))

		cfg := daemon.DefaultConfig()
		cfg.Interval = interval
		cfg.Logger = logger

		watcher := daemon.NewWatcher(client, cfg.ProbeInterval, cfg.ProbeTimeout, logger)
		d := daemon.New(svc, watcher, cfg)

		// Live-reload the sync interval when the config file changes.
		viper.OnConfigChange(func(e fsnotify.Event) {
			if iv := viper.GetDuration("sync.interval"); iv > 0 {
				d.SetInterval(iv)
			}
		})
		viper.WatchConfig()

		d.Start(ctx)
		fmt.Printf("Auto-sync running (interval %s). Press Ctrl+C to stop.\n", d.Interval())

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sig:
		case <-ctx.Done():
		}

		d.Stop()
		return nil
	},
}

// daemonLogWriter routes daemon logs to a rotating file when log.file is
// configured, otherwise stderr.
func daemonLogWriter() io.Writer {
	path := viper.GetString("log.file")
	if path == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
	}
}

func init() {
	daemonCmd.Flags().Duration("interval", 0, "sync interval (overrides config)")
	daemonCmd.Flags().Bool("no-dashboard", false, "disable the dashboard server")
	rootCmd.AddCommand(daemonCmd)
}
