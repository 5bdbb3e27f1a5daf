// Package daemon runs background sync: one cycle immediately on start,
// then on a recurring timer, plus an extra cycle whenever the network
// watcher reports the remote became reachable again. All triggers funnel
// through the sync service's own reentrancy guard, so overlapping firings
// never run concurrently.
package daemon

import (
	"context"
	"log"
	"os"
	"sync"
	"time"
)

// Syncer is the subset of the sync service the daemon drives.
type Syncer interface {
	Sync(ctx context.Context) error
}

// Config holds daemon settings.
type Config struct {
	// Interval between timer-driven sync cycles.
	Interval time.Duration

	// ProbeInterval is how often the network watcher probes the remote.
	ProbeInterval time.Duration

	// ProbeTimeout bounds a single reachability probe.
	ProbeTimeout time.Duration

	Logger *log.Logger
}

// DefaultConfig returns the standard daemon settings.
func DefaultConfig() Config {
	return Config{
		Interval:      5 * time.Minute,
		ProbeInterval: 30 * time.Second,
		ProbeTimeout:  5 * time.Second,
	}
}

// Daemon schedules sync cycles until stopped.
type Daemon struct {
	syncer  Syncer
	watcher *Watcher
	logger  *log.Logger

	mu       sync.Mutex
	interval time.Duration
	bump     chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon. watcher may be nil to disable the reconnect
// trigger.
func New(syncer Syncer, watcher *Watcher, cfg Config) *Daemon {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	return &Daemon{
		syncer:   syncer,
		watcher:  watcher,
		logger:   logger,
		interval: cfg.Interval,
		bump:     make(chan struct{}, 1),
	}
}

// Start launches the sync loop and, when a watcher is configured, the
// reachability probe loop. Returns immediately.
func (d *Daemon) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)

	var reconnect <-chan struct{}
	if d.watcher != nil {
		reconnect = d.watcher.Reconnected()
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.watcher.Run(ctx)
		}()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop(ctx, reconnect)
	}()

	d.logger.Printf("auto-sync started (interval %s)", d.Interval())
}

// Stop cancels the loops and waits for them to exit.
func (d *Daemon) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	d.logger.Printf("auto-sync stopped")
}

// Interval reports the current timer interval.
func (d *Daemon) Interval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.interval
}

// SetInterval changes the timer interval for subsequent ticks. Used by
// config live-reload.
func (d *Daemon) SetInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	d.mu.Lock()
	changed := interval != d.interval
	d.interval = interval
	d.mu.Unlock()

	if changed {
		d.logger.Printf("sync interval changed to %s", interval)
		select {
		case d.bump <- struct{}{}:
		default:
		}
	}
}

func (d *Daemon) loop(ctx context.Context, reconnect <-chan struct{}) {
	d.runSync(ctx)

	timer := time.NewTimer(d.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			d.runSync(ctx)
			timer.Reset(d.Interval())
		case <-d.bump:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(d.Interval())
		case <-reconnect:
			d.logger.Printf("network restored, syncing")
			d.runSync(ctx)
		}
	}
}

// runSync performs one cycle. Errors are logged, never returned; the
// daemon keeps running and the next trigger retries.
func (d *Daemon) runSync(ctx context.Context) {
	if err := d.syncer.Sync(ctx); err != nil {
		d.logger.Printf("sync failed: %v", err)
	}
}
