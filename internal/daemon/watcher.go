package daemon

import (
	"context"
	"log"
	"os"
	"sync/atomic"
	"time"
)

// Prober checks remote reachability, satisfied by remote.Client.Ping.
type Prober interface {
	Ping(ctx context.Context) error
}

// Watcher polls the remote and emits an edge-triggered signal when
// reachability flips from offline to online. Being offline never blocks
// anything; local writes always succeed regardless.
type Watcher struct {
	prober   Prober
	interval time.Duration
	timeout  time.Duration
	logger   *log.Logger

	online    atomic.Bool
	reconnect chan struct{}
}

// NewWatcher creates a watcher probing with the given cadence.
func NewWatcher(prober Prober, interval, timeout time.Duration, logger *log.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultConfig().ProbeInterval
	}
	if timeout <= 0 {
		timeout = DefaultConfig().ProbeTimeout
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	w := &Watcher{
		prober:    prober,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
		reconnect: make(chan struct{}, 1),
	}
	// Assume online until a probe says otherwise, so startup does not
	// emit a spurious reconnect right after the initial sync.
	w.online.Store(true)
	return w
}

// Online reports the last observed reachability.
func (w *Watcher) Online() bool {
	return w.online.Load()
}

// Reconnected returns the channel that receives a signal on each
// offline-to-online transition.
func (w *Watcher) Reconnected() <-chan struct{} {
	return w.reconnect
}

// Run probes until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.probe(ctx)
		}
	}
}

func (w *Watcher) probe(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, w.timeout)
	err := w.prober.Ping(pctx)
	cancel()

	nowOnline := err == nil
	wasOnline := w.online.Swap(nowOnline)

	switch {
	case !wasOnline && nowOnline:
		w.logger.Printf("remote reachable again")
		select {
		case w.reconnect <- struct{}{}:
		default:
		}
	case wasOnline && !nowOnline:
		w.logger.Printf("remote unreachable: %v", err)
	}
}
