package connpool

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slonana-labs/validator-core/internal/telemetry"
)

// DaemonConfig tunes the background health/reap/reconnect loops.
type DaemonConfig struct {
	HealthCheckInterval time.Duration
	ReapInterval        time.Duration
	ReconnectBackoff    time.Duration
	MaxReconnectBackoff time.Duration
}

// DefaultDaemonConfig matches spec.md §7's health_check_interval=10s.
func DefaultDaemonConfig() DaemonConfig {
	return DaemonConfig{
		HealthCheckInterval: 10 * time.Second,
		ReapInterval:        30 * time.Second,
		ReconnectBackoff:    time.Second,
		MaxReconnectBackoff: 30 * time.Second,
	}
}

// Daemons runs the cache's health check, reaper, and reconnect loops as a
// group of goroutines that all stop together on first error or cancel.
type Daemons struct {
	cache *Cache
	cfg   DaemonConfig
	log   telemetry.Logger
}

// NewDaemons builds the background loop runner for cache.
func NewDaemons(cache *Cache, cfg DaemonConfig, log telemetry.Logger) *Daemons {
	return &Daemons{cache: cache, cfg: cfg, log: log}
}

// Run starts health check, reap, and reconnect loops and blocks until ctx
// is cancelled or one loop returns an error.
func (d *Daemons) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.healthLoop(ctx) })
	g.Go(func() error { return d.reapLoop(ctx) })
	g.Go(func() error { return d.reconnectLoop(ctx) })
	return g.Wait()
}

func (d *Daemons) healthLoop(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.checkOnce()
		}
	}
}

func (d *Daemons) checkOnce() {
	for _, info := range d.cache.Snapshot() {
		if !info.Healthy() && info.State == StateConnected {
			d.log.Warn("connection unhealthy", "remote", info.ID.RemoteAddress, "success_rate", info.SuccessRate())
			d.cache.markFailed(info.ID)
		}
	}
}
