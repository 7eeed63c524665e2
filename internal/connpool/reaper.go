package connpool

import (
	"context"
	"time"
)

// reapLoop periodically removes connections idle past the cache's ttl.
func (d *Daemons) reapLoop(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.reapOnce(time.Now())
		}
	}
}

func (d *Daemons) reapOnce(now time.Time) int {
	reaped := 0
	for _, info := range d.cache.Snapshot() {
		if now.Sub(info.LastUsed) > d.cache.ttl {
			d.cache.Remove(info.ID)
			reaped++
		}
	}
	if reaped > 0 {
		d.cache.stats.RecordReap(uint64(reaped))
		d.log.Debug("reaped idle connections", "count", reaped)
	}
	return reaped
}
