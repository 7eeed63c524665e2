package connpool

import (
	"context"
	"time"
)

// reconnectLoop retries FAILED connections with exponential backoff capped
// at MaxReconnectBackoff, per entry's own NextReconnectTime.
func (d *Daemons) reconnectLoop(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.ReconnectBackoff)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.reconnectOnce(time.Now())
		}
	}
}

func (d *Daemons) reconnectOnce(now time.Time) {
	for _, info := range d.cache.Snapshot() {
		if info.State != StateFailed {
			continue
		}
		if now.Before(info.NextReconnectTime) {
			continue
		}
		d.attemptReconnect(info.ID, now)
	}
}

func (d *Daemons) attemptReconnect(id ConnectionID, now time.Time) {
	d.cache.mu.Lock()
	info, ok := d.cache.conns[id]
	if !ok {
		d.cache.mu.Unlock()
		return
	}
	attempts := info.ReconnectAttempts
	d.cache.mu.Unlock()

	refreshed, err := d.cache.dial(id, now)
	d.cache.mu.Lock()
	defer d.cache.mu.Unlock()
	cur, ok := d.cache.conns[id]
	if !ok {
		return
	}
	if err != nil {
		cur.ReconnectAttempts = attempts + 1
		backoff := d.cfg.ReconnectBackoff * time.Duration(1<<min(cur.ReconnectAttempts, 10))
		if backoff > d.cfg.MaxReconnectBackoff {
			backoff = d.cfg.MaxReconnectBackoff
		}
		cur.NextReconnectTime = now.Add(backoff)
		d.log.Warn("reconnect failed", "remote", id.RemoteAddress, "attempt", cur.ReconnectAttempts)
		return
	}
	cur.State = StateConnected
	cur.Socket = refreshed.Socket
	cur.ReconnectAttempts = 0
	d.log.Info("reconnected", "remote", id.RemoteAddress)
}
