// Package connpool implements the health-monitored, auto-reconnecting peer
// connection cache used to keep the UDP sender's destinations warm.
package connpool

import (
	"net"
	"sync"
	"time"
)

// ConnectionState is the lifecycle state of one cached connection.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ConnectionID identifies a cached peer connection by its remote endpoint.
type ConnectionID struct {
	RemoteAddress string
	RemotePort    uint16
}

// ConnectionInfo is the per-peer bookkeeping the cache maintains, mirroring
// spec.md §3's ConnectionInfo fields.
type ConnectionInfo struct {
	ID                ConnectionID
	State             ConnectionState
	Socket            *net.UDPConn
	SuccessfulSends   uint64
	FailedSends       uint64
	AvgLatency        time.Duration
	LastUsed          time.Time
	ReconnectAttempts int
	NextReconnectTime time.Time
}

// SuccessRate is successful/(successful+failed), or 1 with no attempts yet.
func (c *ConnectionInfo) SuccessRate() float64 {
	total := c.SuccessfulSends + c.FailedSends
	if total == 0 {
		return 1
	}
	return float64(c.SuccessfulSends) / float64(total)
}

// Healthy reports state=CONNECTED && success_rate > 0.95.
func (c *ConnectionInfo) Healthy() bool {
	return c.State == StateConnected && c.SuccessRate() > 0.95
}

// Cache is a thread-safe, TTL/LRU-evicted map of peer connections.
type Cache struct {
	mu          sync.Mutex
	conns       map[ConnectionID]*ConnectionInfo
	ttl         time.Duration
	maxSize     int
	dialTimeout time.Duration
	stats       Stats
}

// Config tunes the cache's capacity and eviction policy.
type Config struct {
	TTL         time.Duration
	MaxSize     int
	DialTimeout time.Duration
}

// DefaultConfig matches spec.md §7's connection_ttl=300s default.
func DefaultConfig() Config {
	return Config{TTL: 300 * time.Second, MaxSize: 4096, DialTimeout: 2 * time.Second}
}

// New returns an empty Cache.
func New(cfg Config) *Cache {
	return &Cache{
		conns:       make(map[ConnectionID]*ConnectionInfo),
		ttl:         cfg.TTL,
		maxSize:     cfg.MaxSize,
		dialTimeout: cfg.DialTimeout,
	}
}

// GetOrCreate returns the cached connection for id, dialing a new UDP
// socket if none exists or the cached one expired past ttl.
func (c *Cache) GetOrCreate(id ConnectionID, now time.Time) (*ConnectionInfo, error) {
	c.mu.Lock()
	if info, ok := c.conns[id]; ok {
		if now.Sub(info.LastUsed) <= c.ttl {
			info.LastUsed = now
			c.mu.Unlock()
			return info, nil
		}
		c.closeLocked(info)
		delete(c.conns, id)
	}
	if len(c.conns) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.mu.Unlock()

	return c.dial(id, now)
}

func (c *Cache) dial(id ConnectionID, now time.Time) (*ConnectionInfo, error) {
	raddr := &net.UDPAddr{IP: net.ParseIP(id.RemoteAddress), Port: int(id.RemotePort)}
	conn, err := net.DialUDP("udp4", nil, raddr)
	c.stats.RecordDial(err)

	c.mu.Lock()
	defer c.mu.Unlock()
	info := &ConnectionInfo{ID: id, LastUsed: now}
	if err != nil {
		info.State = StateFailed
		info.ReconnectAttempts = 1
		c.conns[id] = info
		return info, err
	}
	info.State = StateConnected
	info.Socket = conn
	c.conns[id] = info
	return info, nil
}

// evictOldestLocked drops the least-recently-used entry. Caller holds mu.
func (c *Cache) evictOldestLocked() {
	var oldestID ConnectionID
	var oldestTime time.Time
	first := true
	for id, info := range c.conns {
		if first || info.LastUsed.Before(oldestTime) {
			oldestID, oldestTime, first = id, info.LastUsed, false
		}
	}
	if !first {
		if info := c.conns[oldestID]; info != nil {
			c.closeLocked(info)
		}
		delete(c.conns, oldestID)
		c.stats.RecordEviction()
	}
}

// StatsSnapshot returns a copyable read of the cache's aggregate counters.
func (c *Cache) StatsSnapshot() StatsSnapshot {
	return c.stats.Snapshot()
}

func (c *Cache) closeLocked(info *ConnectionInfo) {
	if info.Socket != nil {
		info.Socket.Close()
	}
}

// RecordSend updates latency and success/failure counters for id after a
// send attempt.
func (c *Cache) RecordSend(id ConnectionID, latency time.Duration, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, found := c.conns[id]
	if !found {
		return
	}
	if ok {
		info.SuccessfulSends++
	} else {
		info.FailedSends++
	}
	if info.AvgLatency == 0 {
		info.AvgLatency = latency
	} else {
		info.AvgLatency = (info.AvgLatency + latency) / 2
	}
}

// Snapshot returns a copy of all cached connection infos, for monitoring.
func (c *Cache) Snapshot() []ConnectionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ConnectionInfo, 0, len(c.conns))
	for _, info := range c.conns {
		out = append(out, *info)
	}
	return out
}

// Len returns the number of cached connections.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conns)
}

// Remove drops id from the cache, closing its socket.
func (c *Cache) Remove(id ConnectionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if info, ok := c.conns[id]; ok {
		c.closeLocked(info)
		delete(c.conns, id)
	}
}

// markFailed transitions id to FAILED so the reconnect loop picks it up.
func (c *Cache) markFailed(id ConnectionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if info, ok := c.conns[id]; ok {
		c.closeLocked(info)
		info.Socket = nil
		info.State = StateFailed
	}
}

// CloseAll closes every cached socket and empties the cache.
func (c *Cache) CloseAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, info := range c.conns {
		c.closeLocked(info)
		delete(c.conns, id)
	}
}
