package connpool

import "sync/atomic"

// Stats aggregates cache-wide counters with atomic fields. Its embedded
// atomics already make it a copylocks violation if copied by value after
// first use; call Snapshot for a plain value to pass around instead.
type Stats struct {
	totalDials atomic.Uint64
	dialErrors atomic.Uint64
	evictions  atomic.Uint64
	reaped     atomic.Uint64
}

// StatsSnapshot is a plain, copyable read of Stats at one instant.
type StatsSnapshot struct {
	TotalDials uint64
	DialErrors uint64
	Evictions  uint64
	Reaped     uint64
}

func (s *Stats) RecordDial(err error) {
	s.totalDials.Add(1)
	if err != nil {
		s.dialErrors.Add(1)
	}
}

func (s *Stats) RecordEviction() { s.evictions.Add(1) }
func (s *Stats) RecordReap(n uint64) {
	s.reaped.Add(n)
}

// Snapshot reads all counters into a copyable value.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		TotalDials: s.totalDials.Load(),
		DialErrors: s.dialErrors.Load(),
		Evictions:  s.evictions.Load(),
		Reaped:     s.reaped.Load(),
	}
}
