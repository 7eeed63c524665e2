package banking

import (
	"context"
	"math"
	"sync/atomic"
	"time"
)

// CPUSampler and RSSSampler are capability interfaces for process resource
// observation, mirroring the teacher's Tracker/ResourceTracker split so a
// host-specific implementation can be swapped in without touching the
// monitor's throttle logic.
type CPUSampler interface {
	// SampleCPUPercent returns process CPU utilization in [0, 100*NumCPU].
	SampleCPUPercent() float64
}

type RSSSampler interface {
	// SampleRSSMB returns resident set size in megabytes.
	SampleRSSMB() float64
}

// ResourceMonitorConfig configures overload thresholds and sampling cadence.
type ResourceMonitorConfig struct {
	SampleInterval time.Duration
	CPUOverloadPct float64
	RSSOverloadMB  float64
}

// DefaultResourceMonitorConfig matches spec.md §4.5's documented defaults.
func DefaultResourceMonitorConfig() ResourceMonitorConfig {
	return ResourceMonitorConfig{
		SampleInterval: 500 * time.Millisecond,
		CPUOverloadPct: 80,
		RSSOverloadMB:  1024,
	}
}

// ResourceMonitor samples CPU/RSS on a background interval and exposes a
// lock-free overload flag and the last observed CPU reading for adaptive
// batching decisions.
type ResourceMonitor struct {
	cfg ResourceMonitorConfig
	cpu CPUSampler
	rss RSSSampler

	overloaded atomic.Bool
	lastCPU    atomic.Uint64 // bits of float64
}

// NewResourceMonitor wires a monitor around the given samplers.
func NewResourceMonitor(cfg ResourceMonitorConfig, cpu CPUSampler, rss RSSSampler) *ResourceMonitor {
	return &ResourceMonitor{cfg: cfg, cpu: cpu, rss: rss}
}

// Run samples on cfg.SampleInterval until ctx is canceled.
func (m *ResourceMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sampleOnce()
		}
	}
}

func (m *ResourceMonitor) sampleOnce() {
	cpuPct := m.cpu.SampleCPUPercent()
	rssMB := m.rss.SampleRSSMB()
	m.lastCPU.Store(math.Float64bits(cpuPct))
	m.overloaded.Store(cpuPct > m.cfg.CPUOverloadPct || rssMB > m.cfg.RSSOverloadMB)
}

// Overloaded reports the most recent overload decision.
func (m *ResourceMonitor) Overloaded() bool { return m.overloaded.Load() }

// LastCPUPercent returns the most recently sampled CPU percentage.
func (m *ResourceMonitor) LastCPUPercent() float64 {
	return math.Float64frombits(m.lastCPU.Load())
}
