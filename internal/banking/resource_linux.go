//go:build linux

package banking

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// ProcSampler implements CPUSampler and RSSSampler via getrusage(2),
// tracking CPU time deltas between samples to derive a percentage.
type ProcSampler struct {
	mu       sync.Mutex
	lastWall time.Time
	lastCPU  time.Duration
	numCPU   int
}

// NewProcSampler returns a ProcSampler scaled against numCPU logical cores
// (100% per core, so a fully busy 4-core process samples near 400).
func NewProcSampler(numCPU int) *ProcSampler {
	if numCPU < 1 {
		numCPU = 1
	}
	return &ProcSampler{lastWall: time.Now(), numCPU: numCPU}
}

func (p *ProcSampler) cpuTime() (time.Duration, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, err
	}
	user := time.Duration(ru.Utime.Sec)*time.Second + time.Duration(ru.Utime.Usec)*time.Microsecond
	sys := time.Duration(ru.Stime.Sec)*time.Second + time.Duration(ru.Stime.Usec)*time.Microsecond
	return user + sys, nil
}

// SampleCPUPercent returns the process's CPU utilization since the previous
// sample, as a percentage of one core (0-100*numCPU).
func (p *ProcSampler) SampleCPUPercent() float64 {
	cpu, err := p.cpuTime()
	if err != nil {
		return 0
	}
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	wallDelta := now.Sub(p.lastWall)
	cpuDelta := cpu - p.lastCPU
	p.lastWall, p.lastCPU = now, cpu

	if wallDelta <= 0 {
		return 0
	}
	pct := float64(cpuDelta) / float64(wallDelta) * 100
	if pct < 0 {
		return 0
	}
	return pct
}

// SampleRSSMB returns resident set size in megabytes via getrusage's
// Maxrss, which on Linux is reported in kilobytes.
func (p *ProcSampler) SampleRSSMB() float64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	return float64(ru.Maxrss) / 1024
}
