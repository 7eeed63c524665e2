//go:build !linux

package banking

// ProcSampler is a no-op CPUSampler/RSSSampler on platforms without
// getrusage-style process accounting. It always reports 0% CPU and 0 MB RSS,
// so the monitor never flags overload and the adaptive batcher treats the
// process as idle (the batch size doubles toward MaxBatchSize while TPS
// stays below 1000).
type ProcSampler struct{}

// NewProcSampler returns a no-op sampler.
func NewProcSampler(numCPU int) *ProcSampler { return &ProcSampler{} }

func (p *ProcSampler) SampleCPUPercent() float64 { return 0 }
func (p *ProcSampler) SampleRSSMB() float64      { return 0 }
