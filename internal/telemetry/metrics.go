package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Averager tracks a running average of observed values, the same shape as
// the teacher's metrics.Averager: a counter of observations plus a gauge of
// their sum, both registered against the caller's registerer.
type Averager interface {
	Observe(value float64)
}

type averager struct {
	count prometheus.Counter
	sum   prometheus.Gauge
	acc   float64
	n     float64
}

// NewAverager registers name+"_count" and name+"_sum" against reg and
// returns an Averager that updates both on every Observe.
func NewAverager(name, help string, reg prometheus.Registerer) (Averager, error) {
	count := prometheus.NewCounter(prometheus.CounterOpts{
		Name: name + "_count",
		Help: "Total # of observations of " + help,
	})
	sum := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name + "_sum",
		Help: "Sum of " + help,
	})
	if err := reg.Register(count); err != nil {
		return nil, err
	}
	if err := reg.Register(sum); err != nil {
		return nil, err
	}
	return &averager{count: count, sum: sum}, nil
}

func (a *averager) Observe(value float64) {
	a.acc += value
	a.n++
	a.count.Inc()
	a.sum.Set(a.acc)
}

// MustCounter registers a Counter against reg, panicking on a duplicate
// registration.
func MustCounter(reg prometheus.Registerer, name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	reg.MustRegister(c)
	return c
}

// MustGauge registers a Gauge against reg.
func MustGauge(reg prometheus.Registerer, name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	reg.MustRegister(g)
	return g
}
