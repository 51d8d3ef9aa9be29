package remote

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fetch results recorded by Metrics.
const (
	resultOK       = "ok"
	resultNotFound = "not_found"
	resultError    = "error"
)

// Metrics counts remote fetches. A nil *Metrics records nothing.
type Metrics struct {
	fetches  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the remote collectors and registers them with reg when
// reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiln_remote_fetch_total",
				Help: "Remote fetches by repository and result.",
			},
			[]string{"repository", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kiln_remote_fetch_duration_seconds",
				Help:    "Time taken by remote fetches.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"repository"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.fetches, m.duration)
	}
	return m
}

func (m *Metrics) observe(repository string, started time.Time, err error) {
	if m == nil {
		return
	}
	result := resultOK
	switch {
	case IsNotFound(err):
		result = resultNotFound
	case err != nil:
		result = resultError
	}
	m.fetches.WithLabelValues(repository, result).Inc()
	m.duration.WithLabelValues(repository).Observe(time.Since(started).Seconds())
}
