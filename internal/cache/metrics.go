package cache

import "github.com/prometheus/client_golang/prometheus"

// Lookup results recorded by Metrics.
const (
	resultPrimaryHit        = "primary_hit"
	resultSecondaryCopy     = "secondary_copy"
	resultSecondaryFallback = "secondary_fallback"
	resultMiss              = "miss"
)

// Metrics counts cache activity. A nil *Metrics records nothing.
type Metrics struct {
	lookups     *prometheus.CounterVec
	writes      prometheus.Counter
	writeErrors prometheus.Counter
}

// NewMetrics creates the cache collectors and registers them with reg when
// reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiln_cache_lookups_total",
				Help: "Artifact cache lookups by result.",
			},
			[]string{"result"},
		),
		writes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kiln_cache_writes_total",
				Help: "Files written into the primary cache.",
			},
		),
		writeErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kiln_cache_write_errors_total",
				Help: "Failed writes or copies into the primary cache.",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.lookups, m.writes, m.writeErrors)
	}
	return m
}

func (m *Metrics) lookup(result string) {
	if m != nil {
		m.lookups.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) write(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.writeErrors.Inc()
		return
	}
	m.writes.Inc()
}
