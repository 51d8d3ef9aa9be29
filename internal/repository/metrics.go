package repository

import "github.com/prometheus/client_golang/prometheus"

// Where a descriptor came from.
const (
	sourceMemory = "memory"
	sourceRecord = "record"
	sourceSolved = "solved"
)

// Metrics counts descriptor lookups. A nil *Metrics records nothing.
type Metrics struct {
	descriptors *prometheus.CounterVec
}

// NewMetrics creates the repository collectors and registers them with reg
// when reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		descriptors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiln_descriptor_lookups_total",
				Help: "Descriptor lookups by source: in-memory memo, solution record, or freshly solved.",
			},
			[]string{"source"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.descriptors)
	}
	return m
}

func (m *Metrics) descriptor(source string) {
	if m != nil {
		m.descriptors.WithLabelValues(source).Inc()
	}
}
