package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the service's Prometheus collectors.
type Metrics struct {
	IngestTotal *prometheus.CounterVec // result: accepted|rejected|storage_error
	QueryTotal  *prometheus.CounterVec // op: timeline|errors|artifacts
}

// NewMetrics registers collectors on the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IngestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "securewatch_ingest_total",
			Help: "Event ingestion attempts by result.",
		}, []string{"result"}),
		QueryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "securewatch_query_total",
			Help: "Admin query operations by type.",
		}, []string{"op"}),
	}
	reg.MustRegister(m.IngestTotal, m.QueryTotal)
	return m
}
