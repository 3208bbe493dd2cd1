package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collector's Prometheus instrumentation.
type Metrics struct {
	spansIngested *prometheus.CounterVec
	spansFiltered prometheus.Counter
	ingestErrors  *prometheus.CounterVec
	streamClients prometheus.Gauge
}

// NewMetrics creates and registers the collector metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		spansIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracewire",
			Subsystem: "collector",
			Name:      "spans_ingested_total",
			Help:      "Spans accepted into the store, by transport.",
		}, []string{"transport"}),
		spansFiltered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tracewire",
			Subsystem: "collector",
			Name:      "spans_filtered_total",
			Help:      "Spans dropped by the ingest filter rule.",
		}),
		ingestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracewire",
			Subsystem: "collector",
			Name:      "ingest_errors_total",
			Help:      "Ingest requests rejected as malformed, by transport.",
		}, []string{"transport"}),
		streamClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "tracewire",
			Subsystem: "collector",
			Name:      "stream_clients",
			Help:      "Currently connected live stream clients.",
		}),
	}
}

func (m *Metrics) recordIngest(transport string, accepted, filtered int) {
	if m == nil {
		return
	}
	m.spansIngested.WithLabelValues(transport).Add(float64(accepted))
	m.spansFiltered.Add(float64(filtered))
}

func (m *Metrics) recordIngestError(transport string) {
	if m == nil {
		return
	}
	m.ingestErrors.WithLabelValues(transport).Inc()
}

func (m *Metrics) streamConnected() {
	if m == nil {
		return
	}
	m.streamClients.Inc()
}

func (m *Metrics) streamDisconnected() {
	if m == nil {
		return
	}
	m.streamClients.Dec()
}
