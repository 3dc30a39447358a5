package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomePlaceholder = "placeholder"
)

// Metrics holds the exporter counters. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ExportsTotal        *prometheus.CounterVec
	AttachmentBytes     prometheus.Counter
	BridgeRequestsTotal *prometheus.CounterVec
	BridgeDuration      *prometheus.HistogramVec
}

// New registers the counters on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ExportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erado_exports_total",
				Help: "Total number of files written by exports",
			},
			[]string{"kind", "outcome"},
		),
		AttachmentBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "erado_attachment_bytes_total",
				Help: "Total attachment bytes written",
			},
		),
		BridgeRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erado_bridge_requests_total",
				Help: "Total number of bridge requests",
			},
			[]string{"action", "outcome"},
		),
		BridgeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "erado_bridge_request_duration_seconds",
				Help:    "Bridge request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action"},
		),
	}
	reg.MustRegister(
		m.ExportsTotal,
		m.AttachmentBytes,
		m.BridgeRequestsTotal,
		m.BridgeDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordExport counts one written (or failed) file
func (m *Metrics) RecordExport(kind, outcome string) {
	if m == nil {
		return
	}
	m.ExportsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordAttachmentBytes adds n written attachment bytes
func (m *Metrics) RecordAttachmentBytes(n int) {
	if m == nil {
		return
	}
	m.AttachmentBytes.Add(float64(n))
}

// RecordBridgeRequest counts one bridge request and its duration
func (m *Metrics) RecordBridgeRequest(action string, success bool, seconds float64) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if !success {
		outcome = OutcomeFailure
	}
	m.BridgeRequestsTotal.WithLabelValues(action, outcome).Inc()
	m.BridgeDuration.WithLabelValues(action).Observe(seconds)
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{DisableCompression: true})
}
