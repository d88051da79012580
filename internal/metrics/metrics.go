// Package metrics holds the Prometheus instrumentation for the bridge.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "telemetry_bridge"

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves Prometheus metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Metrics groups every collector the bridge exports.
type Metrics struct {
	ReadingsAccepted *prometheus.CounterVec
	ReadingsRejected *prometheus.CounterVec
	IngestDropped    *prometheus.CounterVec

	ViewersActive    prometheus.Gauge
	MessagesRelayed  *prometheus.CounterVec
	ViewerDeliveries prometheus.Counter
	DeliveryFailures *prometheus.CounterVec

	CommandsPublished *prometheus.CounterVec
	CommandsFailed    *prometheus.CounterVec

	ReportRequests *prometheus.CounterVec
	HistoryLatency prometheus.Histogram
}

// New creates and registers the bridge metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReadingsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "readings_accepted_total",
			Help:      "Sensor readings parsed and stored in the snapshot.",
		}, []string{"channel"}),
		ReadingsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "readings_rejected_total",
			Help:      "Sensor payloads dropped because they did not parse.",
		}, []string{"channel"}),
		IngestDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "events_dropped_total",
			Help:      "Bus events dropped because the ingest queue stayed full.",
		}, []string{"channel"}),
		ViewersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "viewers_active",
			Help:      "Number of registered live viewers.",
		}),
		MessagesRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "messages_relayed_total",
			Help:      "Sensor messages fanned out to viewers.",
		}, []string{"channel"}),
		ViewerDeliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "viewer_deliveries_total",
			Help:      "Individual viewer deliveries queued.",
		}),
		DeliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "delivery_failures_total",
			Help:      "Viewers dropped after a failed or overflowing delivery.",
		}, []string{"reason"}),
		CommandsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commands",
			Name:      "published_total",
			Help:      "Actuator commands published to the bus.",
		}, []string{"channel"}),
		CommandsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commands",
			Name:      "failed_total",
			Help:      "Actuator commands that failed to encode or publish.",
		}, []string{"channel", "stage"}),
		ReportRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reports",
			Name:      "requests_total",
			Help:      "Report requests by outcome.",
		}, []string{"outcome"}),
		HistoryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "fetch_duration_seconds",
			Help:      "Latency of historical window fetches.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}

	reg.MustRegister(
		m.ReadingsAccepted, m.ReadingsRejected, m.IngestDropped,
		m.ViewersActive, m.MessagesRelayed, m.ViewerDeliveries, m.DeliveryFailures,
		m.CommandsPublished, m.CommandsFailed,
		m.ReportRequests, m.HistoryLatency,
	)
	return m
}

// ViewerRegistered implements broadcast.Recorder.
func (m *Metrics) ViewerRegistered() { m.ViewersActive.Inc() }

// ViewerUnregistered implements broadcast.Recorder.
func (m *Metrics) ViewerUnregistered() { m.ViewersActive.Dec() }

// MessageRelayed implements broadcast.Recorder.
func (m *Metrics) MessageRelayed(channel string, viewers int) {
	m.MessagesRelayed.WithLabelValues(channel).Inc()
	m.ViewerDeliveries.Add(float64(viewers))
}

// DeliveryFailed implements broadcast.Recorder.
func (m *Metrics) DeliveryFailed(reason string) {
	m.DeliveryFailures.WithLabelValues(reason).Inc()
}

// EventDropped implements mqtt.DropRecorder.
func (m *Metrics) EventDropped(channel string) {
	m.IngestDropped.WithLabelValues(channel).Inc()
}

// ReadingAccepted implements services.IngestRecorder.
func (m *Metrics) ReadingAccepted(channel string) {
	m.ReadingsAccepted.WithLabelValues(channel).Inc()
}

// ReadingRejected implements services.IngestRecorder.
func (m *Metrics) ReadingRejected(channel string) {
	m.ReadingsRejected.WithLabelValues(channel).Inc()
}

// CommandPublished implements services.CommandRecorder.
func (m *Metrics) CommandPublished(channel string) {
	m.CommandsPublished.WithLabelValues(channel).Inc()
}

// CommandFailed implements services.CommandRecorder.
func (m *Metrics) CommandFailed(channel, stage string) {
	m.CommandsFailed.WithLabelValues(channel, stage).Inc()
}

// ReportServed implements services.ReportRecorder.
func (m *Metrics) ReportServed(outcome string) {
	m.ReportRequests.WithLabelValues(outcome).Inc()
}

// HistoryFetched implements services.ReportRecorder.
func (m *Metrics) HistoryFetched(d time.Duration) {
	m.HistoryLatency.Observe(d.Seconds())
}
