// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingestion results used as label values.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics is the server's collector bundle. Each instance owns its registry,
// so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	IngestTotal       *prometheus.CounterVec
	IngestWeightGrams prometheus.Histogram
	ImageBytes        prometheus.Histogram
	QueryTotal        *prometheus.CounterVec
	LatestRecordID    prometheus.Gauge
	NotifyErrors      *prometheus.CounterVec
	WebsocketClients  prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.IngestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodanalysis_ingest_total",
			Help: "Total number of analyze-food requests partitioned by result and error code.",
		},
		[]string{"result", "code"},
	)
	m.IngestWeightGrams = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "foodanalysis_ingest_weight_grams",
		Help:    "Weight of accepted submissions in grams.",
		Buckets: []float64{50, 100, 150, 200, 250, 300, 400, 600, 1000},
	})
	m.ImageBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "foodanalysis_image_bytes",
		Help:    "Size of accepted images in bytes.",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
	})
	m.QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodanalysis_latest_queries_total",
			Help: "Total number of latest-analysis queries partitioned by whether data was available.",
		},
		[]string{"result"},
	)
	m.LatestRecordID = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "foodanalysis_latest_record_id",
		Help: "ID of the record currently held by the result store.",
	})
	m.NotifyErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodanalysis_notify_errors_total",
			Help: "Total number of failed record notifications partitioned by notifier.",
		},
		[]string{"notifier"},
	)
	m.WebsocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "foodanalysis_websocket_clients",
		Help: "Number of connected websocket clients.",
	})

	m.registry.MustRegister(
		m.IngestTotal,
		m.IngestWeightGrams,
		m.ImageBytes,
		m.QueryTotal,
		m.LatestRecordID,
		m.NotifyErrors,
		m.WebsocketClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
