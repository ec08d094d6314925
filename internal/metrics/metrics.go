package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all the application metrics
type Metrics struct {
	// HTTP request metrics
	HTTPRequestTotal    *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Generative collaborator metrics
	CollaboratorCallTotal    *prometheus.CounterVec
	CollaboratorCallDuration *prometheus.HistogramVec

	// Orchestrator metrics
	SearchTotal    *prometheus.CounterVec
	PublishTotal   *prometheus.CounterVec
	UploadDuration *prometheus.HistogramVec

	// Summary cache metrics
	CacheLookupTotal *prometheus.CounterVec

	// Event publishing metrics
	EventPublishTotal *prometheus.CounterVec
}

// Global metrics instance with mutex for thread safety
var (
	globalMetrics *Metrics
	metricsMutex  sync.Mutex
)

// NewMetrics creates a new Metrics instance with all required metrics
func NewMetrics() *Metrics {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	// Return existing instance if already created
	if globalMetrics != nil {
		return globalMetrics
	}

	m := &Metrics{
		HTTPRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),

		CollaboratorCallTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collaborator_calls_total",
			Help: "Total number of generative collaborator calls",
		}, []string{"kind", "status"}),

		CollaboratorCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "collaborator_call_duration_seconds",
			Help:    "Generative collaborator call duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		}, []string{"kind", "status"}),

		SearchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Total number of searches by outcome",
		}, []string{"outcome"}),

		PublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_publish_total",
			Help: "Total number of items published by creation track",
		}, []string{"track"}),

		UploadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "studio_upload_duration_seconds",
			Help:    "Time from upload start to completion",
			Buckets: []float64{1, 2, 5, 10, 30, 60, 120},
		}, []string{"task"}),

		CacheLookupTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "summary_cache_lookups_total",
			Help: "Total number of summary cache lookups by result",
		}, []string{"result"}),

		EventPublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "event_publish_total",
			Help: "Total number of event publish operations",
		}, []string{"event_type", "status"}),
	}

	// Register metrics with the default registry
	registerMetrics(m)

	// Store as global instance
	globalMetrics = m

	return m
}

// registerMetrics registers all metrics with the default registry, adopting any
// collector that is already registered under the same name
func registerMetrics(m *Metrics) {
	m.HTTPRequestTotal = registerOrGet(m.HTTPRequestTotal)
	m.HTTPRequestDuration = registerOrGet(m.HTTPRequestDuration)
	m.CollaboratorCallTotal = registerOrGet(m.CollaboratorCallTotal)
	m.CollaboratorCallDuration = registerOrGet(m.CollaboratorCallDuration)
	m.SearchTotal = registerOrGet(m.SearchTotal)
	m.PublishTotal = registerOrGet(m.PublishTotal)
	m.UploadDuration = registerOrGet(m.UploadDuration)
	m.CacheLookupTotal = registerOrGet(m.CacheLookupTotal)
	m.EventPublishTotal = registerOrGet(m.EventPublishTotal)
}

// registerOrGet tries to register a metric, returns the existing one if already registered
func registerOrGet[C prometheus.Collector](c C) C {
	if err := prometheus.Register(c); err != nil {
		// If already registered, return the existing collector
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}
