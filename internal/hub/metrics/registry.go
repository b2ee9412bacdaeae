package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hubhelper/internal/hub"
)

// Registry encapsulates all metrics and provides a clean interface
// for recording metrics without global state
type Registry struct {
	registry *prometheus.Registry

	// Publish metrics
	publishTotal    *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec
	payloadBytes    prometheus.Histogram

	// Read metrics
	readTotal    *prometheus.CounterVec
	readDuration prometheus.Histogram
	eventsListed prometheus.Histogram

	// HTTP front-end metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System health metrics
	systemInfo *prometheus.GaugeVec
	startTime  prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	registry := prometheus.NewRegistry()

	r := &Registry{
		registry: registry,

		publishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubhelper_publish_total",
				Help: "Total number of publish operations",
			},
			[]string{"hub", "status"}, // status: success, invalid, too_large, error
		),

		publishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hubhelper_publish_duration_seconds",
				Help:    "Time spent validating and sending a payload",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"hub"},
		),

		payloadBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hubhelper_publish_payload_bytes",
				Help:    "Size of raw payloads submitted for publishing",
				Buckets: prometheus.ExponentialBuckets(64, 4, 8),
			},
		),

		readTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubhelper_read_total",
				Help: "Total number of list operations",
			},
			[]string{"hub", "consumer_group", "status"}, // status: success, empty, partial, error
		),

		readDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hubhelper_read_duration_seconds",
				Help:    "Time spent draining partitions for a list operation",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 7.5, 10, 15, 30, 60},
			},
		),

		eventsListed: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hubhelper_read_events",
				Help:    "Number of events returned by a list operation",
				Buckets: []float64{0, 1, 10, 50, 100, 500, 1000, 5000},
			},
		),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubhelper_http_requests_total",
				Help: "Total number of HTTP requests served",
			},
			[]string{"route", "method", "code"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hubhelper_http_request_duration_seconds",
				Help:    "Time spent serving HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),

		systemInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hubhelper_system_info",
				Help: "System information (value is always 1, labels contain info)",
			},
			[]string{"version", "build_time"},
		),

		startTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hubhelper_start_time_seconds",
				Help: "Unix timestamp when the application started",
			},
		),
	}

	// add default Go metrics (memory, GC, goroutines, etc.)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry.MustRegister(
		r.publishTotal,
		r.publishDuration,
		r.payloadBytes,
		r.readTotal,
		r.readDuration,
		r.eventsListed,
		r.httpRequestsTotal,
		r.httpRequestDuration,
		r.systemInfo,
		r.startTime,
	)

	r.startTime.SetToCurrentTime()

	return r
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          r.registry,
	})
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// PublishStatus maps a publish result onto the status label.
func PublishStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, hub.ErrInvalidPayload):
		return "invalid"
	case errors.Is(err, hub.ErrEventTooLarge):
		return "too_large"
	default:
		return "error"
	}
}

// ReadStatus maps a list result onto the status label. A failed read that
// still produced events is partial.
func ReadStatus(events int, err error) string {
	switch {
	case err != nil && events > 0:
		return "partial"
	case err != nil:
		return "error"
	case events == 0:
		return "empty"
	default:
		return "success"
	}
}

// RecordPublish records a publish operation
func (r *Registry) RecordPublish(hubName string, payloadSize int, duration time.Duration, err error) {
	r.publishTotal.WithLabelValues(hubName, PublishStatus(err)).Inc()
	r.publishDuration.WithLabelValues(hubName).Observe(duration.Seconds())
	r.payloadBytes.Observe(float64(payloadSize))
}

// RecordRead records a list operation
func (r *Registry) RecordRead(hubName, consumerGroup string, events int, duration time.Duration, err error) {
	r.readTotal.WithLabelValues(hubName, consumerGroup, ReadStatus(events, err)).Inc()
	r.readDuration.Observe(duration.Seconds())
	r.eventsListed.Observe(float64(events))
}

// RecordHTTPRequest records a served HTTP request
func (r *Registry) RecordHTTPRequest(route, method string, code int, duration time.Duration) {
	r.httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	r.httpRequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// SetSystemInfo sets system information metrics
func (r *Registry) SetSystemInfo(version, buildTime string) {
	r.systemInfo.WithLabelValues(version, buildTime).Set(1)
}
