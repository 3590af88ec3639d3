package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all console metrics on a private prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	// Backend client
	BackendRequests *prometheus.CounterVec
	BackendLatency  *prometheus.HistogramVec

	// Console operations (add, delete, load, login)
	ConsoleOps   *prometheus.CounterVec
	DecodeErrors prometheus.Counter

	// Web console
	Workspaces   prometheus.Gauge
	WSConns      prometheus.Gauge
	PatchesTotal *prometheus.CounterVec

	// HTTP servers (web console and dev backend)
	APIRequests *prometheus.CounterVec
	APILatency  *prometheus.HistogramVec
}

// Get returns the process metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = New()
		registry.reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
	return registry
}

// New creates an isolated registry; tests use it to avoid shared counters.
func New() *Registry {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	r := &Registry{reg: reg}

	r.BackendRequests = f.NewCounterVec(prometheus.CounterOpts{
		Name: "rulegate_backend_requests_total",
		Help: "Requests sent to the rule backend",
	}, []string{"endpoint", "status"})

	r.BackendLatency = f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rulegate_backend_request_duration_seconds",
		Help:    "Rule backend round trip latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	r.ConsoleOps = f.NewCounterVec(prometheus.CounterOpts{
		Name: "rulegate_console_operations_total",
		Help: "Console operations by outcome",
	}, []string{"op", "outcome"})

	r.DecodeErrors = f.NewCounter(prometheus.CounterOpts{
		Name: "rulegate_payload_decode_errors_total",
		Help: "Rule payloads that were not valid base64",
	})

	r.Workspaces = f.NewGauge(prometheus.GaugeOpts{
		Name: "rulegate_web_workspaces",
		Help: "Browser sessions holding a console workspace",
	})

	r.WSConns = f.NewGauge(prometheus.GaugeOpts{
		Name: "rulegate_web_websocket_connections",
		Help: "Open patch stream connections",
	})

	r.PatchesTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "rulegate_web_patches_total",
		Help: "View patches pushed to browsers",
	}, []string{"op"})

	r.APIRequests = f.NewCounterVec(prometheus.CounterOpts{
		Name: "rulegate_api_requests_total",
		Help: "HTTP requests served",
	}, []string{"method", "route", "status"})

	r.APILatency = f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rulegate_api_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	return r
}

// Handler exposes the registry in the prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer returns the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// RecordBackendRequest records one call to the rule backend. Status 0
// means the request never got a response.
func (r *Registry) RecordBackendRequest(endpoint string, status int, d time.Duration) {
	r.BackendRequests.WithLabelValues(endpoint, statusString(status)).Inc()
	r.BackendLatency.WithLabelValues(endpoint).Observe(d.Seconds())
}

// RecordOp records the outcome of a console operation.
func (r *Registry) RecordOp(op, outcome string) {
	r.ConsoleOps.WithLabelValues(op, outcome).Inc()
}

// RecordAPIRequest records a request served by one of our HTTP servers.
func (r *Registry) RecordAPIRequest(method, route string, status int, d time.Duration) {
	r.APIRequests.WithLabelValues(method, route, statusString(status)).Inc()
	r.APILatency.WithLabelValues(method, route).Observe(d.Seconds())
}

func statusString(status int) string {
	if status == 0 {
		return "transport_error"
	}
	return strconv.Itoa(status)
}
