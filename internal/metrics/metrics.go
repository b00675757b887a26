package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/matijazezelj/peerscope/internal/topology"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "peerscope"

// Metrics exposes topology and refresh metrics for Prometheus.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	refreshRuns         *prometheus.CounterVec
	refreshDuration     prometheus.Histogram
	focusRequests       *prometheus.CounterVec
	nodes               *prometheus.GaugeVec
	links               prometheus.Gauge
	conflicts           prometheus.Gauge
	isolated            prometheus.Gauge
	alertsSent          *prometheus.CounterVec
}

// New creates a fresh registry with every metric registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests served",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests served",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		refreshRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_runs_total",
			Help:      "Inventory refreshes by final status",
		}, []string{"status"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of inventory refreshes from start to finish",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		focusRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "focus_requests_total",
			Help:      "Focus computations by engine and outcome",
		}, []string{"engine", "result"}),
		nodes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "topology_nodes",
			Help:      "Nodes in the current topology",
		}, []string{"origin"}),
		links: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "topology_links",
			Help:      "Canonical peerings in the current topology",
		}),
		conflicts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "topology_state_conflicts",
			Help:      "Peerings whose two directed records disagree on state",
		}),
		isolated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "topology_isolated_nodes",
			Help:      "Nodes without any peering",
		}),
		alertsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alerts dispatched by event type",
		}, []string{"type"}),
	}

	registry.MustRegister(
		m.httpRequests,
		m.httpRequestDuration,
		m.refreshRuns,
		m.refreshDuration,
		m.focusRequests,
		m.nodes,
		m.links,
		m.conflicts,
		m.isolated,
		m.alertsSent,
	)
	return m
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// ObserveRefresh records a finished refresh.
func (m *Metrics) ObserveRefresh(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.refreshRuns.WithLabelValues(status).Inc()
	m.refreshDuration.Observe(duration.Seconds())
}

// ObserveFocus counts a focus computation. Result is "ok" or "not_found".
func (m *Metrics) ObserveFocus(engine, result string) {
	if m == nil {
		return
	}
	m.focusRequests.WithLabelValues(engine, result).Inc()
}

// SetTopology publishes the shape of the current topology.
func (m *Metrics) SetTopology(s topology.Summary) {
	if m == nil {
		return
	}
	m.nodes.WithLabelValues("inventory").Set(float64(s.Networks))
	m.nodes.WithLabelValues("synthesized").Set(float64(s.Synthesized))
	m.links.Set(float64(s.Links))
	m.conflicts.Set(float64(s.Conflicts))
	m.isolated.Set(float64(s.Isolated))
}

// IncAlert counts a dispatched alert.
func (m *Metrics) IncAlert(eventType string) {
	if m == nil {
		return
	}
	m.alertsSent.WithLabelValues(eventType).Inc()
}

// Handler exposes the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
