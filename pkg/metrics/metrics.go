// Package metrics exposes Prometheus collectors for the HTTP surface and the
// draft lifecycle.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "boleto"

// Metrics owns a private registry so tests can build as many as they like.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	draftsCreated   *prometheus.CounterVec
	draftsFinalized prometheus.Counter
	draftsPurged    prometheus.Counter
	imports         *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		draftsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drafts_created_total",
			Help:      "Drafts created, by source.",
		}, []string{"source"}),
		draftsFinalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drafts_finalized_total",
			Help:      "Drafts promoted to the ledger.",
		}),
		draftsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drafts_purged_total",
			Help:      "Stale drafts removed by the purge job.",
		}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdf_imports_total",
			Help:      "PDF imports by extraction outcome.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.draftsCreated,
		m.draftsFinalized,
		m.draftsPurged,
		m.imports,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) DraftCreated(source string) {
	if m == nil {
		return
	}
	m.draftsCreated.WithLabelValues(source).Inc()
}

func (m *Metrics) DraftFinalized() {
	if m == nil {
		return
	}
	m.draftsFinalized.Inc()
}

func (m *Metrics) DraftsPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.draftsPurged.Add(float64(n))
}

func (m *Metrics) PDFImported(kind string) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(kind).Inc()
}
