package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	domainavailability "staybook/internal/domain/availability"
)

const metricsNamespace = "staybook"

// Metrics holds the service's Prometheus collectors. It observes bus
// messages, availability verdicts and HTTP requests.
type Metrics struct {
	registry *prometheus.Registry

	messagesTotal   *prometheus.CounterVec
	messageDuration *prometheus.HistogramVec
	verdictsTotal   *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewMetrics registers every collector on a fresh registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "bus",
			Name:      "messages_total",
			Help:      "Commands and queries handled, by kind, key and outcome.",
		}, []string{"kind", "key", "outcome"}),
		messageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "bus",
			Name:      "message_duration_seconds",
			Help:      "Handling latency of commands and queries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "key"}),
		verdictsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "availability",
			Name:      "verdicts_total",
			Help:      "Availability verdicts, by result and reason.",
		}, []string{"available", "reason"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Observe implements middleware.Observer.
func (m *Metrics) Observe(kind, key string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.messagesTotal.WithLabelValues(kind, key, outcome).Inc()
	m.messageDuration.WithLabelValues(kind, key).Observe(elapsed.Seconds())
}

// ObserveVerdict implements availability.VerdictObserver.
func (m *Metrics) ObserveVerdict(v domainavailability.Verdict) {
	reason := string(v.Reason)
	if reason == "" {
		reason = "none"
	}
	m.verdictsTotal.WithLabelValues(strconv.FormatBool(v.Available), reason).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
