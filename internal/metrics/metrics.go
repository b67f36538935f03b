package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "filesync"

type Metrics struct {
	registry          *prometheus.Registry
	triggerRequests   *prometheus.CounterVec
	rateLimitDecision *prometheus.CounterVec
	syncDuration      *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		triggerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trigger_requests_total",
			Help:      "Trigger requests by response outcome.",
		}, []string{"outcome"}),
		rateLimitDecision: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_decisions_total",
			Help:      "Rate limiter decisions.",
		}, []string{"decision"}),
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of file sync runs.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.triggerRequests,
		m.rateLimitDecision,
		m.syncDuration,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) TriggerOutcome(outcome string) {
	if m == nil {
		return
	}
	m.triggerRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RateLimitDecision(allowed bool) {
	if m == nil {
		return
	}
	decision := "reject"
	if allowed {
		decision = "admit"
	}
	m.rateLimitDecision.WithLabelValues(decision).Inc()
}

func (m *Metrics) SyncFinished(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.syncDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
