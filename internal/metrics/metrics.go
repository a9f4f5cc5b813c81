package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the payment lifecycle collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	transitions     *prometheus.CounterVec
	webhooks        *prometheus.CounterVec
	gatewayRequests *prometheus.CounterVec
	gatewayLatency  *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eco",
			Subsystem: "payment",
			Name:      "transitions_total",
			Help:      "Applied payment status transitions.",
		}, []string{"from", "to"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eco",
			Subsystem: "payment",
			Name:      "webhooks_total",
			Help:      "Webhook deliveries by outcome.",
		}, []string{"outcome"}),
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eco",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Calls to the payment provider by operation and outcome.",
		}, []string{"operation", "outcome"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "eco",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Latency of calls to the payment provider.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	reg.MustRegister(m.transitions, m.webhooks, m.gatewayRequests, m.gatewayLatency)
	return m
}

func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) Webhook(outcome string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) GatewayCall(operation, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(operation, outcome).Inc()
	m.gatewayLatency.WithLabelValues(operation).Observe(took.Seconds())
}

// Handler exposes the registry on /metrics.
func Handler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return mux
}
