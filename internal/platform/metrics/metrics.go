// Package metrics exposes Prometheus counters for the authorization pipeline
// and webhook delivery.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	Namespace = "keyauth"

	LabelFlow       = "flow"
	LabelEvent      = "event"
	LabelResult     = "result"
	LabelFormatter  = "formatter"
	LabelMethod     = "method"
	LabelStatusCode = "status_code"

	FlowLogin    = "login"
	FlowRegister = "register"
	FlowVerify   = "verify"
	FlowSession  = "session"

	ResultDelivered = "delivered"
	ResultFailed    = "failed"
)

// Metrics owns its registry so several instances can coexist in tests.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	PipelineOutcomes  *prometheus.CounterVec
	WebhookDeliveries *prometheus.CounterVec
	WebhookAttempts   *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PipelineOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "pipeline_outcomes_total",
				Help:      "Terminal outcomes of the login, registration, verify and session flows",
			},
			[]string{LabelFlow, LabelEvent},
		),
		WebhookDeliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "webhook_deliveries_total",
				Help:      "Webhook deliveries by final result",
			},
			[]string{LabelResult},
		),
		WebhookAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "webhook_attempts_total",
				Help:      "Individual webhook HTTP attempts by payload formatter",
			},
			[]string{LabelFormatter},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{LabelMethod, LabelStatusCode},
		),
	}
}

func (m *Metrics) ObserveOutcome(flow, event string) {
	if m == nil {
		return
	}
	m.PipelineOutcomes.WithLabelValues(flow, event).Inc()
}

func (m *Metrics) ObserveDelivery(delivered bool) {
	if m == nil {
		return
	}
	result := ResultFailed
	if delivered {
		result = ResultDelivered
	}
	m.WebhookDeliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveAttempt(formatter string) {
	if m == nil {
		return
	}
	m.WebhookAttempts.WithLabelValues(formatter).Inc()
}

func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
