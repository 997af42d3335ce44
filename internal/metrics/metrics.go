package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	rateLimitRejections  prometheus.Counter
	intakeOutcomesTotal  *prometheus.CounterVec
	jobsInFlight         prometheus.Gauge
	jobsTotal            *prometheus.CounterVec
	settlementDuration   prometheus.Histogram
	eventPublishFailures prometheus.Counter
}

// NewMetrics registers all collectors with reg. Use a fresh registry per
// instance in tests.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	ns := strings.ReplaceAll(namespace, "-", "_")
	factory := promauto.With(reg)

	return &Metrics{
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_http_requests_total", ns),
			Help: "Total HTTP requests processed, labeled by status code",
		}, []string{"method", "endpoint", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    fmt.Sprintf("%s_http_request_duration_seconds", ns),
			Help:    "Latency distribution of HTTP requests",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"method", "endpoint"}),
		rateLimitRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_http_rate_limit_rejections_total", ns),
			Help: "Total number of webhook requests rejected due to rate limiting",
		}),
		intakeOutcomesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_webhook_intake_total", ns),
			Help: "Webhook deliveries by intake outcome",
		}, []string{"outcome"}),
		jobsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_settlement_jobs_in_flight", ns),
			Help: "Settlement jobs currently outstanding",
		}),
		jobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_settlement_jobs_total", ns),
			Help: "Finished settlement jobs by result",
		}, []string{"result"}),
		settlementDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    fmt.Sprintf("%s_settlement_duration_seconds", ns),
			Help:    "Duration of settlement jobs from start to status update",
			Buckets: []float64{0.01, 0.1, 1, 5, 15, 30, 45, 60, 120},
		}),
		eventPublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_event_publish_failures_total", ns),
			Help: "Status change events that could not be published",
		}),
	}
}

func (m *Metrics) ObserveRequest(method, endpoint string, status int, seconds float64) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, fmt.Sprint(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(seconds)
}

func (m *Metrics) IncRateLimitRejections() {
	m.rateLimitRejections.Inc()
}

func (m *Metrics) IncIntakeOutcome(outcome string) {
	m.intakeOutcomesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) JobStarted() {
	m.jobsInFlight.Inc()
}

func (m *Metrics) JobFinished(result string, seconds float64) {
	m.jobsInFlight.Dec()
	m.jobsTotal.WithLabelValues(result).Inc()
	m.settlementDuration.Observe(seconds)
}

func (m *Metrics) IncEventPublishFailures() {
	m.eventPublishFailures.Inc()
}

// IntakeOutcomes exposes the outcome counter for assertions.
func (m *Metrics) IntakeOutcomes() *prometheus.CounterVec {
	return m.intakeOutcomesTotal
}

// Jobs exposes the job result counter for assertions.
func (m *Metrics) Jobs() *prometheus.CounterVec {
	return m.jobsTotal
}

// InFlight exposes the in-flight gauge for assertions.
func (m *Metrics) InFlight() prometheus.Gauge {
	return m.jobsInFlight
}

func (m *Metrics) Requests() *prometheus.CounterVec {
	return m.httpRequestsTotal
}

func (m *Metrics) RateLimitRejections() prometheus.Counter {
	return m.rateLimitRejections
}
