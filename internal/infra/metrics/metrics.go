package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeConfirmed    = "confirmed"
	OutcomeNotConfirmed = "not_confirmed"
	OutcomeDuplicate    = "already_deployed"
	OutcomeError        = "error"

	OutcomeDeploying = "deploying"
	OutcomeRetry     = "retry"
	OutcomePoison    = "poison"
	OutcomeFailed    = "failed"
)

// Metrics groups the instruments of the webhook and the deployer.
type Metrics struct {
	WebhookEvents     *prometheus.CounterVec
	Deployments       *prometheus.CounterVec
	DeploymentLatency prometheus.Histogram
	DeadLetterDepth   prometheus.Gauge
}

// New registers all instruments with reg. Tests pass a fresh
// prometheus.NewRegistry() to stay isolated.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Inbound payment events by intake outcome.",
		}, []string{"outcome"}),

		Deployments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deployments_total",
			Help: "Processed deployment requests by outcome.",
		}, []string{"outcome"}),

		DeploymentLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "deployment_processing_seconds",
			Help:    "Time from receiving a deployment request to acknowledging it.",
			Buckets: prometheus.DefBuckets,
		}),

		DeadLetterDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dead_letter_queue_depth",
			Help: "Approximate number of deployment requests waiting in the dead-letter queue.",
		}),
	}

	reg.MustRegister(
		m.WebhookEvents,
		m.Deployments,
		m.DeploymentLatency,
		m.DeadLetterDepth,
	)

	return m
}

func (m *Metrics) ObserveWebhook(outcome string) {
	m.WebhookEvents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveDeployment(outcome string, took time.Duration) {
	m.Deployments.WithLabelValues(outcome).Inc()
	if outcome == OutcomeDeploying {
		m.DeploymentLatency.Observe(took.Seconds())
	}
}
