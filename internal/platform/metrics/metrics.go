package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RegistrationsTotal prometheus.Counter
	VerificationsTotal prometheus.Counter
	RejectionsTotal    prometheus.Counter
	ChainFailuresTotal prometheus.Counter
	RequestDuration    *prometheus.HistogramVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics on a caller-supplied registry. Tests use
// this to avoid duplicate registration panics across suites.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RegistrationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "erthid_registrations_total",
			Help: "Total number of completed on-chain registrations",
		}),
		VerificationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "erthid_verifications_total",
			Help: "Total number of successful document verifications",
		}),
		RejectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "erthid_rejections_total",
			Help: "Total number of rejected document verifications",
		}),
		ChainFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "erthid_chain_failures_total",
			Help: "Total number of failed chain broadcasts (transport or on-chain rejection)",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "erthid_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
