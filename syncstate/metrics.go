package syncstate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "groupsync"

	collectionMembers  = "members"
	collectionFeedback = "feedback"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Refreshes by collection, including failed ones.
	Refreshes *prometheus.CounterVec
	// Failures by collection and reason.
	Failures *prometheus.CounterVec
	// Individual signals that could not be decoded.
	DecodeFailures prometheus.Counter
	// Current number of items by collection.
	Size *prometheus.GaugeVec
	// Appends by collection and origin (local or relay).
	Appends *prometheus.CounterVec
}

// PrometheusMetrics returns Metrics registered with reg.
func PrometheusMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "refreshes_total",
			Help:      "Number of refreshes attempted.",
		}, []string{"collection"}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "failures_total",
			Help:      "Number of refreshes that reported a failure.",
		}, []string{"collection", "reason"}),
		DecodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "signal_decode_failures_total",
			Help:      "Number of verified signals replaced by the invalid marker.",
		}),
		Size: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "collection_size",
			Help:      "Number of items currently held.",
		}, []string{"collection"}),
		Appends: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "appends_total",
			Help:      "Number of optimistic appends.",
		}, []string{"collection", "origin"}),
	}
}

// NopMetrics returns collectors that are never registered.
func NopMetrics() *Metrics {
	return PrometheusMetrics(prometheus.NewRegistry(), "")
}
