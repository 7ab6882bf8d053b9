package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the passport module.
type Metrics struct {
	// Passports created by initial status
	Created *prometheus.CounterVec

	// Anchor jobs enqueued by trigger
	AnchorEnqueued *prometheus.CounterVec

	// Verification reads by result
	Verifications *prometheus.CounterVec
}

// New creates a new Metrics instance with all passport module metrics registered.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tracehub_passports_created_total",
			Help: "Total passports created by initial status",
		}, []string{"status"}),

		AnchorEnqueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tracehub_passport_anchor_enqueued_total",
			Help: "Total anchor jobs enqueued by trigger",
		}, []string{"trigger"}), // trigger: "create", "update", "status_change"

		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tracehub_passport_verifications_total",
			Help: "Total verification reads by result",
		}, []string{"result"}), // result: "verified", "mismatch", "unanchored"
	}
}

// IncrementCreated records a created passport.
func (m *Metrics) IncrementCreated(status string) {
	if m != nil {
		m.Created.WithLabelValues(status).Inc()
	}
}

// IncrementAnchorEnqueued records an enqueued anchor job.
func (m *Metrics) IncrementAnchorEnqueued(trigger string) {
	if m != nil {
		m.AnchorEnqueued.WithLabelValues(trigger).Inc()
	}
}

// IncrementVerification records a verification read.
func (m *Metrics) IncrementVerification(result string) {
	if m != nil {
		m.Verifications.WithLabelValues(result).Inc()
	}
}
