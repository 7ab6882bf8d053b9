package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the anchor worker.
type Metrics struct {
	// Job outcomes by result
	JobOutcome *prometheus.CounterVec

	// Full job processing latency, dequeue to ack
	JobLatency prometheus.Histogram

	// Confirmation wait latency per submitted transaction
	ConfirmLatency prometheus.Histogram

	// Jobs currently being processed
	InFlight prometheus.Gauge
}

// New creates a new Metrics instance with all anchor worker metrics registered.
func New() *Metrics {
	return &Metrics{
		JobOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tracehub_anchor_job_outcomes_total",
			Help: "Total anchor job outcomes by result",
		}, []string{"outcome"}), // outcome: "anchored", "already_anchored", "skipped_not_found", "skipped_disabled", "failed"

		JobLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracehub_anchor_job_duration_seconds",
			Help:    "Duration of anchor job processing including confirmation",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}),

		ConfirmLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracehub_anchor_confirm_duration_seconds",
			Help:    "Time waiting for a submitted transaction to land",
			Buckets: []float64{1, 5, 10, 15, 30, 45, 60, 90},
		}),

		InFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tracehub_anchor_jobs_in_flight",
			Help: "Anchor jobs currently being processed",
		}),
	}
}

// IncrementOutcome records a job outcome.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.JobOutcome.WithLabelValues(outcome).Inc()
	}
}

// ObserveJobLatency records the total processing duration of one job.
func (m *Metrics) ObserveJobLatency(d time.Duration) {
	if m != nil {
		m.JobLatency.Observe(d.Seconds())
	}
}

// ObserveConfirmLatency records how long a transaction took to confirm.
func (m *Metrics) ObserveConfirmLatency(d time.Duration) {
	if m != nil {
		m.ConfirmLatency.Observe(d.Seconds())
	}
}

// JobStarted marks a job in flight.
func (m *Metrics) JobStarted() {
	if m != nil {
		m.InFlight.Inc()
	}
}

// JobFinished marks a job done.
func (m *Metrics) JobFinished() {
	if m != nil {
		m.InFlight.Dec()
	}
}
