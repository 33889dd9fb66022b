package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signalsTotal  *prometheus.CounterVec
	strength      *prometheus.GaugeVec
	notifications *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalforge_signals_total",
				Help: "Total number of signals generated",
			},
			[]string{"symbol", "type"},
		),
		strength: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signalforge_signal_strength",
				Help: "Strength of the most recent signal for a symbol",
			},
			[]string{"symbol"},
		),
		notifications: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalforge_notifications_total",
				Help: "Notification attempts by outcome",
			},
			[]string{"outcome"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalforge_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalforge_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordSignal records a generated signal.
func (r *Recorder) RecordSignal(symbol, signalType string) {
	r.signalsTotal.WithLabelValues(symbol, signalType).Inc()
}

// RecordStrength records the strength of the latest signal for a symbol.
func (r *Recorder) RecordStrength(symbol string, strength float64) {
	r.strength.WithLabelValues(symbol).Set(strength)
}

// RecordNotification records a notification attempt outcome.
func (r *Recorder) RecordNotification(outcome string) {
	r.notifications.WithLabelValues(outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
