package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout outcomes used as label values.
const (
	OutcomeSuccess    = "success"
	OutcomeFailed     = "failed"
	OutcomeTimedOut   = "timed_out"
	OutcomeEmptyCart  = "empty_cart"
	OutcomeInProgress = "in_progress"
)

// CheckoutMetrics records checkout attempts against the transaction sink.
type CheckoutMetrics struct {
	duration *prometheus.HistogramVec
	attempts *prometheus.CounterVec
	amount   prometheus.Counter
	lines    prometheus.Histogram
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_checkout_duration_seconds",
		Help:    "Duration of transaction sink submissions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_checkout_attempts_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})
	amount := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pos_checkout_amount_total",
		Help: "Sum of totals of successful checkouts.",
	})
	lines := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_checkout_lines",
		Help:    "Distinct cart lines per successful checkout.",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
	})
	reg.MustRegister(duration, attempts, amount, lines)
	return &CheckoutMetrics{
		duration: duration,
		attempts: attempts,
		amount:   amount,
		lines:    lines,
	}
}

// Observe records one checkout attempt with the given outcome.
func (c *CheckoutMetrics) Observe(outcome string, duration time.Duration) {
	if c == nil || c.attempts == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	c.attempts.WithLabelValues(outcome).Inc()
	if duration > 0 {
		c.duration.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

// ObserveSale records the size of a completed sale.
func (c *CheckoutMetrics) ObserveSale(total float64, lineCount int) {
	if c == nil || c.amount == nil {
		return
	}
	if total > 0 {
		c.amount.Add(total)
	}
	c.lines.Observe(float64(lineCount))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
