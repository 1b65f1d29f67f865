package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workshop",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)

	propagationSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workshop",
			Name:      "propagation_steps_total",
			Help:      "Booking propagation steps by step name and outcome (ok, failed, skipped).",
		},
		[]string{"step", "outcome"},
	)

	bookingUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workshop",
			Name:      "booking_updates_total",
			Help:      "Booking updates by primary write result.",
		},
		[]string{"result"},
	)

	gateOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workshop",
			Name:      "invoice_gate_total",
			Help:      "Invoice preview gate transitions by outcome.",
		},
		[]string{"outcome"},
	)

	previewSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "workshop",
			Name:      "invoice_preview_sessions",
			Help:      "Open invoice preview sessions.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, propagationSteps, bookingUpdates, gateOutcomes, previewSessions)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint, code string) {
	httpRequests.WithLabelValues(endpoint, code).Inc()
}

func IncPropagationStep(step, outcome string) {
	propagationSteps.WithLabelValues(step, outcome).Inc()
}

func IncBookingUpdate(result string) {
	bookingUpdates.WithLabelValues(result).Inc()
}

func IncGate(outcome string) {
	gateOutcomes.WithLabelValues(outcome).Inc()
}

func SetPreviewSessions(n int) {
	previewSessions.Set(float64(n))
}
