package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	slotsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "garagebook",
			Name:      "slots_generated_total",
			Help:      "Count of time slots materialized from weekly patterns.",
		},
	)

	reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "garagebook",
			Name:      "reservations_total",
			Help:      "Count of reservation attempts by outcome.",
		},
		[]string{"outcome"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "garagebook",
			Name:      "booking_transitions_total",
			Help:      "Count of booking status transitions by target status.",
		},
		[]string{"status"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "garagebook",
			Name:      "http_requests_total",
			Help:      "Count of HTTP API requests by handler.",
		},
		[]string{"handler"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(slotsGenerated, reservations, transitions, httpRequests)
	})
}

func AddSlotsGenerated(n int64) {
	slotsGenerated.Add(float64(n))
}

func IncReservation(outcome string) {
	reservations.WithLabelValues(outcome).Inc()
}

func IncTransition(status string) {
	transitions.WithLabelValues(status).Inc()
}

func IncHTTP(handler string) {
	httpRequests.WithLabelValues(handler).Inc()
}
