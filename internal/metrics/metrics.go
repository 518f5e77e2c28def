package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rezerv",
			Name:      "booking_created_total",
			Help:      "Count of bookings created by status.",
		},
		[]string{"status"},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rezerv",
			Name:      "booking_cancelled_total",
			Help:      "Count of bookings cancelled by the user.",
		},
	)

	bookingFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rezerv",
			Name:      "booking_failed_total",
			Help:      "Count of failed create/delete requests by operation.",
		},
		[]string{"op"},
	)

	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rezerv",
			Name:      "refresh_total",
			Help:      "Count of remote state refreshes by query and outcome.",
		},
		[]string{"query", "outcome"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingCreated, bookingCancelled, bookingFailed, refreshTotal)
	})
}

func IncBookingCreated(status string) {
	bookingCreated.WithLabelValues(status).Inc()
}

func IncBookingCancelled() {
	bookingCancelled.Inc()
}

func IncBookingFailed(op string) {
	bookingFailed.WithLabelValues(op).Inc()
}

func IncRefresh(query, outcome string) {
	refreshTotal.WithLabelValues(query, outcome).Inc()
}
