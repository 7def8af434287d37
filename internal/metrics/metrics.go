package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCommitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "citabot",
			Name:      "booking_committed_total",
			Help:      "Count of bookings committed successfully.",
		},
	)

	bookingConflicted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "citabot",
			Name:      "booking_conflicted_total",
			Help:      "Count of commit attempts lost to a concurrent booking.",
		},
	)

	commitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "citabot",
			Name:      "booking_commit_duration_seconds",
			Help:      "Time spent in the lock-revalidate-insert sequence.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	intentClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "citabot",
			Name:      "intent_classified_total",
			Help:      "Count of classified intents by type.",
		},
		[]string{"intent"},
	)

	classifierDegraded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "citabot",
			Name:      "classifier_degraded_total",
			Help:      "Count of classifications served by the keyword-only fallback.",
		},
	)

	sessionExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "citabot",
			Name:      "session_expired_total",
			Help:      "Count of selections rejected because the session expired.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingCommitted, bookingConflicted, commitDuration,
			intentClassified, classifierDegraded, sessionExpired,
		)
	})
}

func IncBookingCommitted() { bookingCommitted.Inc() }

func IncBookingConflicted() { bookingConflicted.Inc() }

func ObserveCommitDuration(seconds float64) { commitDuration.Observe(seconds) }

func IncIntentClassified(intent string) { intentClassified.WithLabelValues(intent).Inc() }

func IncClassifierDegraded() { classifierDegraded.Inc() }

func IncSessionExpired() { sessionExpired.Inc() }
