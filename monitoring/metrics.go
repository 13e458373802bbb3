package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkoutRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_runs_total",
			Help: "Checkout orchestration runs by outcome",
		},
		[]string{"outcome"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkout_stage_duration_seconds",
			Help:    "Duration of each checkout orchestration stage",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"stage"},
	)

	promoLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promo_lookups_total",
			Help: "Promo code lookups by result",
		},
		[]string{"result"},
	)

	paymentRaces = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_race_outcomes_total",
			Help: "Winning branch of the payment watcher race",
		},
		[]string{"winner"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkout_active_sessions_total",
			Help: "Currently live checkout engine sessions",
		},
	)
)

// TrackCheckoutRun records a finished orchestration run:
// completed, declined, provider_error or superseded.
func TrackCheckoutRun(outcome string) {
	checkoutRuns.WithLabelValues(outcome).Inc()
}

// ObserveStage records how long one orchestration stage took.
func ObserveStage(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// TrackPromoLookup records a promo resolution: applied or rejected.
func TrackPromoLookup(result string) {
	promoLookups.WithLabelValues(result).Inc()
}

// TrackPaymentRace records which branch won the payment watcher race:
// token, cancelled or abandoned.
func TrackPaymentRace(winner string) {
	paymentRaces.WithLabelValues(winner).Inc()
}

// SessionOpened and SessionClosed keep the live-session gauge current.
func SessionOpened() { activeSessions.Inc() }
func SessionClosed() { activeSessions.Dec() }
