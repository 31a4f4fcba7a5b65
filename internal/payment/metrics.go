package payment

import "github.com/prometheus/client_golang/prometheus"

var (
	verifyPollAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pos",
		Name:      "payment_verify_attempts_total",
		Help:      "Total number of payment verification poll attempts.",
	})
	verifyPollOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Name:      "payment_verify_outcomes_total",
		Help:      "Count of payment verification poll outcomes.",
	}, []string{"outcome"})
	chargeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Name:      "payment_charge_total",
		Help:      "Count of direct mobile-money charge attempts by result.",
	}, []string{"carrier", "result"})
)

func init() {
	prometheus.MustRegister(verifyPollAttempts, verifyPollOutcomes, chargeTotal)
}
