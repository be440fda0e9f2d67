package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SignUpsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meetuply_signups_total",
		Help: "Successful event sign-ups",
	})

	SignUpsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meetuply_signups_rejected_total",
		Help: "Rejected event sign-ups by reason",
	}, []string{"reason"})

	PaymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meetuply_payments_total",
		Help: "Gateway payment transactions by final status",
	}, []string{"status"})

	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meetuply_transfers_total",
		Help: "Organizer transfer legs by final status",
	}, []string{"status"})

	RefundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meetuply_refunds_total",
		Help: "Refunds issued (wallet and gateway)",
	})

	WebhooksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meetuply_webhooks_total",
		Help: "Gateway webhook callbacks by outcome",
	}, []string{"outcome"})
)
