package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wagersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wager_placed_total",
		Help: "Apostas aceitas, por tipo de mercado.",
	}, []string{"kind"})

	wagersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wager_rejected_total",
		Help: "Apostas recusadas, por motivo.",
	}, []string{"reason"})

	wagersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wager_cancelled_total",
		Help: "Apostas canceladas com reembolso.",
	})
)
