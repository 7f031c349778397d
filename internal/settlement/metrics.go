package settlement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wagersSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_wagers_total",
		Help: "Apostas liquidadas, por tipo de mercado e desfecho.",
	}, []string{"kind", "status"})

	batchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_batch_failures_total",
		Help: "Lotes que esgotaram as tentativas e ficaram para a próxima rodada.",
	})

	oddsMismatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_odds_mismatch_total",
		Help: "Divergências entre odd recalculada e odd vista pelo cliente.",
	}, []string{"severity"})

	racesSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_races_total",
		Help: "Corridas fechadas com registro de settlement gravado.",
	})
)
