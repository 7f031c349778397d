package settlement

import (
	"math"

	"github.com/radieske/f1-wager-engine/internal/odds"
	"github.com/radieske/f1-wager-engine/internal/results"
	"github.com/radieske/f1-wager-engine/internal/wager"
)

// Motivos de void para confrontos diretos.
const (
	voidBothRetired = "both drivers retired"
	voidMissingData = "missing position data"
)

// LegOutcome é o desfecho de uma perna de parlay com a odd recalculada.
type LegOutcome struct {
	Position   int
	Won        bool
	ServerOdds float64
}

// Resolution é o desfecho de uma aposta, pronto para aplicar em lote.
// Payout e Refund são mutuamente exclusivos: won credita, void devolve.
type Resolution struct {
	WagerID    string
	UserID     string
	RaceName   string
	Kind       wager.Kind
	Status     wager.Status
	Payout     int64
	Refund     int64
	VoidReason string
	ServerOdds float64 // odd recalculada do h2h; zero para parlay
	Legs       []LegOutcome

	// Maior divergência entre odd recalculada e odd vista pelo cliente.
	// Só telemetria: o pagamento usa sempre a odd do servidor.
	OddsDelta float64
}

// resolveHeadToHead decide um confronto direto contra a classificação final.
// A odd de pagamento é recalculada dos rankings gravados na aposta; a odd do
// cliente nunca entra na conta.
func resolveHeadToHead(w wager.Wager, cl results.Classification) Resolution {
	r := Resolution{
		WagerID:  w.ID,
		UserID:   w.UserID,
		RaceName: w.RaceName,
		Kind:     wager.KindH2H,
	}

	oddsA, oddsB := odds.HeadToHead(w.DriverA.Rank, w.DriverB.Rank)
	r.ServerOdds = oddsA
	if w.PredictedWinner == w.DriverB.Number {
		r.ServerOdds = oddsB
	}
	if w.ClientOdds > 0 {
		r.OddsDelta = math.Abs(r.ServerOdds - w.ClientOdds)
	}

	aDNF := !cl.Finished(w.DriverA.Number)
	bDNF := !cl.Finished(w.DriverB.Number)

	var winner int
	switch {
	case aDNF && bDNF:
		r.Status = wager.StatusVoid
		r.Refund = w.StakeTotal
		r.VoidReason = voidBothRetired
		return r
	case aDNF:
		winner = w.DriverB.Number
	case bDNF:
		winner = w.DriverA.Number
	default:
		posA, okA := cl.Position(w.DriverA.Number)
		posB, okB := cl.Position(w.DriverB.Number)
		if !okA || !okB {
			r.Status = wager.StatusVoid
			r.Refund = w.StakeTotal
			r.VoidReason = voidMissingData
			return r
		}
		winner = w.DriverA.Number
		if posB < posA {
			winner = w.DriverB.Number
		}
	}

	if winner == w.PredictedWinner {
		r.Status = wager.StatusWon
		r.Payout = odds.Payout(w.StakeTotal, r.ServerOdds)
	} else {
		r.Status = wager.StatusLost
	}
	return r
}

// resolveParlay decide cada perna contra a posição exata de chegada. Perna de
// piloto que abandonou perde; a aposta ganha se pelo menos uma perna acerta,
// pagando a soma das pernas vencedoras. Parlay não tem void.
func resolveParlay(w wager.Wager, cl results.Classification) Resolution {
	r := Resolution{
		WagerID:  w.ID,
		UserID:   w.UserID,
		RaceName: w.RaceName,
		Kind:     wager.KindParlay,
	}

	holder := make(map[int]int, len(cl.Positions)) // posição -> piloto
	for driver, pos := range cl.Positions {
		holder[pos] = driver
	}

	for _, leg := range w.Legs {
		serverOdds := odds.FromRank(leg.RankAtBet)
		won := holder[leg.Position] == leg.DriverNumber && cl.Finished(leg.DriverNumber)

		if leg.ClientOdds > 0 {
			if d := math.Abs(serverOdds - leg.ClientOdds); d > r.OddsDelta {
				r.OddsDelta = d
			}
		}
		if won {
			r.Payout += odds.Payout(leg.Stake, serverOdds)
		}
		r.Legs = append(r.Legs, LegOutcome{Position: leg.Position, Won: won, ServerOdds: serverOdds})
	}

	if r.Payout > 0 {
		r.Status = wager.StatusWon
	} else {
		r.Status = wager.StatusLost
	}
	return r
}
