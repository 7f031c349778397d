package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/f1-wager-engine/internal/odds"
	"github.com/radieske/f1-wager-engine/internal/results"
	"github.com/radieske/f1-wager-engine/internal/wager"
)

func h2hWager(predicted int) wager.Wager {
	return wager.Wager{
		ID:              "w1",
		UserID:          "u1",
		Kind:            wager.KindH2H,
		StakeTotal:      100,
		DriverA:         wager.Driver{Number: 1, Rank: 1},
		DriverB:         wager.Driver{Number: 4, Rank: 2},
		PredictedWinner: predicted,
	}
}

func TestResolveHeadToHeadByPosition(t *testing.T) {
	cl := results.Classify([]results.DriverResult{
		{Position: 3, DriverNumber: 1, Status: "Finished"},
		{Position: 2, DriverNumber: 4, Status: "Finished"},
	})

	r := resolveHeadToHead(h2hWager(4), cl)
	assert.Equal(t, wager.StatusWon, r.Status)

	_, oddsB := odds.HeadToHead(1, 2)
	assert.Equal(t, oddsB, r.ServerOdds)
	assert.Equal(t, odds.Payout(100, oddsB), r.Payout)
	assert.Zero(t, r.Refund)

	r = resolveHeadToHead(h2hWager(1), cl)
	assert.Equal(t, wager.StatusLost, r.Status)
	assert.Zero(t, r.Payout)
}

func TestResolveHeadToHeadOneDNF(t *testing.T) {
	cl := results.Classify([]results.DriverResult{
		{Position: 0, DriverNumber: 1, Status: "Engine"},
		{Position: 8, DriverNumber: 4, Status: "Finished"},
	})

	// Quem sobreviveu vence o confronto, mesmo chegando atrás no grid.
	r := resolveHeadToHead(h2hWager(4), cl)
	assert.Equal(t, wager.StatusWon, r.Status)

	r = resolveHeadToHead(h2hWager(1), cl)
	assert.Equal(t, wager.StatusLost, r.Status)
}

func TestResolveHeadToHeadBothDNF(t *testing.T) {
	cl := results.Classify([]results.DriverResult{
		{Position: 0, DriverNumber: 1, Status: "Collision"},
		{Position: 0, DriverNumber: 4, Status: "Collision"},
	})

	r := resolveHeadToHead(h2hWager(1), cl)
	assert.Equal(t, wager.StatusVoid, r.Status)
	assert.Equal(t, int64(100), r.Refund)
	assert.Equal(t, voidBothRetired, r.VoidReason)
	assert.Zero(t, r.Payout)
}

func TestResolveHeadToHeadMissingData(t *testing.T) {
	// Nenhum dos dois aparece no resultado: sem posição e sem DNF, void.
	r := resolveHeadToHead(h2hWager(1), results.Classify(nil))
	assert.Equal(t, wager.StatusVoid, r.Status)
	assert.Equal(t, int64(100), r.Refund)
	assert.Equal(t, voidMissingData, r.VoidReason)
}

func TestResolveHeadToHeadOddsDelta(t *testing.T) {
	w := h2hWager(1)
	w.ClientOdds = 9.99

	r := resolveHeadToHead(w, results.Classify(nil))
	oddsA, _ := odds.HeadToHead(1, 2)
	assert.InDelta(t, 9.99-oddsA, r.OddsDelta, 1e-9)
}

func parlayWager() wager.Wager {
	return wager.Wager{
		ID:     "w2",
		UserID: "u1",
		Kind:   wager.KindParlay,
		Legs: []wager.Leg{
			{Position: 1, DriverNumber: 1, RankAtBet: 1, Stake: 100},
			{Position: 2, DriverNumber: 4, RankAtBet: 2, Stake: 200},
			{Position: 3, DriverNumber: 16, RankAtBet: 4, Stake: 300},
		},
	}
}

func TestResolveParlayPartialHit(t *testing.T) {
	// Acertou P1 e P3; P2 foi para outro piloto.
	cl := results.Classify([]results.DriverResult{
		{Position: 1, DriverNumber: 1, Status: "Finished"},
		{Position: 2, DriverNumber: 81, Status: "Finished"},
		{Position: 3, DriverNumber: 16, Status: "Finished"},
		{Position: 5, DriverNumber: 4, Status: "Finished"},
	})

	r := resolveParlay(parlayWager(), cl)
	assert.Equal(t, wager.StatusWon, r.Status)

	want := odds.Payout(100, odds.FromRank(1)) + odds.Payout(300, odds.FromRank(4))
	assert.Equal(t, want, r.Payout)

	require.Len(t, r.Legs, 3)
	assert.True(t, r.Legs[0].Won)
	assert.False(t, r.Legs[1].Won)
	assert.True(t, r.Legs[2].Won)
}

func TestResolveParlayAllMiss(t *testing.T) {
	cl := results.Classify([]results.DriverResult{
		{Position: 1, DriverNumber: 81, Status: "Finished"},
		{Position: 2, DriverNumber: 63, Status: "Finished"},
		{Position: 3, DriverNumber: 44, Status: "Finished"},
	})

	r := resolveParlay(parlayWager(), cl)
	assert.Equal(t, wager.StatusLost, r.Status)
	assert.Zero(t, r.Payout)
	assert.Zero(t, r.Refund, "parlay não tem void")
}

func TestResolveParlayDNFLegLoses(t *testing.T) {
	cl := results.Classify([]results.DriverResult{
		{Position: 0, DriverNumber: 1, Status: "Retired"},
		{Position: 1, DriverNumber: 4, Status: "Finished"},
	})

	w := wager.Wager{
		Kind: wager.KindParlay,
		Legs: []wager.Leg{{Position: 1, DriverNumber: 1, RankAtBet: 1, Stake: 100}},
	}
	r := resolveParlay(w, cl)
	assert.Equal(t, wager.StatusLost, r.Status)
}
