package dto

import "time"

type LegResponse struct {
	Position     int     `json:"position"`
	DriverNumber int     `json:"driver_number"`
	DriverName   string  `json:"driver_name"`
	Stake        int64   `json:"stake"`
	Odds         float64 `json:"odds"`      // odd do servidor na criação
	LiveOdds     float64 `json:"live_odds"` // pari-mutuel atual, só exibição
	Won          bool    `json:"won,omitempty"`
}

type WagerResponse struct {
	WagerID         string        `json:"wagerId"`
	RaceID          string        `json:"raceId"`
	RaceName        string        `json:"race_name"`
	Kind            string        `json:"kind"`
	Status          string        `json:"status"`
	StakeTotal      int64         `json:"stake_total"`
	PotentialPayout int64         `json:"potential_payout"`
	Payout          int64         `json:"payout,omitempty"`
	Odds            float64       `json:"odds,omitempty"` // h2h
	PredictedWinner int           `json:"predicted_winner,omitempty"`
	Legs            []LegResponse `json:"legs,omitempty"`
	VoidReason      string        `json:"void_reason,omitempty"`
	NewBalance      *int64        `json:"new_balance,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	SettledAt       *time.Time    `json:"settled_at,omitempty"`
}

type CancelResponse struct {
	WagerID      string `json:"wagerId"`
	Status       string `json:"status"` // CANCELLED
	RefundAmount int64  `json:"refund_amount"`
}

type BalanceResponse struct {
	UserID         string `json:"userId"`
	BalanceTokens  int64  `json:"balance_tokens"`
	LifetimeEarned int64  `json:"lifetime_earned"`
}

type LedgerEntryResponse struct {
	ID           string    `json:"id"`
	AmountTokens int64     `json:"amount_tokens"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

type LiveOddsResponse struct {
	RaceID       string  `json:"raceId"`
	DriverNumber int     `json:"driver_number"`
	Odds         float64 `json:"odds"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
