package events

import "time"

// Evento emitido pelo settlement-worker quando uma corrida fecha sem apostas pendentes.
type RaceSettled struct {
	RaceID   string `json:"race_id"`
	RaceName string `json:"race_name"`
	Season   int    `json:"season"`
	Round    int    `json:"round"`

	H2H    MarketSummary `json:"h2h"`
	Parlay MarketSummary `json:"parlay"`

	CompletedAt time.Time `json:"completed_at"`
}

type MarketSummary struct {
	Total int `json:"total"`
	Won   int `json:"won"`
	Lost  int `json:"lost"`
	Void  int `json:"void"`
}
