package events

// Evento publicado pelo wager-service após criar uma aposta com o débito efetivado.
type WagerPlaced struct {
	WagerID    string  `json:"wager_id"`
	UserID     string  `json:"user_id"`
	RaceID     string  `json:"race_id"`
	Kind       string  `json:"kind"` // "parlay" | "h2h"
	StakeTotal int64   `json:"stake_total"`
	ServerOdds float64 `json:"server_odds,omitempty"` // só para h2h; parlay tem odd por perna
	TsUnixMs   int64   `json:"ts_unix_ms"`
}
