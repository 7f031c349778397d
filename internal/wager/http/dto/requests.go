package dto

type ParlayLeg struct {
	Position     int     `json:"position"` // 1..3
	DriverNumber int     `json:"driver_number"`
	DriverName   string  `json:"driver_name"`
	SeasonRank   int     `json:"season_rank"`
	Stake        int64   `json:"stake"`
	Odds         float64 `json:"odds"` // odd vista pelo cliente; só informativa
}

type PlaceParlayRequest struct {
	RaceID string      `json:"raceId"`
	Legs   []ParlayLeg `json:"legs"`
}

type MatchupDriver struct {
	Number     int    `json:"number"`
	Name       string `json:"name"`
	Team       string `json:"team"`
	SeasonRank int    `json:"season_rank"`
}

type PlaceHeadToHeadRequest struct {
	RaceID          string        `json:"raceId"`
	DriverA         MatchupDriver `json:"driver_a"`
	DriverB         MatchupDriver `json:"driver_b"`
	PredictedWinner int           `json:"predicted_winner"`
	Stake           int64         `json:"stake"`
	Odds            float64       `json:"odds"` // odd vista pelo cliente
}

type GrantRequest struct {
	UserID string `json:"userId"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}
