package topics

const (
	// Wagers
	WagerPlaced    = "wager_placed"
	WagerCancelled = "wager_cancelled"

	// Settlement
	RaceSettled = "race_settled"
)
