package events

type WagerCancelled struct {
	WagerID      string `json:"wager_id"`
	UserID       string `json:"user_id"`
	RaceID       string `json:"race_id"`
	RefundAmount int64  `json:"refund_amount"`
	TsUnixMs     int64  `json:"ts_unix_ms"`
}
