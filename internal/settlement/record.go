package settlement

import (
	"time"

	"github.com/radieske/f1-wager-engine/pkg/contracts/events"
)

// Record é o registro de auditoria de uma corrida liquidada. Só existe
// quando a corrida fechou sem nenhuma aposta pendente; a sua presença é o
// que marca a corrida como settled nas cargas seguintes.
type Record struct {
	RaceID      string
	RaceName    string
	Season      int
	Round       int
	H2H         events.MarketSummary
	Parlay      events.MarketSummary
	CompletedAt time.Time
}
