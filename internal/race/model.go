package race

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("race not found")

// Race é um evento do calendário. Imutável depois de agendado; o engine só
// lê startTime para cutoff de aposta e janela de cancelamento.
type Race struct {
	ID        string
	Name      string
	Circuit   string
	Round     int
	Season    int
	StartTime time.Time
}

// Cutoff é o instante em que o mercado fecha: uma margem antes da largada,
// para não aceitar aposta durante lag de dados ao vivo.
const CutoffMargin = 2 * time.Minute

func (r Race) Cutoff() time.Time { return r.StartTime.Add(-CutoffMargin) }

// BettingOpen informa se ainda dá para apostar nesta corrida.
func (r Race) BettingOpen(now time.Time) bool { return now.Before(r.Cutoff()) }

// Started informa se a corrida já largou.
func (r Race) Started(now time.Time) bool { return !now.Before(r.StartTime) }
