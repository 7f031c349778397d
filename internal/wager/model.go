package wager

import "time"

type Kind string

const (
	KindParlay Kind = "parlay" // até 3 pernas independentes de pódio (P1/P2/P3)
	KindH2H    Kind = "h2h"    // confronto direto entre dois pilotos
)

type Status string

const (
	StatusPending Status = "pending"
	StatusWon     Status = "won"
	StatusLost    Status = "lost"
	StatusVoid    Status = "void"
)

// Limites de stake. Tokens são inteiros (menor unidade).
const (
	MinStake        = 1
	MaxStake        = 1000
	MaxParlayLegs   = 3
	MaxParlayTotal  = 3000 // 3 posições x 1000
	PodiumPositions = 3

	// Janela de cancelamento contada a partir da criação da aposta.
	CancelWindow = time.Hour
)

// Driver é o snapshot de um piloto no momento da aposta. Rank é a posição no
// campeonato (1 = líder) e é o que o settlement usa para recalcular odds.
type Driver struct {
	Number int
	Name   string
	Team   string
	Rank   int
}

// Leg é uma perna de parlay: piloto X termina exatamente na posição P.
type Leg struct {
	Position     int // 1..3
	DriverNumber int
	DriverName   string
	RankAtBet    int
	Stake        int64
	Odds         float64 // odd calculada pelo servidor na criação
	ClientOdds   float64 // dica enviada pelo cliente; nunca paga nada
	Won          bool    // preenchido no settlement
}

// Wager é uma aposta. Imutável depois de criada, exceto status e campos de
// settlement; cancelamento remove o registro.
type Wager struct {
	ID         string
	UserID     string
	RaceID     string
	RaceName   string
	Kind       Kind
	StakeTotal int64
	Status     Status
	Payout     int64

	// Campos h2h
	DriverA         Driver
	DriverB         Driver
	MatchupID       string // "menorNum_maiorNum", para dedup futura por par
	PredictedWinner int
	Odds            float64
	ClientOdds      float64
	PotentialPayout int64

	// Campos parlay
	Legs []Leg

	VoidReason string
	CreatedAt  time.Time
	SettledAt  *time.Time
}
