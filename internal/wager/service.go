package wager

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/f1-wager-engine/internal/odds"
	"github.com/radieske/f1-wager-engine/internal/race"
	"github.com/radieske/f1-wager-engine/pkg/contracts/events"
)

// Store persiste apostas. Criação e cancelamento incluem a mutação de saldo
// no mesmo passo atômico.
type Store interface {
	CreateParlay(ctx context.Context, w *Wager) error
	CreateHeadToHead(ctx context.Context, w *Wager) error
	Cancel(ctx context.Context, wagerID, userID string, now time.Time) (Wager, error)
	Get(ctx context.Context, wagerID string) (Wager, error)
	ListByUser(ctx context.Context, userID, raceID string) ([]Wager, error)
}

// Calendar dá acesso ao calendário de corridas.
type Calendar interface {
	Get(ctx context.Context, raceID string) (race.Race, error)
}

// Pools mantém os pools de stake para odds pari-mutuel de exibição.
// Melhor esforço: erro aqui nunca derruba uma aposta.
type Pools interface {
	Add(ctx context.Context, raceID string, driverNumber int, stake int64) error
	Remove(ctx context.Context, raceID string, driverNumber int, stake int64) error
	Pools(ctx context.Context, raceID string, driverNumber int) (int64, int64, error)
}

// Publisher emite os eventos de aposta no broker.
type Publisher interface {
	WagerPlaced(ctx context.Context, ev events.WagerPlaced) error
	WagerCancelled(ctx context.Context, ev events.WagerCancelled) error
}

type Service struct {
	log      *zap.Logger
	store    Store
	calendar Calendar
	pools    Pools
	publ     Publisher
	now      func() time.Time
}

func NewService(log *zap.Logger, store Store, calendar Calendar, pools Pools, publ Publisher) *Service {
	return &Service{
		log:      log,
		store:    store,
		calendar: calendar,
		pools:    pools,
		publ:     publ,
		now:      time.Now,
	}
}

type ParlayLegInput struct {
	Position     int
	DriverNumber int
	DriverName   string
	SeasonRank   int
	Stake        int64
	ClientOdds   float64
}

type PlaceParlayInput struct {
	RaceID string
	Legs   []ParlayLegInput
}

type DriverInput struct {
	Number     int
	Name       string
	Team       string
	SeasonRank int
}

type PlaceHeadToHeadInput struct {
	RaceID          string
	DriverA         DriverInput
	DriverB         DriverInput
	PredictedWinner int
	Stake           int64
	ClientOdds      float64
}

// PlaceParlay valida e cria uma aposta de pódio. As odds enviadas pelo
// cliente são ignoradas para pagamento: o servidor recalcula tudo a partir
// do ranking de temporada.
func (s *Service) PlaceParlay(ctx context.Context, userID string, in PlaceParlayInput) (Wager, error) {
	if userID == "" || in.RaceID == "" {
		return Wager{}, fmt.Errorf("%w: missing user or race", ErrValidation)
	}
	if len(in.Legs) < 1 || len(in.Legs) > MaxParlayLegs {
		return Wager{}, fmt.Errorf("%w: parlay needs 1 to %d legs", ErrValidation, MaxParlayLegs)
	}

	seen := make(map[int]bool, len(in.Legs))
	var total int64
	legs := make([]Leg, 0, len(in.Legs))
	for _, li := range in.Legs {
		if li.Position < 1 || li.Position > PodiumPositions {
			return Wager{}, fmt.Errorf("%w: position must be 1..%d", ErrValidation, PodiumPositions)
		}
		if seen[li.Position] {
			return Wager{}, fmt.Errorf("%w: duplicate position %d", ErrValidation, li.Position)
		}
		seen[li.Position] = true
		if li.DriverNumber <= 0 {
			return Wager{}, fmt.Errorf("%w: invalid driver number", ErrValidation)
		}
		if li.Stake < MinStake || li.Stake > MaxStake {
			return Wager{}, fmt.Errorf("%w: stake must be %d..%d", ErrValidation, MinStake, MaxStake)
		}

		o := odds.FromRank(li.SeasonRank)
		if o < odds.LowOddsThreshold && li.Stake > odds.LowOddsMaxStake {
			return Wager{}, fmt.Errorf("%w: stake above %d not allowed at odds below %.2f",
				ErrValidation, odds.LowOddsMaxStake, odds.LowOddsThreshold)
		}

		total += li.Stake
		legs = append(legs, Leg{
			Position:     li.Position,
			DriverNumber: li.DriverNumber,
			DriverName:   li.DriverName,
			RankAtBet:    li.SeasonRank,
			Stake:        li.Stake,
			Odds:         o,
			ClientOdds:   li.ClientOdds,
		})
	}
	if total > MaxParlayTotal {
		return Wager{}, fmt.Errorf("%w: total stake above %d", ErrValidation, MaxParlayTotal)
	}

	rc, err := s.calendar.Get(ctx, in.RaceID)
	if err != nil {
		return Wager{}, err
	}
	if !rc.BettingOpen(s.now()) {
		return Wager{}, ErrBettingClosed
	}

	var potential int64
	for _, l := range legs {
		potential += odds.Payout(l.Stake, l.Odds)
	}

	w := Wager{
		UserID:          userID,
		RaceID:          rc.ID,
		RaceName:        rc.Name,
		Kind:            KindParlay,
		StakeTotal:      total,
		Legs:            legs,
		PotentialPayout: potential,
	}
	if err := s.store.CreateParlay(ctx, &w); err != nil {
		return Wager{}, err
	}

	for _, l := range legs {
		if err := s.pools.Add(ctx, w.RaceID, l.DriverNumber, l.Stake); err != nil {
			s.log.Warn("pool update failed", zap.String("race_id", w.RaceID), zap.Error(err))
			break
		}
	}
	s.publishPlaced(ctx, w, 0)

	s.log.Info("parlay wager placed",
		zap.String("wager_id", w.ID),
		zap.String("race_id", w.RaceID),
		zap.Int64("stake_total", w.StakeTotal),
		zap.Int("legs", len(w.Legs)))
	return w, nil
}

// PlaceHeadToHead valida e cria um confronto direto entre dois pilotos.
func (s *Service) PlaceHeadToHead(ctx context.Context, userID string, in PlaceHeadToHeadInput) (Wager, error) {
	if userID == "" || in.RaceID == "" {
		return Wager{}, fmt.Errorf("%w: missing user or race", ErrValidation)
	}
	if in.DriverA.Number <= 0 || in.DriverB.Number <= 0 || in.DriverA.Number == in.DriverB.Number {
		return Wager{}, fmt.Errorf("%w: matchup needs two distinct drivers", ErrValidation)
	}
	if in.PredictedWinner != in.DriverA.Number && in.PredictedWinner != in.DriverB.Number {
		return Wager{}, fmt.Errorf("%w: predicted winner must be one of the matchup drivers", ErrValidation)
	}
	if in.Stake < MinStake || in.Stake > MaxStake {
		return Wager{}, fmt.Errorf("%w: stake must be %d..%d", ErrValidation, MinStake, MaxStake)
	}

	oddsA, oddsB := odds.HeadToHead(in.DriverA.SeasonRank, in.DriverB.SeasonRank)
	o := oddsA
	if in.PredictedWinner == in.DriverB.Number {
		o = oddsB
	}
	if o < odds.LowOddsThreshold && in.Stake > odds.LowOddsMaxStake {
		return Wager{}, fmt.Errorf("%w: stake above %d not allowed at odds below %.2f",
			ErrValidation, odds.LowOddsMaxStake, odds.LowOddsThreshold)
	}

	rc, err := s.calendar.Get(ctx, in.RaceID)
	if err != nil {
		return Wager{}, err
	}
	if !rc.BettingOpen(s.now()) {
		return Wager{}, ErrBettingClosed
	}

	lo, hi := in.DriverA.Number, in.DriverB.Number
	if lo > hi {
		lo, hi = hi, lo
	}

	w := Wager{
		UserID:          userID,
		RaceID:          rc.ID,
		RaceName:        rc.Name,
		Kind:            KindH2H,
		StakeTotal:      in.Stake,
		DriverA:         Driver{Number: in.DriverA.Number, Name: in.DriverA.Name, Team: in.DriverA.Team, Rank: in.DriverA.SeasonRank},
		DriverB:         Driver{Number: in.DriverB.Number, Name: in.DriverB.Name, Team: in.DriverB.Team, Rank: in.DriverB.SeasonRank},
		MatchupID:       fmt.Sprintf("%d_%d", lo, hi),
		PredictedWinner: in.PredictedWinner,
		Odds:            o,
		ClientOdds:      in.ClientOdds,
		PotentialPayout: odds.Payout(in.Stake, o),
	}
	if err := s.store.CreateHeadToHead(ctx, &w); err != nil {
		return Wager{}, err
	}

	s.publishPlaced(ctx, w, o)

	s.log.Info("h2h wager placed",
		zap.String("wager_id", w.ID),
		zap.String("race_id", w.RaceID),
		zap.String("matchup_id", w.MatchupID),
		zap.Int64("stake", w.StakeTotal),
		zap.Float64("odds", o))
	return w, nil
}

// Cancel desfaz uma aposta pendente do próprio usuário dentro da janela de
// uma hora, desde que a corrida ainda não tenha largado. O reembolso
// acontece na mesma transação da remoção.
func (s *Service) Cancel(ctx context.Context, userID, wagerID string) (Wager, error) {
	if userID == "" || wagerID == "" {
		return Wager{}, fmt.Errorf("%w: missing user or wager id", ErrValidation)
	}

	now := s.now()

	cur, err := s.store.Get(ctx, wagerID)
	if err != nil {
		return Wager{}, err
	}
	// Sem calendário não dá para provar que a corrida ainda não largou;
	// cancelamento falha fechado.
	rc, err := s.calendar.Get(ctx, cur.RaceID)
	if err != nil {
		return Wager{}, err
	}
	if rc.Started(now) {
		return Wager{}, ErrBettingClosed
	}

	w, err := s.store.Cancel(ctx, wagerID, userID, now)
	if err != nil {
		return Wager{}, err
	}

	if w.Kind == KindParlay {
		for _, l := range w.Legs {
			if err := s.pools.Remove(ctx, w.RaceID, l.DriverNumber, l.Stake); err != nil {
				s.log.Warn("pool update failed", zap.String("race_id", w.RaceID), zap.Error(err))
				break
			}
		}
	}

	if err := s.publ.WagerCancelled(ctx, events.WagerCancelled{
		WagerID:      w.ID,
		UserID:       w.UserID,
		RaceID:       w.RaceID,
		RefundAmount: w.StakeTotal,
		TsUnixMs:     now.UnixMilli(),
	}); err != nil {
		s.log.Warn("publish wager_cancelled failed", zap.Error(err))
	}

	s.log.Info("wager cancelled",
		zap.String("wager_id", w.ID),
		zap.Int64("refund", w.StakeTotal))
	return w, nil
}

// List retorna as apostas do usuário, opcionalmente filtradas por corrida.
func (s *Service) List(ctx context.Context, userID, raceID string) ([]Wager, error) {
	return s.store.ListByUser(ctx, userID, raceID)
}

// LiveOdds retorna a odd pari-mutuel de exibição para um piloto numa corrida.
// Falha de cache degrada para a odd baseline por ranking.
func (s *Service) LiveOdds(ctx context.Context, raceID string, driverNumber, seasonRank int) float64 {
	outcome, total, err := s.pools.Pools(ctx, raceID, driverNumber)
	if err != nil {
		s.log.Warn("pool read failed", zap.String("race_id", raceID), zap.Error(err))
		return odds.FromRank(seasonRank)
	}
	return odds.Live(outcome, total, seasonRank)
}

func (s *Service) publishPlaced(ctx context.Context, w Wager, serverOdds float64) {
	ev := events.WagerPlaced{
		WagerID:    w.ID,
		UserID:     w.UserID,
		RaceID:     w.RaceID,
		Kind:       string(w.Kind),
		StakeTotal: w.StakeTotal,
		ServerOdds: serverOdds,
		TsUnixMs:   s.now().UnixMilli(),
	}
	if err := s.publ.WagerPlaced(ctx, ev); err != nil {
		s.log.Warn("publish wager_placed failed", zap.Error(err))
	}
}
