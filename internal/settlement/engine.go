package settlement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/f1-wager-engine/internal/results"
	"github.com/radieske/f1-wager-engine/internal/wager"
	"github.com/radieske/f1-wager-engine/pkg/contracts/events"
)

const (
	batchSize     = 200
	batchAttempts = 3

	// Divergências entre odd recalculada e odd do cliente acima destes
	// limiares geram telemetria. Pagamento não muda: sempre odd do servidor.
	mismatchMinor  = 0.5
	mismatchSevere = 1.0
)

// Store é o acesso a dados usado pelo engine de settlement.
type Store interface {
	SettledRaceIDs(ctx context.Context) ([]string, error)
	PendingWagers(ctx context.Context, raceID string, kind wager.Kind) ([]wager.Wager, error)
	ApplyBatch(ctx context.Context, batch []Resolution) (applied []Resolution, err error)
	CountPending(ctx context.Context, raceID string) (int, error)
	SaveRecord(ctx context.Context, rec Record) error
}

// Feed entrega resultados oficiais de corrida.
type Feed interface {
	Latest(ctx context.Context, season int) (*results.RaceResult, error)
	Round(ctx context.Context, season, round int) (*results.RaceResult, error)
}

// Publisher emite o evento de corrida liquidada.
type Publisher interface {
	RaceSettled(ctx context.Context, ev events.RaceSettled) error
}

// Engine liquida corridas: busca o resultado oficial, decide cada aposta
// pendente e aplica em lotes transacionais. Reexecutar sobre uma corrida já
// liquidada é sempre inofensivo.
type Engine struct {
	log    *zap.Logger
	store  Store
	feed   Feed
	publ   Publisher
	season int

	// retryDelay é a base do backoff entre tentativas de lote (delay * tentativa).
	retryDelay time.Duration

	mu      sync.Mutex
	settled map[string]bool
}

func New(log *zap.Logger, store Store, feed Feed, publ Publisher, season int) *Engine {
	return &Engine{
		log:        log,
		store:      store,
		feed:       feed,
		publ:       publ,
		season:     season,
		retryDelay: 2 * time.Second,
		settled:    make(map[string]bool),
	}
}

// Init carrega o conjunto de corridas já liquidadas. Sem esse conjunto o
// engine não pode rodar: pagaria de novo corridas antigas do feed.
func (e *Engine) Init(ctx context.Context) error {
	ids, err := e.store.SettledRaceIDs(ctx)
	if err != nil {
		return fmt.Errorf("load settled races: %w", err)
	}

	e.mu.Lock()
	for _, id := range ids {
		e.settled[id] = true
	}
	e.mu.Unlock()

	e.log.Info("settled races loaded", zap.Int("count", len(ids)))
	return nil
}

// CheckOnce busca o resultado mais recente da temporada e liquida a corrida
// se ainda não foi. Retorna clean=true quando não sobrou nada pendente.
func (e *Engine) CheckOnce(ctx context.Context) (bool, error) {
	res, err := e.feed.Latest(ctx, e.season)
	if err != nil {
		return false, err
	}
	if res == nil {
		// Nenhum resultado publicado ainda; nada a fazer.
		return true, nil
	}
	if e.isSettled(res.RaceID()) {
		return true, nil
	}
	return e.Settle(ctx, res)
}

// SettleRound liquida uma rodada específica. Usado pelo gatilho manual.
func (e *Engine) SettleRound(ctx context.Context, round int) (bool, error) {
	res, err := e.feed.Round(ctx, e.season, round)
	if err != nil {
		return false, err
	}
	if res == nil {
		return false, fmt.Errorf("no results published for round %d", round)
	}
	return e.Settle(ctx, res)
}

// Settle liquida os dois mercados de uma corrida. O registro de auditoria só
// é gravado quando a corrida fecha sem nenhuma aposta pendente; lote que
// esgotou as tentativas fica para a próxima rodada do scheduler.
func (e *Engine) Settle(ctx context.Context, res *results.RaceResult) (bool, error) {
	raceID := res.RaceID()
	if e.isSettled(raceID) {
		return true, nil
	}

	log := e.log.With(zap.String("race_id", raceID), zap.String("race_name", res.RaceName))
	log.Info("settlement started", zap.Int("results", len(res.Results)))

	cl := results.Classify(res.Results)

	h2h := e.settleMarket(ctx, log, raceID, cl, wager.KindH2H)
	parlay := e.settleMarket(ctx, log, raceID, cl, wager.KindParlay)

	pending, err := e.store.CountPending(ctx, raceID)
	if err != nil {
		return false, err
	}
	if pending > 0 {
		log.Warn("settlement incomplete, wagers still pending", zap.Int("pending", pending))
		return false, nil
	}

	rec := Record{
		RaceID:      raceID,
		RaceName:    res.RaceName,
		Season:      res.Season,
		Round:       res.Round,
		H2H:         h2h,
		Parlay:      parlay,
		CompletedAt: time.Now().UTC(),
	}
	if err := e.store.SaveRecord(ctx, rec); err != nil {
		return false, err
	}
	e.markSettled(raceID)
	racesSettled.Inc()

	if err := e.publ.RaceSettled(ctx, events.RaceSettled{
		RaceID:      rec.RaceID,
		RaceName:    rec.RaceName,
		Season:      rec.Season,
		Round:       rec.Round,
		H2H:         rec.H2H,
		Parlay:      rec.Parlay,
		CompletedAt: rec.CompletedAt,
	}); err != nil {
		log.Warn("publish race_settled failed", zap.Error(err))
	}

	log.Info("settlement completed",
		zap.Int("h2h_total", h2h.Total),
		zap.Int("parlay_total", parlay.Total))
	return true, nil
}

func (e *Engine) settleMarket(ctx context.Context, log *zap.Logger, raceID string, cl results.Classification, kind wager.Kind) events.MarketSummary {
	var summary events.MarketSummary

	pending, err := e.store.PendingWagers(ctx, raceID, kind)
	if err != nil {
		log.Error("fetch pending wagers failed", zap.String("kind", string(kind)), zap.Error(err))
		return summary
	}
	if len(pending) == 0 {
		return summary
	}

	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}

		batch := make([]Resolution, 0, end-start)
		for _, w := range pending[start:end] {
			var r Resolution
			if kind == wager.KindH2H {
				r = resolveHeadToHead(w, cl)
			} else {
				r = resolveParlay(w, cl)
			}
			e.observeMismatch(log, r)
			batch = append(batch, r)
		}

		applied, err := e.applyWithRetry(ctx, batch)
		if err != nil {
			batchFailures.Inc()
			log.Error("settlement batch failed, leaving wagers pending",
				zap.String("kind", string(kind)),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			continue
		}

		// Só o que o lote efetivou conta: aposta que saiu de pending por
		// fora (cancelamento, gatilho manual concorrente) fica de fora.
		for _, r := range applied {
			wagersSettled.WithLabelValues(string(r.Kind), string(r.Status)).Inc()
			summary.Total++
			switch r.Status {
			case wager.StatusWon:
				summary.Won++
			case wager.StatusLost:
				summary.Lost++
			case wager.StatusVoid:
				summary.Void++
			}
		}
	}
	return summary
}

func (e *Engine) applyWithRetry(ctx context.Context, batch []Resolution) ([]Resolution, error) {
	var err error
	for attempt := 1; attempt <= batchAttempts; attempt++ {
		var applied []Resolution
		if applied, err = e.store.ApplyBatch(ctx, batch); err == nil {
			return applied, nil
		}
		if attempt < batchAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.retryDelay * time.Duration(attempt)):
			}
		}
	}
	return nil, err
}

func (e *Engine) observeMismatch(log *zap.Logger, r Resolution) {
	switch {
	case r.OddsDelta >= mismatchSevere:
		oddsMismatches.WithLabelValues("severe").Inc()
		log.Warn("client odds far from recalculated odds",
			zap.String("wager_id", r.WagerID),
			zap.Float64("delta", r.OddsDelta))
	case r.OddsDelta >= mismatchMinor:
		oddsMismatches.WithLabelValues("minor").Inc()
	}
}

func (e *Engine) isSettled(raceID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settled[raceID]
}

func (e *Engine) markSettled(raceID string) {
	e.mu.Lock()
	e.settled[raceID] = true
	e.mu.Unlock()
}
