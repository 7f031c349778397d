package settlement

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Checker é o passo executado a cada ciclo do scheduler.
type Checker interface {
	CheckOnce(ctx context.Context) (clean bool, err error)
}

// Scheduler roda o settlement num ciclo adaptativo: intervalo normal quando a
// última passada fechou limpa, intervalo curto de retry enquanto houver erro
// ou aposta pendente. A primeira passada é imediata.
type Scheduler struct {
	log    *zap.Logger
	engine Checker
	normal time.Duration
	retry  time.Duration
}

func NewScheduler(log *zap.Logger, engine Checker, normal, retry time.Duration) *Scheduler {
	return &Scheduler{log: log, engine: engine, normal: normal, retry: retry}
}

// Run bloqueia até o contexto ser cancelado.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		clean, err := s.engine.CheckOnce(ctx)

		next := s.normal
		switch {
		case err != nil:
			next = s.retry
			s.log.Error("settlement check failed", zap.Error(err), zap.Duration("retry_in", next))
		case !clean:
			next = s.retry
			s.log.Warn("settlement left pending wagers", zap.Duration("retry_in", next))
		default:
			s.log.Debug("settlement check clean", zap.Duration("next_in", next))
		}

		timer := time.NewTimer(next)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
