package wager

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/f1-wager-engine/internal/shared/kafka"
	"github.com/radieske/f1-wager-engine/pkg/contracts/events"
)

// PoolPurger apaga os pools de odds ao vivo de uma corrida.
type PoolPurger interface {
	Purge(ctx context.Context, raceID string) error
}

// SettledConsumer consome race_settled e limpa os pools da corrida no Redis:
// mercado fechado não tem odd ao vivo. A limpeza é melhor esforço, o TTL das
// chaves cobre mensagem perdida.
type SettledConsumer struct {
	log    *zap.Logger
	reader *kafkago.Reader
	pools  PoolPurger
}

func NewSettledConsumer(log *zap.Logger, reader *kafkago.Reader, pools PoolPurger) *SettledConsumer {
	return &SettledConsumer{log: log, reader: reader, pools: pools}
}

// Run bloqueia consumindo o tópico até o contexto ser cancelado.
func (c *SettledConsumer) Run(ctx context.Context) {
	for {
		_, value, err := kafka.ReadNext(ctx, c.reader)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		var ev events.RaceSettled
		if err := json.Unmarshal(value, &ev); err != nil {
			c.log.Error("unmarshal race_settled", zap.Error(err))
			continue
		}

		if err := c.pools.Purge(ctx, ev.RaceID); err != nil {
			c.log.Warn("pool purge failed", zap.String("race_id", ev.RaceID), zap.Error(err))
			continue
		}
		c.log.Info("pools purged for settled race", zap.String("race_id", ev.RaceID))
	}
}
