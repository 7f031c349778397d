package settlement

import (
	"context"
	"encoding/json"

	"github.com/radieske/f1-wager-engine/internal/shared/kafka"
	"github.com/radieske/f1-wager-engine/pkg/contracts/events"
)

// KafkaPublisher emite o evento de corrida liquidada.
type KafkaPublisher struct {
	settled *kafka.Writer
}

func NewKafkaPublisher(settled *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{settled: settled}
}

func (p *KafkaPublisher) RaceSettled(ctx context.Context, ev events.RaceSettled) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return kafka.WriteJSON(ctx, p.settled, ev.RaceID, payload)
}
