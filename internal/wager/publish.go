package wager

import (
	"context"
	"encoding/json"

	"github.com/radieske/f1-wager-engine/internal/shared/kafka"
	"github.com/radieske/f1-wager-engine/pkg/contracts/events"
)

// KafkaPublisher emite os eventos de aposta nos tópicos dedicados.
type KafkaPublisher struct {
	placed    *kafka.Writer
	cancelled *kafka.Writer
}

func NewKafkaPublisher(placed, cancelled *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{placed: placed, cancelled: cancelled}
}

func (p *KafkaPublisher) WagerPlaced(ctx context.Context, ev events.WagerPlaced) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return kafka.WriteJSON(ctx, p.placed, ev.UserID, payload)
}

func (p *KafkaPublisher) WagerCancelled(ctx context.Context, ev events.WagerCancelled) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return kafka.WriteJSON(ctx, p.cancelled, ev.UserID, payload)
}
