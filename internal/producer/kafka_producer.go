package producer

import (
	"context"
	"encoding/json"
	"time"

	"warehouse-service/internal/service"

	"github.com/segmentio/kafka-go"
)

type MovementProducer struct {
	writer *kafka.Writer
}

func NewMovementProducer(brokers []string, topic string) *MovementProducer {
	return &MovementProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

// messageKey: ключ по ячейке, чтобы движения одной ячейки попадали в одну партицию и шли по порядку.
func messageKey(ev service.MovementEvent) []byte {
	return []byte(ev.ProductID.String() + ":" + ev.LocationID.String())
}

func buildMessages(events []service.MovementEvent) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, kafka.Message{
			Key:   messageKey(ev),
			Value: value,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(ev.Type)},
			},
		})
	}
	return msgs, nil
}

func (p *MovementProducer) PublishMovements(ctx context.Context, events []service.MovementEvent) error {
	if len(events) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	msgs, err := buildMessages(events)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *MovementProducer) Close() error {
	return p.writer.Close()
}
