package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Sink forwards events outside the process.
type Sink interface {
	Send(ctx context.Context, event Event) error
	Close() error
}

// KafkaPublisher writes events as JSON to a single topic keyed by subject.
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaPublisher builds a publisher for brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka publisher requires a topic")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		topic: topic,
	}, nil
}

// Send publishes one event.
func (p *KafkaPublisher) Send(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Type, err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Subject),
		Value: payload,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
}

// Topic returns the destination topic.
func (p *KafkaPublisher) Topic() string {
	return p.topic
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
