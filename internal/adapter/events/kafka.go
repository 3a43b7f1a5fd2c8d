package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/segmentio/kafka-go"

	"github.com/atlasbank/mailtriage/internal/core/ports"
)

// KafkaPublisher emits routing decisions to a Kafka topic for the downstream
// dispatch step (auto-response delivery, agent-queue ingestion, BI).
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for the decisions topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// PublishDecision sends one routing decision, keyed by contact id.
func (p *KafkaPublisher) PublishDecision(ctx context.Context, event ports.DecisionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal decision event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.ContactID),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write decision event: %w", err)
	}

	log.Printf("📤 Decision event published: %s -> %s", event.ContactID, event.Outcome)
	return nil
}

// Close closes the Kafka writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
