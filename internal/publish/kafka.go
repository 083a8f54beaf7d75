package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/sero-sim/scene-engine/internal/models"
)

// messageWriter is the part of *kafka.Writer the publisher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes snapshots as JSON to a Kafka topic, keyed by
// scenario id so one scenario's snapshots stay ordered on a partition.
type KafkaPublisher struct {
	w     messageWriter
	topic string
}

// NewKafkaPublisher creates an asynchronous writer for the topic.
// Delivery errors are logged from the writer's completion callback.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Printf("[KafkaPublisher] Warning: failed to deliver %d snapshot(s) to %s: %v", len(messages), topic, err)
			}
		},
	}
	log.Printf("[KafkaPublisher] Publishing context snapshots to topic=%s brokers=%v", topic, brokers)
	return &KafkaPublisher{w: w, topic: topic}
}

// Publish encodes and writes one snapshot
func (p *KafkaPublisher) Publish(ctx context.Context, snap models.ContextSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(snap.ScenarioID),
		Value: b,
		Time:  snap.GeneratedAt,
		Headers: []kafka.Header{
			{Key: "sequence", Value: []byte(strconv.FormatInt(snap.Sequence, 10))},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write snapshot to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
