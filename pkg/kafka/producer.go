package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/config"
	"github.com/segmentio/kafka-go"
)

// TypeHeader names the message header that carries Event.Key, letting
// consumers route a message before decoding its body.
const TypeHeader = "event_type"

// Event is one analytics record. Key selects the partition and is copied
// into TypeHeader; Value is encoded as JSON.
type Event struct {
	Key   string
	Value any
}

// Producer writes analytics events to a single topic.
type Producer struct {
	writer *kafka.Writer
	topic  string
	logger *slog.Logger
}

// NewProducer creates a synchronous producer for topic. Events that share a
// key stay ordered on one partition.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			MaxAttempts:  3,
			RequiredAcks: kafka.RequireOne,
		},
		topic:  topic,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// PublishBatch writes events in one call. Events whose value cannot be
// encoded are logged and left out; the rest are still written.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	messages, skipped := encodeEvents(events, time.Now().UTC())
	if skipped > 0 {
		p.logger.Warn("unencodable analytics events skipped", "skipped", skipped)
	}
	if len(messages) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.Error("analytics batch write failed", "events", len(messages), "error", err)
		return fmt.Errorf("writing %d events to %s: %w", len(messages), p.topic, err)
	}
	p.logger.Debug("analytics batch written", "events", len(messages))
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

func encodeEvents(events []Event, at time.Time) ([]kafka.Message, int) {
	messages := make([]kafka.Message, 0, len(events))
	skipped := 0
	for _, event := range events {
		value, err := json.Marshal(event.Value)
		if err != nil {
			skipped++
			continue
		}
		messages = append(messages, kafka.Message{
			Key:     []byte(event.Key),
			Value:   value,
			Headers: []kafka.Header{{Key: TypeHeader, Value: []byte(event.Key)}},
			Time:    at,
		})
	}
	return messages, skipped
}
