// Package kafka publishes vector events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/callctx/pkg/eventstream"
)

// DefaultTopic receives vector events when no topic is configured.
const DefaultTopic = "callctx.vectors"

// MessageWriter is the subset of *kafkago.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config configures a Publisher.
type Config struct {
	Brokers []string
	Topic   string

	// Writer overrides the Kafka writer built from Brokers.
	Writer MessageWriter
}

// Publisher writes events as JSON messages keyed by owner ID, so every event
// for one owner lands on the same partition.
type Publisher struct {
	writer MessageWriter
	topic  string
	logger *slog.Logger
}

// NewPublisher creates a Kafka publisher.
func NewPublisher(c Config, logger *slog.Logger) (*Publisher, error) {
	topic := c.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	w := c.Writer
	if w == nil {
		if len(c.Brokers) == 0 {
			return nil, errors.New("kafka brokers are required")
		}
		w = &kafkago.Writer{
			Addr:                   kafkago.TCP(c.Brokers...),
			Topic:                  topic,
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireOne,
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
		}
	}

	logger.Info("kafka event publisher configured", "brokers", c.Brokers, "topic", topic)
	return &Publisher{writer: w, topic: topic, logger: logger}, nil
}

func (p *Publisher) PublishVectorStored(ctx context.Context, event *eventstream.VectorStoredEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.OwnerID),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: fmt.Appendf(nil, "%d", event.SchemaVersion)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing %s to %s: %w", event.EventType, p.topic, err)
	}

	p.logger.Debug("event published", "event_id", event.EventID, "owner_id", event.OwnerID)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
