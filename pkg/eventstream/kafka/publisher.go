// Package kafka publishes relay events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/devlens/gateway/pkg/eventstream"
)

const defaultBatchTimeout = 50 * time.Millisecond

// Config configures a Publisher.
type Config struct {
	// Brokers is the list of bootstrap broker addresses, e.g. "localhost:9092".
	Brokers []string

	// Topic receives every event.
	Topic string

	// BatchTimeout bounds how long a message may wait for a batch to fill.
	// Defaults to 50ms.
	BatchTimeout time.Duration
}

// messageWriter is the subset of *kafkago.Writer used by the publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes one message per event, keyed by trace id so that the
// events of one browser session land on the same partition.
type Publisher struct {
	writer messageWriter
}

// NewPublisher creates a Kafka publisher.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = defaultBatchTimeout
	}

	return newPublisher(&kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		BatchTimeout:           cfg.BatchTimeout,
		AllowAutoTopicCreation: true,
	}), nil
}

func newPublisher(w messageWriter) *Publisher {
	return &Publisher{writer: w}
}

// PublishRelay encodes event as JSON and writes it synchronously.
func (p *Publisher) PublishRelay(ctx context.Context, event *eventstream.RelayCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilRelayEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding relay event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.TraceID),
		Value: value,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: []byte(strconv.Itoa(event.SchemaVersion))},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing relay event %s: %w", event.EventID, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
