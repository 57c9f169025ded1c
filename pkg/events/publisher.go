// Package events publishes domain events through watermill, to Kafka when
// brokers are configured and to an in-process channel otherwise.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"
)

// Metadata keys set on every published message.
const (
	MetadataEventType  = "event_type"
	MetadataSource     = "source"
	MetadataOccurredAt = "occurred_at"
)

const source = "course-enrollment-api"

// Message is a serialisable event ready for publishing.
type Message struct {
	ID         string
	Type       string
	OccurredAt time.Time
	Payload    interface{}
}

// Publisher sends messages to the configured topic.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Config selects and configures the transport.
type Config struct {
	KafkaBrokers []string
	Topic        string
	Logger       *zap.Logger
}

// WatermillPublisher publishes JSON payloads on a single topic.
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
	logger    *zap.Logger
}

// NewPublisher builds a Kafka-backed publisher when brokers are configured and
// an in-process gochannel publisher otherwise.
func NewPublisher(cfg Config) (*WatermillPublisher, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	wmLogger := NewZapLogger(cfg.Logger)

	if len(cfg.KafkaBrokers) == 0 {
		cfg.Logger.Info("no kafka brokers configured, publishing events in-process")
		return NewWatermillPublisher(gochannel.NewGoChannel(gochannel.Config{}, wmLogger), cfg.Topic, cfg.Logger), nil
	}

	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create kafka publisher: %w", err)
	}
	return NewWatermillPublisher(pub, cfg.Topic, cfg.Logger), nil
}

// NewWatermillPublisher wraps an existing watermill publisher.
func NewWatermillPublisher(pub message.Publisher, topic string, logger *zap.Logger) *WatermillPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WatermillPublisher{publisher: pub, topic: topic, logger: logger}
}

// Publish marshals msg.Payload to JSON and sends it with type metadata.
func (p *WatermillPublisher) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", msg.ID, err)
	}

	wm := message.NewMessage(msg.ID, body)
	wm.SetContext(ctx)
	wm.Metadata.Set(MetadataEventType, msg.Type)
	wm.Metadata.Set(MetadataSource, source)
	wm.Metadata.Set(MetadataOccurredAt, msg.OccurredAt.UTC().Format(time.RFC3339))

	if err := p.publisher.Publish(p.topic, wm); err != nil {
		return fmt.Errorf("publish event %s: %w", msg.ID, err)
	}
	p.logger.Debug("event published", zap.String("event_id", msg.ID), zap.String("event_type", msg.Type), zap.String("topic", p.topic))
	return nil
}

// Close releases the underlying transport.
func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}
