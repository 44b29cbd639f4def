package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes each event type to its own topic, keyed so that all
// events of one order land on the same partition.
type KafkaPublisher struct {
	writer      messageWriter
	topicPrefix string
}

// NewKafkaPublisher creates an asynchronous writer. Delivery errors surface
// through the completion callback and are logged.
func NewKafkaPublisher(brokers []string, topicPrefix string, logger zerolog.Logger) *KafkaPublisher {
	logger = logger.With().Str("component", "kafka").Logger()

	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error().Err(err).Int("messages", len(messages)).Msg("kafka delivery failed")
			}
		},
	}

	return &KafkaPublisher{writer: w, topicPrefix: topicPrefix}
}

// Publish enqueues env on the topic named after its type.
func (p *KafkaPublisher) Publish(ctx context.Context, env Envelope) error {
	msg, err := p.message(env)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) message(env Envelope) (kafka.Message, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return kafka.Message{
		Topic: p.topicPrefix + env.EventType,
		Key:   []byte(env.Key),
		Value: body,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(env.EventType)},
			{Key: "event_id", Value: []byte(env.EventID)},
		},
	}, nil
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
