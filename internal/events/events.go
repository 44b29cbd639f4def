// Package events publishes domain events after the owning transaction has
// committed. Publishing is best effort: failures are logged and never change
// the outcome of the operation that produced the event.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event types.
const (
	OrderCreated        = "order.created"
	OrderDelivered      = "order.delivered"
	OrderCancelled      = "order.cancelled"
	RefundRequested     = "refund.requested"
	RefundStatusChanged = "refund.status_changed"
	RefundEscalated     = "refund.escalated"
)

// Envelope wraps every event payload.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Key           string          `json:"-"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into a versioned envelope. key partitions the
// stream, usually an order ID.
func NewEnvelope(producer, eventType, key string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: key,
		Key:           key,
		Payload:       data,
	}, nil
}

// Publisher delivers envelopes to a broker.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// Emitter is what services depend on.
type Emitter interface {
	Emit(ctx context.Context, eventType, key string, payload any)
}

// Bus builds envelopes and hands them to a Publisher, logging failures.
type Bus struct {
	publisher Publisher
	producer  string
	logger    zerolog.Logger
}

// NewBus creates a Bus.
func NewBus(publisher Publisher, producer string, logger zerolog.Logger) *Bus {
	return &Bus{
		publisher: publisher,
		producer:  producer,
		logger:    logger.With().Str("component", "events").Logger(),
	}
}

// Emit publishes one event. It never fails the caller.
func (b *Bus) Emit(ctx context.Context, eventType, key string, payload any) {
	env, err := NewEnvelope(b.producer, eventType, key, payload)
	if err != nil {
		b.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to build event")
		return
	}

	// The request context may already be cancelled once the response is written.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := b.publisher.Publish(ctx, env); err != nil {
		b.logger.Warn().Err(err).
			Str("event_type", eventType).
			Str("event_id", env.EventID).
			Str("key", key).
			Msg("failed to publish event")
		return
	}

	b.logger.Debug().
		Str("event_type", eventType).
		Str("event_id", env.EventID).
		Msg("event published")
}

// Close closes the underlying publisher.
func (b *Bus) Close() error {
	return b.publisher.Close()
}

// NopPublisher discards events. It backs EVENTS_DRIVER=none.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Envelope) error { return nil }
func (NopPublisher) Close() error                            { return nil }
