// Package fulfillment moves confirmed orders to delivered once the delivery
// delay has passed.
package fulfillment

import (
	"context"
	"sync"
	"time"

	"commerce-core/internal/events"
	"commerce-core/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OrderStore is the subset of the order repository the scheduler needs.
type OrderStore interface {
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
	ConfirmedBefore(ctx context.Context, t time.Time) ([]model.Order, error)
}

// Scheduler fires one timer per confirmed order. Pending timers are dropped
// on Close; Recover picks them up again on the next start.
type Scheduler struct {
	orders  OrderStore
	emitter events.Emitter
	delay   time.Duration
	logger  zerolog.Logger

	mu      sync.Mutex
	timers  map[uuid.UUID]*time.Timer
	closed  bool
	running sync.WaitGroup
}

// NewScheduler creates a Scheduler that delivers orders delay after checkout.
func NewScheduler(orders OrderStore, emitter events.Emitter, delay time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		orders:  orders,
		emitter: emitter,
		delay:   delay,
		logger:  logger.With().Str("component", "fulfillment").Logger(),
		timers:  make(map[uuid.UUID]*time.Timer),
	}
}

// Schedule arranges delivery of order. Scheduling the same order twice keeps
// the first timer.
func (s *Scheduler) Schedule(order model.Order) {
	wait := time.Until(order.CreatedAt.Add(s.delay))
	if wait < 0 {
		wait = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if _, ok := s.timers[order.ID]; ok {
		return
	}

	s.timers[order.ID] = time.AfterFunc(wait, func() {
		s.fire(order)
	})
}

func (s *Scheduler) fire(order model.Order) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.timers, order.ID)
	s.running.Add(1)
	s.mu.Unlock()
	defer s.running.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.deliver(ctx, order)
}

func (s *Scheduler) deliver(ctx context.Context, order model.Order) {
	ok, err := s.orders.MarkDelivered(ctx, order.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to mark order delivered")
		return
	}
	if !ok {
		s.logger.Debug().Str("order_id", order.ID.String()).Msg("order no longer confirmed, skipping delivery")
		return
	}

	s.logger.Info().Str("order_id", order.ID.String()).Msg("order delivered")
	s.emitter.Emit(ctx, events.OrderDelivered, order.ID.String(), map[string]any{
		"order_id": order.ID,
		"user_id":  order.UserID,
	})
}

// Recover schedules every order still confirmed, delivering those already
// past their delay immediately. It is called once at start-up.
func (s *Scheduler) Recover(ctx context.Context) error {
	orders, err := s.orders.ConfirmedBefore(ctx, time.Now())
	if err != nil {
		return err
	}
	for _, o := range orders {
		s.Schedule(o)
	}
	if len(orders) > 0 {
		s.logger.Info().Int("orders", len(orders)).Msg("rescheduled pending deliveries")
	}
	return nil
}

// Pending returns the number of timers not yet fired.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close stops pending timers and waits for deliveries in flight.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.running.Wait()
}
