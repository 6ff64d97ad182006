package bus

import (
	"context"
	"sync"

	"boutique-backend/internal/domain/event"

	"go.uber.org/zap"
)

// EventHandler handles domain events
type EventHandler interface {
	Handle(ctx context.Context, evt event.Event) error
}

// EventHandlerFunc allows functions to implement EventHandler
type EventHandlerFunc func(ctx context.Context, evt event.Event) error

func (f EventHandlerFunc) Handle(ctx context.Context, evt event.Event) error {
	return f(ctx, evt)
}

// Subscription identifies one registered handler so it can be removed
type Subscription struct {
	EventType string
	id        uint64
}

type registration struct {
	id      uint64
	handler EventHandler
}

// EventBus fans out domain events to registered handlers. Each handler runs
// in its own goroutine; a failing handler is logged and never prevents the
// others from running or fails the publish. The bus is an explicit,
// constructed object with process-scoped lifetime, passed to whoever needs
// to publish or subscribe.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string][]registration
	nextID   uint64
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		handlers: make(map[string][]registration),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event type. Multiple handlers per
// type are allowed.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], registration{
		id:      b.nextID,
		handler: handler,
	})
	return Subscription{EventType: eventType, id: b.nextID}
}

// Unsubscribe removes a previously registered handler. It reports whether
// the subscription was still active.
func (b *EventBus) Unsubscribe(sub Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.handlers[sub.EventType]
	for i, reg := range regs {
		if reg.id == sub.id {
			b.handlers[sub.EventType] = append(regs[:i], regs[i+1:]...)
			if len(b.handlers[sub.EventType]) == 0 {
				delete(b.handlers, sub.EventType)
			}
			return true
		}
	}
	return false
}

// Publish invokes all handlers registered for the event's type
// concurrently. Publishing with no registered handlers is a successful
// no-op.
func (b *EventBus) Publish(ctx context.Context, evt event.Event) error {
	b.mu.RLock()
	regs := make([]registration, len(b.handlers[evt.EventType]))
	copy(regs, b.handlers[evt.EventType])
	b.mu.RUnlock()

	if len(regs) == 0 {
		return nil
	}

	b.wg.Add(len(regs))
	for _, reg := range regs {
		go b.dispatch(ctx, reg.handler, evt)
	}
	return nil
}

// PublishBatch publishes each event independently; partial failure is
// counted, not escalated.
func (b *EventBus) PublishBatch(ctx context.Context, events []event.Event) (int, error) {
	published := 0
	for _, evt := range events {
		if err := b.Publish(ctx, evt); err != nil {
			b.logger.Warn("failed to publish event",
				zap.String("event_type", evt.EventType),
				zap.String("event_id", evt.EventID),
				zap.Error(err),
			)
			continue
		}
		published++
	}
	return published, nil
}

// Statistics returns handler counts per event type
func (b *EventBus) Statistics() map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := make(map[string]int, len(b.handlers))
	for eventType, regs := range b.handlers {
		stats[eventType] = len(regs)
	}
	return stats
}

// Clear removes all subscriptions
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[string][]registration)
}

// Wait blocks until all in-flight handlers have completed. Used for
// draining on shutdown and for deterministic tests.
func (b *EventBus) Wait() {
	b.wg.Wait()
}

func (b *EventBus) dispatch(ctx context.Context, handler EventHandler, evt event.Event) {
	defer b.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("event_type", evt.EventType),
				zap.String("event_id", evt.EventID),
				zap.Any("panic", r),
			)
		}
	}()

	if err := handler.Handle(ctx, evt); err != nil {
		b.logger.Error("event handler failed",
			zap.String("event_type", evt.EventType),
			zap.String("event_id", evt.EventID),
			zap.String("aggregate_id", evt.AggregateID),
			zap.Error(err),
		)
	}
}
