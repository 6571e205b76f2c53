package event

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/elysium/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// InMemoryEventBus delivers domain events to subscribed handlers
// synchronously, in the publishing goroutine. A failing handler is
// logged and never blocks the remaining handlers.
type InMemoryEventBus struct {
	mu            sync.RWMutex
	subscriptions map[string][]shared.EventHandler // eventType -> handlers
	catchAll      []shared.EventHandler            // handlers for every event
	logger        *zap.Logger
	running       atomic.Bool
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		subscriptions: make(map[string][]shared.EventHandler),
		logger:        logger,
	}
}

// Publish dispatches events to all registered handlers synchronously
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, evt := range events {
		for _, handler := range b.handlersFor(evt.EventType()) {
			if err := b.dispatch(ctx, handler, evt); err != nil {
				b.logger.Error("event handler failed",
					zap.String("event_type", evt.EventType()),
					zap.String("event_id", evt.EventID().String()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// Subscribe registers a handler for specific event types.
// With no event types the handler's own EventTypes() is used; an empty
// result subscribes the handler to every event.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(eventTypes) == 0 {
		b.catchAll = append(b.catchAll, handler)
	} else {
		for _, eventType := range eventTypes {
			b.subscriptions[eventType] = append(b.subscriptions[eventType], handler)
		}
	}

	b.logger.Debug("event handler subscribed",
		zap.Strings("event_types", eventTypes),
	)
}

// Unsubscribe removes a handler from every event type
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.catchAll = withoutHandler(b.catchAll, handler)
	for eventType, handlers := range b.subscriptions {
		b.subscriptions[eventType] = withoutHandler(handlers, handler)
		if len(b.subscriptions[eventType]) == 0 {
			delete(b.subscriptions, eventType)
		}
	}
}

// Start starts the event bus
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.running.Store(true)
	b.logger.Info("event bus started")
	return nil
}

// Stop stops the event bus
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.running.Store(false)
	b.logger.Info("event bus stopped")
	return nil
}

// handlersFor returns the type-specific handlers followed by the
// catch-all handlers for an event type.
func (b *InMemoryEventBus) handlersFor(eventType string) []shared.EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	typed := b.subscriptions[eventType]
	result := make([]shared.EventHandler, 0, len(typed)+len(b.catchAll))
	result = append(result, typed...)
	result = append(result, b.catchAll...)
	return result
}

// dispatch runs a handler and converts panics into errors
func (b *InMemoryEventBus) dispatch(ctx context.Context, handler shared.EventHandler, evt shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event handler panicked: %v", r)
		}
	}()

	return handler.Handle(ctx, evt)
}

func withoutHandler(handlers []shared.EventHandler, target shared.EventHandler) []shared.EventHandler {
	result := make([]shared.EventHandler, 0, len(handlers))
	for _, h := range handlers {
		if h != target {
			result = append(result, h)
		}
	}
	return result
}

// Ensure InMemoryEventBus implements EventBus
var _ shared.EventBus = (*InMemoryEventBus)(nil)
