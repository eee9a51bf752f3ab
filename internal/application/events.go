package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Event is a domain fact published after a successful write.
type Event interface {
	EventName() string
}

// BookingCreated is published after a booking is stored.
type BookingCreated struct {
	Booking Booking
	Actor   Principal
}

// BookingUpdated is published after a booking's details or status change.
type BookingUpdated struct {
	Booking  Booking
	Previous Booking
	Actor    Principal
}

// BookingCancelled is published after a booking moves to cancelled.
type BookingCancelled struct {
	Booking Booking
	Actor   Principal
}

// BookingDeleted is published after a booking is permanently removed.
type BookingDeleted struct {
	Booking Booking
	Actor   Principal
}

// RoomMaintenanceRequired is published when a room must be taken out of service.
type RoomMaintenanceRequired struct {
	Request MaintenanceRequest
	Actor   Principal
}

// RoomMaintenanceResolved is published when a room's maintenance work completes.
type RoomMaintenanceResolved struct {
	Request MaintenanceRequest
	Actor   Principal
}

func (BookingCreated) EventName() string          { return "booking.created" }
func (BookingUpdated) EventName() string          { return "booking.updated" }
func (BookingCancelled) EventName() string        { return "booking.cancelled" }
func (BookingDeleted) EventName() string          { return "booking.deleted" }
func (RoomMaintenanceRequired) EventName() string { return "room.maintenance_required" }
func (RoomMaintenanceResolved) EventName() string { return "room.maintenance_resolved" }

// EventPublisher delivers events to interested subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// EventHandler reacts to published events.
type EventHandler interface {
	HandleEvent(ctx context.Context, event Event) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, event Event) error

// HandleEvent calls f.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// EventBus dispatches events synchronously to its subscribers in
// subscription order. Every subscriber runs even when an earlier one fails.
type EventBus struct {
	mu       sync.RWMutex
	handlers []EventHandler
	logger   *slog.Logger
}

// NewEventBus constructs an empty bus.
func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{logger: defaultLogger(logger)}
}

// Subscribe registers a handler for every event.
func (b *EventBus) Subscribe(handler EventHandler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Publish delivers event to all subscribers and joins their errors.
func (b *EventBus) Publish(ctx context.Context, event Event) error {
	if b == nil || event == nil {
		return nil
	}
	b.mu.RLock()
	handlers := make([]EventHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h.HandleEvent(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", event.EventName(), err))
		}
	}
	return errors.Join(errs...)
}

// publish sends an event and logs, rather than returns, delivery failures:
// the write that produced the event has already been committed.
func publish(ctx context.Context, publisher EventPublisher, logger *slog.Logger, event Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.ErrorContext(ctx, "event delivery failed", "event", event.EventName(), "error", err)
	}
}
