package plugin

import (
	"context"
	"time"
)

// Event is a message published on the host event bus.
type Event struct {
	Topic     string    `json:"topic"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// EventHandler receives events delivered by the bus.
type EventHandler func(ctx context.Context, event Event)

// EventBus delivers events between the host and plugins.
type EventBus interface {
	// Publish delivers the event synchronously to all matching handlers.
	Publish(ctx context.Context, event Event) error

	// PublishAsync delivers the event on a separate goroutine per handler.
	PublishAsync(ctx context.Context, event Event)

	// Subscribe registers a handler for one topic and returns its unsubscribe func.
	Subscribe(topic string, handler EventHandler) func()

	// SubscribeAll registers a handler for every topic.
	SubscribeAll(handler EventHandler) func()
}
