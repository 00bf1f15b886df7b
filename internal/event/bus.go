// Package event provides the in-process event bus used by the host and its plugins.
package event

import (
	"context"
	"sync"
	"time"

	"github.com/HerbHall/wolgate/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ plugin.EventBus = (*Bus)(nil)

type subscriber struct {
	id      uint64
	handler plugin.EventHandler
}

// Bus is a topic-based publish/subscribe bus. Handlers run on the publisher's
// goroutine for Publish and on their own goroutine for PublishAsync. A
// panicking handler is logged and does not affect the others.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	topics map[string][]subscriber
	all    []subscriber
	logger *zap.Logger
}

// NewBus creates an empty event bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		topics: make(map[string][]subscriber),
		logger: logger,
	}
}

// Publish delivers event to every handler subscribed to its topic and to all
// catch-all handlers, in subscription order.
func (b *Bus) Publish(ctx context.Context, event plugin.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	for _, s := range b.handlersFor(event.Topic) {
		b.invoke(ctx, s.handler, event)
	}
	return nil
}

// PublishAsync delivers event to each handler on its own goroutine.
func (b *Bus) PublishAsync(ctx context.Context, event plugin.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	for _, s := range b.handlersFor(event.Topic) {
		go b.invoke(ctx, s.handler, event)
	}
}

// Subscribe registers handler for topic.
func (b *Bus) Subscribe(topic string, handler plugin.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.topics[topic] = append(b.topics[topic], subscriber{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.topics[topic] = remove(b.topics[topic], id)
		if len(b.topics[topic]) == 0 {
			delete(b.topics, topic)
		}
	}
}

// SubscribeAll registers handler for every topic.
func (b *Bus) SubscribeAll(handler plugin.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscriber{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = remove(b.all, id)
	}
}

// handlersFor snapshots the handlers for topic so delivery runs without the lock.
func (b *Bus) handlersFor(topic string) []subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]subscriber, 0, len(b.topics[topic])+len(b.all))
	out = append(out, b.topics[topic]...)
	out = append(out, b.all...)
	return out
}

func (b *Bus) invoke(ctx context.Context, handler plugin.EventHandler, event plugin.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", event.Topic),
				zap.Any("panic", r),
			)
		}
	}()
	handler(ctx, event)
}

func remove(subs []subscriber, id uint64) []subscriber {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}
