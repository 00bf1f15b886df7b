package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/HerbHall/wolgate/pkg/plugin"
)

var _ plugin.EventBus = (*MockBus)(nil)

// MockBus records every published event and delivers it synchronously to
// subscribers, so tests can both inspect history and react to events.
type MockBus struct {
	mu     sync.Mutex
	events []plugin.Event
	subs   map[int]mockSub
	nextID int
}

type mockSub struct {
	topic   string // empty for SubscribeAll
	handler plugin.EventHandler
}

func NewMockBus() *MockBus {
	return &MockBus{subs: make(map[int]mockSub)}
}

// Publish records event and calls matching subscribers before returning.
func (b *MockBus) Publish(ctx context.Context, event plugin.Event) error {
	b.mu.Lock()
	b.events = append(b.events, event)
	var handlers []plugin.EventHandler
	for _, s := range b.subs {
		if s.topic == "" || s.topic == event.Topic {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(ctx, event)
	}
	return nil
}

// PublishAsync behaves like Publish; ordering stays deterministic in tests.
func (b *MockBus) PublishAsync(ctx context.Context, event plugin.Event) {
	_ = b.Publish(ctx, event)
}

func (b *MockBus) Subscribe(topic string, handler plugin.EventHandler) func() {
	return b.add(mockSub{topic: topic, handler: handler})
}

func (b *MockBus) SubscribeAll(handler plugin.EventHandler) func() {
	return b.add(mockSub{handler: handler})
}

func (b *MockBus) add(s mockSub) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = s
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Events returns a copy of all recorded events.
func (b *MockBus) Events() []plugin.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]plugin.Event, len(b.events))
	copy(out, b.events)
	return out
}

// EventsFor returns the recorded events with the given topic.
func (b *MockBus) EventsFor(topic string) []plugin.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []plugin.Event
	for _, e := range b.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

// Topics returns the topics of recorded events whose topic starts with
// prefix, in publish order.
func (b *MockBus) Topics(prefix string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, e := range b.events {
		if strings.HasPrefix(e.Topic, prefix) {
			out = append(out, e.Topic)
		}
	}
	return out
}

// Reset clears recorded events. Subscriptions are kept.
func (b *MockBus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}
