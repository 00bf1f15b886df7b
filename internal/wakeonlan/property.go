package wakeonlan

import (
	"sync"
	"time"

	"github.com/HerbHall/wolgate/pkg/models"
)

// PropertyOn is the name of the reachability property.
const PropertyOn = "on"

// Property is the read-only reachability value of a device. It starts
// Unknown and only a probe can change it.
type Property struct {
	name  string
	title string

	mu        sync.RWMutex
	state     models.Reachability
	changedAt time.Time
}

func newReachabilityProperty() *Property {
	return &Property{
		name:  PropertyOn,
		title: "In Network",
		state: models.ReachabilityUnknown,
	}
}

// Name returns the property name.
func (p *Property) Name() string { return p.name }

// Read returns the cached value. Unknown reads as false.
func (p *Property) Read() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state == models.ReachabilityReachable
}

// State returns the cached tri-state value.
func (p *Property) State() models.Reachability {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// ChangedAt returns when the value last changed; zero while Unknown.
func (p *Property) ChangedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.changedAt
}

// Write always fails: reachability is derived from probes.
func (p *Property) Write(any) error {
	return ErrReadOnlyProperty
}

// set records a probe outcome and reports the previous state and whether it changed.
func (p *Property) set(reachable bool, at time.Time) (models.Reachability, bool) {
	next := models.ReachabilityUnreachable
	if reachable {
		next = models.ReachabilityReachable
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.state
	if prev == next {
		return prev, false
	}
	p.state = next
	p.changedAt = at
	return prev, true
}

// Description returns the property's API description.
func (p *Property) Description() models.PropertyDescription {
	return models.PropertyDescription{
		Name:     p.name,
		Title:    p.title,
		Type:     "boolean",
		ReadOnly: true,
		Value:    p.Read(),
	}
}
