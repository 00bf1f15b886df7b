// Package registry manages plugin registration, dependency ordering and
// lifecycle for the wolgate host.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/HerbHall/wolgate/pkg/plugin"
	"go.uber.org/zap"
)

// Registry manages the lifecycle of all registered plugins.
type Registry struct {
	mu       sync.RWMutex
	plugins  map[string]plugin.Plugin
	order    []string // registration order until Validate, dependency order after
	disabled map[string]string
	started  []string
	logger   *zap.Logger
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		plugins:  make(map[string]plugin.Plugin),
		disabled: make(map[string]string),
		logger:   logger,
	}
}

// Register adds a plugin to the registry.
func (r *Registry) Register(p plugin.Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := p.Info()
	if info.Name == "" {
		return errors.New("plugin name must not be empty")
	}
	if _, exists := r.plugins[info.Name]; exists {
		return fmt.Errorf("plugin %q already registered", info.Name)
	}

	r.plugins[info.Name] = p
	r.order = append(r.order, info.Name)
	r.logger.Info("plugin registered", zap.String("name", info.Name), zap.String("version", info.Version))
	return nil
}

// Validate checks API versions and dependencies, disables optional plugins
// that cannot run (cascading to their dependents) and sorts the plugins so
// that every plugin comes after its dependencies. A required plugin that
// cannot run, or a dependency cycle, is an error.
func (r *Registry) Validate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		info := r.plugins[name].Info()
		if info.APIVersion < plugin.APIVersionMin || info.APIVersion > plugin.APIVersionCurrent {
			reason := fmt.Sprintf("unsupported API version %d (supported %d..%d)",
				info.APIVersion, plugin.APIVersionMin, plugin.APIVersionCurrent)
			if err := r.disableLocked(name, reason); err != nil {
				return err
			}
		}
	}

	// Missing or disabled dependencies disable dependents until nothing changes.
	for changed := true; changed; {
		changed = false
		for _, name := range r.order {
			if _, off := r.disabled[name]; off {
				continue
			}
			for _, dep := range r.plugins[name].Info().Dependencies {
				_, exists := r.plugins[dep]
				_, depOff := r.disabled[dep]
				if exists && !depOff {
					continue
				}
				if err := r.disableLocked(name, fmt.Sprintf("dependency %q unavailable", dep)); err != nil {
					return err
				}
				changed = true
				break
			}
		}
	}

	sorted, err := r.topoSortLocked()
	if err != nil {
		return err
	}
	r.order = sorted
	return nil
}

// topoSortLocked orders plugins with dependencies first. Ties keep registration order.
func (r *Registry) topoSortLocked() ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(r.order))
	sorted := make([]string, 0, len(r.order))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("dependency cycle: %v", append(path, name))
		}
		state[name] = visiting
		for _, dep := range r.plugins[name].Info().Dependencies {
			if _, ok := r.plugins[dep]; !ok {
				continue
			}
			if err := visit(dep, append(path, name)); err != nil {
				return err
			}
		}
		state[name] = done
		sorted = append(sorted, name)
		return nil
	}

	for _, name := range r.order {
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}
	return sorted, nil
}

func (r *Registry) disableLocked(name, reason string) error {
	if r.plugins[name].Info().Required {
		return fmt.Errorf("required plugin %q cannot run: %s", name, reason)
	}
	r.disabled[name] = reason
	r.logger.Warn("plugin disabled", zap.String("name", name), zap.String("reason", reason))
	return nil
}

// Disable marks a plugin as disabled before InitAll (e.g. by configuration).
func (r *Registry) Disable(name, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plugins[name]; !ok {
		return fmt.Errorf("plugin %q not registered", name)
	}
	return r.disableLocked(name, reason)
}

// IsDisabled reports whether the named plugin was disabled.
func (r *Registry) IsDisabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, off := r.disabled[name]
	return off
}

// InitAll initializes all enabled plugins in dependency order. depsFor builds
// the Dependencies for each plugin name. An optional plugin whose Init or
// ValidateConfig fails is disabled; a required one aborts initialization.
func (r *Registry) InitAll(ctx context.Context, depsFor func(name string) plugin.Dependencies) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		if _, off := r.disabled[name]; off {
			continue
		}
		p := r.plugins[name]

		r.logger.Info("initializing plugin", zap.String("name", name))
		err := p.Init(ctx, depsFor(name))
		if err == nil {
			if v, ok := p.(plugin.Validator); ok {
				err = v.ValidateConfig()
			}
		}
		if err != nil {
			if p.Info().Required {
				return fmt.Errorf("failed to initialize plugin %q: %w", name, err)
			}
			r.disabled[name] = err.Error()
			r.logger.Warn("optional plugin failed to initialize, disabling",
				zap.String("name", name), zap.Error(err))
		}
	}
	return nil
}

// StartAll starts all enabled plugins in dependency order.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		if _, off := r.disabled[name]; off {
			continue
		}
		r.logger.Info("starting plugin", zap.String("name", name))
		if err := r.plugins[name].Start(ctx); err != nil {
			return fmt.Errorf("failed to start plugin %q: %w", name, err)
		}
		r.started = append(r.started, name)
	}
	return nil
}

// StopAll stops started plugins in reverse start order.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.started) - 1; i >= 0; i-- {
		name := r.started[i]
		r.logger.Info("stopping plugin", zap.String("name", name))
		if err := r.plugins[name].Stop(ctx); err != nil {
			r.logger.Error("failed to stop plugin", zap.String("name", name), zap.Error(err))
		}
	}
	r.started = nil
}

// Subscribe registers the subscriptions of every enabled EventSubscriber on
// bus. The returned func removes them all.
func (r *Registry) Subscribe(bus plugin.EventBus) func() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var unsubs []func()
	for _, name := range r.order {
		if _, off := r.disabled[name]; off {
			continue
		}
		es, ok := r.plugins[name].(plugin.EventSubscriber)
		if !ok {
			continue
		}
		for _, sub := range es.Subscriptions() {
			if sub.Topic == "" || sub.Handler == nil {
				continue
			}
			unsubs = append(unsubs, bus.Subscribe(sub.Topic, sub.Handler))
			r.logger.Debug("subscribed plugin",
				zap.String("name", name), zap.String("topic", sub.Topic))
		}
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Get returns an enabled plugin by name.
func (r *Registry) Get(name string) (plugin.Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, off := r.disabled[name]; off {
		return nil, false
	}
	p, ok := r.plugins[name]
	return p, ok
}

// All returns all enabled plugins in order.
func (r *Registry) All() []plugin.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]plugin.Plugin, 0, len(r.order))
	for _, name := range r.order {
		if _, off := r.disabled[name]; off {
			continue
		}
		result = append(result, r.plugins[name])
	}
	return result
}

// AllRoutes returns the routes of every enabled HTTPProvider, keyed by plugin name.
func (r *Registry) AllRoutes() map[string][]plugin.Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make(map[string][]plugin.Route)
	for _, name := range r.order {
		if _, off := r.disabled[name]; off {
			continue
		}
		hp, ok := r.plugins[name].(plugin.HTTPProvider)
		if !ok {
			continue
		}
		if pr := hp.Routes(); len(pr) > 0 {
			routes[name] = pr
		}
	}
	return routes
}
