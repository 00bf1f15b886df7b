// Package plugin defines the contract between the wolgate host and the
// modules it loads. Modules are composed at compile time and driven through
// the registry in internal/registry.
package plugin

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Plugin API versions understood by the host.
const (
	APIVersionMin     = 1
	APIVersionCurrent = 1
)

// PluginInfo describes a plugin to the registry.
type PluginInfo struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies,omitempty"`
	Required     bool     `json:"required"`
	APIVersion   int      `json:"api_version"`
}

// Dependencies is the set of host services handed to a plugin at Init.
// Store, Bus and Metrics may be nil when the host runs without them.
type Dependencies struct {
	Config  Config
	Logger  *zap.Logger
	Store   Store
	Bus     EventBus
	Metrics prometheus.Registerer
}

// Plugin defines the interface that all wolgate modules must implement.
type Plugin interface {
	// Info returns the plugin's identity and requirements.
	Info() PluginInfo

	// Init wires the plugin to host services. No background work may start here.
	Init(ctx context.Context, deps Dependencies) error

	// Start begins the plugin's background operations.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the plugin. Must be safe to call more than once.
	Stop(ctx context.Context) error
}

// Route represents an HTTP route exposed by a plugin.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}
