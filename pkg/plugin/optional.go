package plugin

import "context"

// HTTPProvider is implemented by plugins that expose REST API routes.
type HTTPProvider interface {
	Routes() []Route
}

// HealthChecker is implemented by plugins that report their health status.
type HealthChecker interface {
	Health(ctx context.Context) HealthStatus
}

// EventSubscriber is implemented by plugins that consume bus topics. The host
// subscribes the handlers after Init and removes them on shutdown.
type EventSubscriber interface {
	Subscriptions() []Subscription
}

// Subscription binds a handler to one bus topic.
type Subscription struct {
	Topic   string
	Handler EventHandler
}

// Validator is implemented by plugins that validate their config post-init.
type Validator interface {
	ValidateConfig() error
}

// HealthStatus is the result of a plugin health check.
type HealthStatus struct {
	Status  string            `json:"status"` // "healthy", "degraded", "unhealthy"
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// Health status values.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)
