// Package models holds the JSON shapes wolgate exposes to API and event consumers.
package models

import "time"

// ThingContext is the JSON-LD context of every exposed device.
const ThingContext = "https://iot.mozilla.org/schemas"

// Reachability is the last-known ICMP state of a device.
type Reachability string

const (
	ReachabilityUnknown     Reachability = "unknown"
	ReachabilityReachable   Reachability = "reachable"
	ReachabilityUnreachable Reachability = "unreachable"
)

// PropertyDescription describes one device property.
type PropertyDescription struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Type     string `json:"type"`
	ReadOnly bool   `json:"readOnly"`
	Value    any    `json:"value"`
}

// ActionDescription describes one device action.
type ActionDescription struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

// Device is a snapshot of a managed Wake-on-LAN device.
type Device struct {
	Context      string                `json:"@context"`
	Type         []string              `json:"@type"`
	ID           string                `json:"id"`
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	MACAddress   string                `json:"mac_address"`
	IPAddress    string                `json:"ip_address,omitempty"`
	Reachability Reachability          `json:"reachability,omitempty"`
	LastProbed   *time.Time            `json:"last_probed,omitempty"`
	Properties   []PropertyDescription `json:"properties"`
	Actions      []ActionDescription   `json:"actions"`
}

// ActionStatus tracks an action invocation.
type ActionStatus string

const (
	ActionPending   ActionStatus = "pending"
	ActionCompleted ActionStatus = "completed"
	ActionError     ActionStatus = "error"
)

// ActionRecord is one invocation of a device action.
type ActionRecord struct {
	ID          string       `json:"id"`
	DeviceID    string       `json:"device_id"`
	Name        string       `json:"name"`
	Source      string       `json:"source"` // "http", "mqtt", "cli"
	Status      ActionStatus `json:"status"`
	Error       string       `json:"error,omitempty"`
	RequestedAt time.Time    `json:"requested_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// Transition is one change of a device's reachability.
type Transition struct {
	DeviceID  string       `json:"device_id"`
	From      Reachability `json:"from"`
	To        Reachability `json:"to"`
	ChangedAt time.Time    `json:"changed_at"`
}
