package wakeonlan

import (
	"time"

	"github.com/HerbHall/wolgate/pkg/models"
)

// Event topics published by the Wake-on-LAN module.
const (
	TopicDeviceAdded     = "wakeonlan.device.added"
	TopicDeviceRemoved   = "wakeonlan.device.removed"
	TopicPropertyChanged = "wakeonlan.property.changed"
	TopicActionCompleted = "wakeonlan.action.completed"
	TopicActionFailed    = "wakeonlan.action.failed"

	// TopicWakeRequested is consumed, not published: other modules send a
	// WakeRequest to wake a registered device.
	TopicWakeRequested = "wakeonlan.wake.requested"

	// TopicSnapshot is only sent to event stream clients on connect.
	TopicSnapshot = "wakeonlan.snapshot"
)

// DeviceEvent is the payload for TopicDeviceAdded and TopicDeviceRemoved.
type DeviceEvent struct {
	Device models.Device `json:"device"`
}

// PropertyChangedEvent is the payload for TopicPropertyChanged.
type PropertyChangedEvent struct {
	DeviceID  string              `json:"device_id"`
	Property  string              `json:"property"`
	Value     bool                `json:"value"`
	From      models.Reachability `json:"from"`
	To        models.Reachability `json:"to"`
	ChangedAt time.Time           `json:"changed_at"`
}

// ActionEvent is the payload for TopicActionCompleted and TopicActionFailed.
type ActionEvent struct {
	Action models.ActionRecord `json:"action"`
}

// WakeRequest is the payload for TopicWakeRequested. DeviceID wins over MAC.
type WakeRequest struct {
	DeviceID string `json:"device_id,omitempty"`
	MAC      string `json:"mac,omitempty"`
}
