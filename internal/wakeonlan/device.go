package wakeonlan

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/HerbHall/wolgate/internal/pulse"
	"github.com/HerbHall/wolgate/internal/recon"
	"github.com/HerbHall/wolgate/internal/wol"
	"github.com/HerbHall/wolgate/pkg/models"
)

// ActionWake is the only action a device supports.
const ActionWake = "wake"

// DeviceID derives the stable device identifier from a MAC address, so one
// physical host can never be registered twice.
func DeviceID(mac string) string {
	return "wake-on-lan-" + recon.NormalizeMAC(mac)
}

// Device is one Wake-on-LAN capable host.
type Device struct {
	id          string
	mac         string // as configured
	hw          net.HardwareAddr
	name        string
	description string

	sender  wol.Sender
	checker pulse.Checker
	now     func() time.Time
	on      *Property // nil when ping checking is disabled

	mu         sync.Mutex
	ip         string
	lastProbed time.Time
	onChange   func(d *Device, prev, next models.Reachability)
	onProbe    func(d *Device, reachable bool)
}

// newDevice builds a device for the configured mac. name is the discovered
// hostname; "" or recon.UnknownName falls back to "WoL (<mac>)".
func newDevice(mac, name string, checkPing bool, sender wol.Sender, checker pulse.Checker) (*Device, error) {
	hw, err := wol.ParseMAC(mac)
	if err != nil {
		return nil, err
	}

	label := "WoL (" + mac + ")"
	if name == "" || name == recon.UnknownName {
		name = label
	}

	d := &Device{
		id:          DeviceID(mac),
		mac:         mac,
		hw:          hw,
		name:        name,
		description: label,
		sender:      sender,
		checker:     checker,
		now:         time.Now,
	}
	if checkPing {
		d.on = newReachabilityProperty()
	}
	return d, nil
}

func (d *Device) ID() string          { return d.id }
func (d *Device) MAC() string         { return d.mac }
func (d *Device) Name() string        { return d.name }
func (d *Device) Description() string { return d.description }

// IP returns the address seen in the latest scan, if any.
func (d *Device) IP() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ip
}

// Property returns the named property. Only "on" exists, and only when ping
// checking is enabled.
func (d *Device) Property(name string) (*Property, bool) {
	if name != PropertyOn || d.on == nil {
		return nil, false
	}
	return d.on, true
}

// Wake transmits exactly one magic packet. Success means the packet was
// sent, not that the host woke up.
func (d *Device) Wake(ctx context.Context) error {
	if err := d.sender.Send(ctx, d.hw); err != nil {
		return &WakeError{MAC: d.mac, Err: err}
	}
	return nil
}

// PerformAction runs the named action.
func (d *Device) PerformAction(ctx context.Context, name string) error {
	if name != ActionWake {
		return ErrUnknownAction
	}
	return d.Wake(ctx)
}

// Probe pings ip once and records the outcome. Probe errors and timeouts
// count as unreachable. A probe cut short by ctx is discarded.
func (d *Device) Probe(ctx context.Context, ip string) {
	if d.on == nil || ip == "" {
		return
	}

	d.mu.Lock()
	d.ip = ip
	d.mu.Unlock()

	reachable := pulse.Reachable(ctx, d.checker, ip)
	if ctx.Err() != nil {
		return
	}
	d.applyProbe(reachable)
}

// applyProbe updates the reachability property and notifies only on change.
func (d *Device) applyProbe(reachable bool) {
	if d.on == nil {
		return
	}

	now := d.now()
	d.mu.Lock()
	d.lastProbed = now
	onChange, onProbe := d.onChange, d.onProbe
	d.mu.Unlock()

	if onProbe != nil {
		onProbe(d, reachable)
	}
	prev, changed := d.on.set(reachable, now)
	if changed && onChange != nil {
		onChange(d, prev, d.on.State())
	}
}

func (d *Device) setHooks(onChange func(*Device, models.Reachability, models.Reachability), onProbe func(*Device, bool)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = onChange
	d.onProbe = onProbe
}

// Snapshot returns the device's API representation.
func (d *Device) Snapshot() models.Device {
	d.mu.Lock()
	ip, probed := d.ip, d.lastProbed
	d.mu.Unlock()

	snap := models.Device{
		Context:     models.ThingContext,
		Type:        []string{},
		ID:          d.id,
		Title:       d.name,
		Description: d.description,
		MACAddress:  d.mac,
		IPAddress:   ip,
		Properties:  []models.PropertyDescription{},
		Actions:     []models.ActionDescription{{Name: ActionWake, Title: "Wake"}},
	}
	if d.on != nil {
		snap.Reachability = d.on.State()
		snap.Properties = append(snap.Properties, d.on.Description())
	}
	if !probed.IsZero() {
		snap.LastProbed = &probed
	}
	return snap
}
