package wakeonlan

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HerbHall/wolgate/internal/pulse"
	"github.com/HerbHall/wolgate/internal/recon"
	"github.com/HerbHall/wolgate/internal/wol"
	"github.com/HerbHall/wolgate/pkg/models"
)

// Hooks receive adapter notifications. Every field is optional. Hooks are
// called without the adapter lock held.
type Hooks struct {
	DeviceAdded     func(d *Device)
	DeviceRemoved   func(d *Device)
	PropertyChanged func(d *Device, prev, next models.Reachability)
	Probed          func(d *Device, reachable bool)
	SweepCompleted  func(elapsed time.Duration, err error)
}

// Adapter owns the set of Wake-on-LAN devices and the periodic reachability
// sweep. The sweep runs if and only if ping checking is enabled and at least
// one device is registered.
type Adapter struct {
	cfg     Config
	scanner recon.Scanner
	checker pulse.Checker
	sender  wol.Sender
	logger  *zap.Logger
	hooks   Hooks

	mu      sync.RWMutex
	devices map[string]*Device
	sweeper *sweeper // nil when ping checking is disabled
	closed  bool
}

// NewAdapter creates an adapter. Nothing touches the network until
// Initialize or Sweep is called.
func NewAdapter(cfg Config, scanner recon.Scanner, checker pulse.Checker, sender wol.Sender, logger *zap.Logger, hooks Hooks) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProbeConcurrency <= 0 {
		cfg.ProbeConcurrency = 1
	}
	a := &Adapter{
		cfg:     cfg,
		scanner: scanner,
		checker: checker,
		sender:  sender,
		logger:  logger,
		hooks:   hooks,
		devices: make(map[string]*Device),
	}
	if cfg.CheckPing {
		a.sweeper = newSweeper(cfg.PingInterval, func(ctx context.Context) {
			_ = a.Sweep(ctx)
		})
	}
	return a
}

// Initialize runs the one-time discovery: configured MACs found in the scan
// become devices, the rest are skipped. A failed scan registers nothing and
// is returned for the caller to log.
func (a *Adapter) Initialize(ctx context.Context) error {
	neighbors, err := a.scanner.Scan(ctx)
	if err != nil {
		a.logger.Warn("initial discovery failed", zap.Error(err))
		return err
	}
	a.HandleDiscovery(ctx, neighbors)
	return nil
}

// HandleDiscovery registers every configured, not yet registered MAC present
// in neighbors and probes the new devices once. It returns the devices added.
func (a *Adapter) HandleDiscovery(ctx context.Context, neighbors []recon.Neighbor) []*Device {
	added := a.adopt(neighbors)
	if a.cfg.CheckPing && len(added) > 0 {
		targets := make([]probeTarget, 0, len(added))
		for _, d := range added {
			if n, ok := recon.FindByMAC(neighbors, d.MAC()); ok {
				targets = append(targets, probeTarget{device: d, ip: n.IP})
			}
		}
		a.probeAll(ctx, targets)
	}
	return added
}

func (a *Adapter) adopt(neighbors []recon.Neighbor) []*Device {
	var added []*Device
	for _, mac := range a.cfg.Devices {
		n, ok := recon.FindByMAC(neighbors, mac)
		if !ok {
			a.logger.Debug("configured device not found in scan", zap.String("mac", mac))
			continue
		}
		d, err := newDevice(mac, n.Name, a.cfg.CheckPing, a.sender, a.checker)
		if err != nil {
			a.logger.Warn("skipping invalid device", zap.String("mac", mac), zap.Error(err))
			continue
		}
		if a.RegisterDevice(d) {
			added = append(added, d)
		}
	}
	return added
}

// RegisterDevice adds d. It reports false, doing nothing, when a device with
// the same ID is already registered or the adapter has shut down. The first
// registration starts the sweep when ping checking is enabled.
func (a *Adapter) RegisterDevice(d *Device) bool {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return false
	}
	if _, exists := a.devices[d.ID()]; exists {
		a.mu.Unlock()
		return false
	}
	d.setHooks(a.propertyChanged, a.probed)
	a.devices[d.ID()] = d
	if a.sweeper != nil {
		a.sweeper.Start()
	}
	a.mu.Unlock()

	a.logger.Info("device registered",
		zap.String("device_id", d.ID()),
		zap.String("name", d.Name()),
	)
	if a.hooks.DeviceAdded != nil {
		a.hooks.DeviceAdded(d)
	}
	return true
}

// UnregisterDevice removes the device with the given ID. It reports false
// when no such device exists. Removing the last device stops the sweep.
func (a *Adapter) UnregisterDevice(id string) bool {
	a.mu.Lock()
	d, ok := a.devices[id]
	if !ok {
		a.mu.Unlock()
		return false
	}
	delete(a.devices, id)
	if len(a.devices) == 0 && a.sweeper != nil {
		a.sweeper.Stop()
	}
	a.mu.Unlock()

	// In-flight probes for d must not notify anymore.
	d.setHooks(nil, nil)

	a.logger.Info("device unregistered", zap.String("device_id", id))
	if a.hooks.DeviceRemoved != nil {
		a.hooks.DeviceRemoved(d)
	}
	return true
}

// Sweep scans the network once and probes every registered device found in
// the scan. Devices missing from the scan keep their last state. With
// AdoptLateDevices set, configured MACs that appeared since the initial
// discovery are registered first.
func (a *Adapter) Sweep(ctx context.Context) error {
	start := time.Now()
	neighbors, err := a.scanner.Scan(ctx)
	if err != nil {
		a.logger.Warn("sweep discovery failed", zap.Error(err))
		a.sweepCompleted(time.Since(start), err)
		return err
	}

	if a.cfg.AdoptLateDevices {
		a.adopt(neighbors)
	}

	devices := a.Devices()
	targets := make([]probeTarget, 0, len(devices))
	for _, d := range devices {
		n, ok := recon.FindByMAC(neighbors, d.MAC())
		if !ok {
			continue
		}
		targets = append(targets, probeTarget{device: d, ip: n.IP})
	}
	a.probeAll(ctx, targets)

	elapsed := time.Since(start)
	a.logger.Debug("sweep completed",
		zap.Int("probed", len(targets)),
		zap.Int("devices", len(devices)),
		zap.Duration("elapsed", elapsed),
	)
	a.sweepCompleted(elapsed, nil)
	return nil
}

type probeTarget struct {
	device *Device
	ip     string
}

func (a *Adapter) probeAll(ctx context.Context, targets []probeTarget) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.ProbeConcurrency)
	for _, t := range targets {
		g.Go(func() error {
			t.device.Probe(gctx, t.ip)
			return nil
		})
	}
	_ = g.Wait()
}

// HandleProbeResult applies an externally obtained probe outcome to a device.
func (a *Adapter) HandleProbeResult(id string, reachable bool) error {
	d, ok := a.Device(id)
	if !ok {
		return ErrDeviceNotFound
	}
	d.applyProbe(reachable)
	return nil
}

// InvokeAction runs the named action on a device.
func (a *Adapter) InvokeAction(ctx context.Context, id, name string) error {
	d, ok := a.Device(id)
	if !ok {
		return ErrDeviceNotFound
	}
	return d.PerformAction(ctx, name)
}

// Device returns the registered device with the given ID.
func (a *Adapter) Device(id string) (*Device, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	d, ok := a.devices[id]
	return d, ok
}

// Devices returns the registered devices ordered by ID.
func (a *Adapter) Devices() []*Device {
	a.mu.RLock()
	out := make([]*Device, 0, len(a.devices))
	for _, d := range a.devices {
		out = append(out, d)
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Pending returns the configured MACs that have no registered device.
func (a *Adapter) Pending() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []string
	for _, mac := range a.cfg.Devices {
		if _, ok := a.devices[DeviceID(mac)]; !ok {
			out = append(out, mac)
		}
	}
	return out
}

// Sweeping reports whether the periodic sweep is active.
func (a *Adapter) Sweeping() bool {
	return a.sweeper != nil && a.sweeper.Running()
}

// CheckPing reports whether reachability checking is enabled.
func (a *Adapter) CheckPing() bool { return a.cfg.CheckPing }

// Shutdown stops the sweep and refuses further registrations. Registered
// devices stay readable. Safe to call more than once.
func (a *Adapter) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
}

// Wait blocks until a stopped sweep loop has exited or ctx ends.
func (a *Adapter) Wait(ctx context.Context) error {
	if a.sweeper == nil {
		return nil
	}
	return a.sweeper.Wait(ctx)
}

func (a *Adapter) propertyChanged(d *Device, prev, next models.Reachability) {
	a.logger.Info("reachability changed",
		zap.String("device_id", d.ID()),
		zap.String("from", string(prev)),
		zap.String("to", string(next)),
	)
	if a.hooks.PropertyChanged != nil {
		a.hooks.PropertyChanged(d, prev, next)
	}
}

func (a *Adapter) probed(d *Device, reachable bool) {
	if a.hooks.Probed != nil {
		a.hooks.Probed(d, reachable)
	}
}

func (a *Adapter) sweepCompleted(elapsed time.Duration, err error) {
	if a.hooks.SweepCompleted != nil {
		a.hooks.SweepCompleted(elapsed, err)
	}
}
