// Package wakeonlan manages Wake-on-LAN devices: discovery by MAC address,
// the wake action and optional ICMP reachability polling.
package wakeonlan

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/wolgate/internal/manifest"
	"github.com/HerbHall/wolgate/internal/pulse"
	"github.com/HerbHall/wolgate/internal/recon"
	"github.com/HerbHall/wolgate/internal/wol"
	"github.com/HerbHall/wolgate/pkg/models"
	"github.com/HerbHall/wolgate/pkg/plugin"
)

const (
	pluginName    = "wakeonlan"
	pruneInterval = time.Hour
)

// Compile-time interface guards.
var (
	_ plugin.Plugin          = (*Module)(nil)
	_ plugin.HTTPProvider    = (*Module)(nil)
	_ plugin.HealthChecker   = (*Module)(nil)
	_ plugin.EventSubscriber = (*Module)(nil)
	_ plugin.Validator       = (*Module)(nil)
)

// Option customizes a Module.
type Option func(*Module)

// WithScanner replaces the ARP scanner.
func WithScanner(s recon.Scanner) Option { return func(m *Module) { m.scanner = s } }

// WithChecker replaces the ICMP checker.
func WithChecker(c pulse.Checker) Option { return func(m *Module) { m.checker = c } }

// WithSender replaces the magic packet sender.
func WithSender(s wol.Sender) Option { return func(m *Module) { m.sender = s } }

// WithClock replaces the time source stamped on action records and events.
func WithClock(now func() time.Time) Option { return func(m *Module) { m.now = now } }

// WithMQTTClient replaces the paho client used by the MQTT bridge.
func WithMQTTClient(c MQTTClient) Option { return func(m *Module) { m.mqttClient = c } }

// Module implements the Wake-on-LAN plugin.
type Module struct {
	logger  *zap.Logger
	cfg     Config
	bus     plugin.EventBus
	store   *HistoryStore
	metrics *metrics
	limiter *wakeLimiter
	actions *actionLog
	adapter *Adapter
	bridge  *MQTTBridge
	pruner  *sweeper

	scanner    recon.Scanner
	checker    pulse.Checker
	sender     wol.Sender
	mqttClient MQTTClient
	now        func() time.Time

	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	discoveryDone chan struct{}
}

// New creates a Wake-on-LAN module.
func New(opts ...Option) *Module {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Module{
		logger:        zap.NewNop(),
		cfg:           DefaultConfig(),
		metrics:       newMetrics(),
		actions:       &actionLog{},
		now:           time.Now,
		ctx:           ctx,
		cancel:        cancel,
		discoveryDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Info describes the module. Version and description come from the add-on
// manifest bundled with the binary; the name stays the config key.
func (m *Module) Info() plugin.PluginInfo {
	info := plugin.PluginInfo{
		Name:        pluginName,
		Version:     "0.0.0",
		Description: "Wake-on-LAN devices with optional reachability polling",
		APIVersion:  plugin.APIVersionCurrent,
	}
	man, err := manifest.Default()
	if err != nil {
		return info
	}
	if man.Version != "" {
		info.Version = man.Version
	}
	if man.Description != "" {
		info.Description = man.Description
	}
	return info
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	if deps.Logger != nil {
		m.logger = deps.Logger
	}
	m.bus = deps.Bus

	cfg := DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("unmarshal wakeonlan config: %w", err)
		}
	}
	m.cfg = cfg

	if deps.Store != nil {
		if err := deps.Store.Migrate(ctx, pluginName, migrations()); err != nil {
			return fmt.Errorf("wakeonlan migrations: %w", err)
		}
		m.store = NewHistoryStore(deps.Store.DB())
		if sv, ok := deps.Store.(schemaVersioner); ok {
			if v, err := sv.SchemaVersion(ctx, pluginName); err == nil {
				m.logger.Debug("history schema ready", zap.Int("schema_version", v))
			}
		}
		if cfg.HistoryRetention > 0 {
			m.pruner = newSweeper(pruneInterval, m.prune)
		}
	}

	if deps.Metrics != nil {
		if err := m.metrics.register(deps.Metrics); err != nil {
			return fmt.Errorf("register wakeonlan metrics: %w", err)
		}
	}

	if m.scanner == nil {
		m.scanner = recon.NewARPScanner(m.logger.Named("arp"), net.DefaultResolver)
	}
	if m.checker == nil {
		m.checker = pulse.NewICMPChecker(cfg.PingTimeout, cfg.PingCount).WithPrivileged(cfg.PingPrivileged)
	}
	if m.sender == nil {
		m.sender = wol.NewUDPSender(cfg.BroadcastAddr, cfg.Interface)
	}

	m.limiter = newWakeLimiter(cfg.WakeRate, cfg.WakeBurst)
	m.adapter = NewAdapter(cfg, m.scanner, m.checker, m.sender, m.logger, Hooks{
		DeviceAdded:     m.onDeviceAdded,
		DeviceRemoved:   m.onDeviceRemoved,
		PropertyChanged: m.onPropertyChanged,
		Probed:          m.onProbed,
		SweepCompleted:  m.onSweepCompleted,
	})

	if cfg.MQTT.Broker != "" {
		client := m.mqttClient
		if client == nil {
			client = NewMQTTClient(cfg.MQTT)
		}
		m.bridge = NewMQTTBridge(cfg.MQTT, client, m.mqttWake, m.logger.Named("mqtt"))
	}

	m.logger.Info("wakeonlan module initialized",
		zap.Int("configured_devices", len(cfg.Devices)),
		zap.Bool("check_ping", cfg.CheckPing),
	)
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	return m.cfg.Validate()
}

// Start connects the MQTT bridge and runs the initial discovery in the
// background.
func (m *Module) Start(_ context.Context) error {
	if m.bridge != nil {
		if err := m.bridge.Start(); err != nil {
			m.logger.Warn("mqtt bridge unavailable", zap.Error(err))
			m.bridge = nil
		}
	}

	if m.pruner != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.prune(m.ctx)
		}()
		m.pruner.Start()
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(m.discoveryDone)
		if err := m.adapter.Initialize(m.ctx); err != nil {
			m.metrics.discoveryErrors.Inc()
			return
		}
		if pending := m.adapter.Pending(); len(pending) > 0 {
			m.logger.Info("configured devices not found on the network",
				zap.Strings("macs", pending),
				zap.Bool("adopt_late_devices", m.cfg.AdoptLateDevices),
			)
		}
	}()

	m.logger.Info("wakeonlan module started")
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	m.cancel()
	if m.adapter != nil {
		m.adapter.Shutdown()
	}
	if m.pruner != nil {
		m.pruner.Stop()
	}

	idle := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(idle)
	}()
	select {
	case <-idle:
	case <-ctx.Done():
		return ctx.Err()
	}

	if m.adapter != nil {
		if err := m.adapter.Wait(ctx); err != nil {
			return err
		}
	}
	if m.pruner != nil {
		if err := m.pruner.Wait(ctx); err != nil {
			return err
		}
	}
	if m.bridge != nil {
		m.bridge.Stop()
	}
	m.logger.Info("wakeonlan module stopped")
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	if m.adapter == nil {
		return plugin.HealthStatus{Status: plugin.StatusUnhealthy, Message: "not initialized"}
	}

	devices := len(m.adapter.Devices())
	pending := len(m.adapter.Pending())
	status := plugin.HealthStatus{
		Status: plugin.StatusHealthy,
		Details: map[string]string{
			"devices":    fmt.Sprint(devices),
			"pending":    fmt.Sprint(pending),
			"check_ping": fmt.Sprint(m.adapter.CheckPing()),
			"sweeping":   fmt.Sprint(m.adapter.Sweeping()),
		},
	}
	if len(m.cfg.Devices) > 0 && devices == 0 {
		status.Status = plugin.StatusDegraded
		status.Message = "no configured device found on the network"
	}
	if m.cfg.MQTT.Broker != "" && m.bridge == nil {
		status.Status = plugin.StatusDegraded
		status.Message = "mqtt bridge not connected"
	}
	return status
}

// Discover scans the network and registers configured devices that are not
// registered yet. It returns the devices added.
func (m *Module) Discover(ctx context.Context) ([]models.Device, error) {
	neighbors, err := m.scanner.Scan(ctx)
	if err != nil {
		m.metrics.discoveryErrors.Inc()
		return nil, err
	}
	added := m.adapter.HandleDiscovery(ctx, neighbors)
	out := make([]models.Device, 0, len(added))
	for _, d := range added {
		out = append(out, d.Snapshot())
	}
	return out, nil
}

// Adapter returns the device adapter.
func (m *Module) Adapter() *Adapter { return m.adapter }

func (m *Module) snapshots() []models.Device {
	devices := m.adapter.Devices()
	out := make([]models.Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.Snapshot())
	}
	return out
}

func (m *Module) done() <-chan struct{} { return m.ctx.Done() }

type schemaVersioner interface {
	SchemaVersion(ctx context.Context, pluginName string) (int, error)
}

// prune drops history older than the retention window.
func (m *Module) prune(ctx context.Context) {
	cutoff := m.now().Add(-m.cfg.HistoryRetention)
	n, err := m.store.Prune(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("failed to prune history", zap.Error(err))
		}
		return
	}
	if n > 0 {
		m.logger.Info("pruned history", zap.Int64("rows", n), zap.Time("before", cutoff))
	}
}

func (m *Module) mqttWake(ctx context.Context, deviceID string) error {
	_, err := m.Invoke(ctx, deviceID, ActionWake, SourceMQTT)
	return err
}

// Subscriptions lets other modules request wakes over the bus.
func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{Topic: TopicWakeRequested, Handler: m.handleWakeRequested},
	}
}

func (m *Module) handleWakeRequested(ctx context.Context, ev plugin.Event) {
	var req WakeRequest
	switch p := ev.Payload.(type) {
	case WakeRequest:
		req = p
	case *WakeRequest:
		if p != nil {
			req = *p
		}
	case map[string]any:
		req.DeviceID, _ = p["device_id"].(string)
		req.MAC, _ = p["mac"].(string)
	}

	id := req.DeviceID
	if id == "" && req.MAC != "" {
		id = DeviceID(req.MAC)
	}
	if id == "" {
		m.logger.Warn("ignoring wake request without target", zap.String("source", ev.Source))
		return
	}
	if _, err := m.Invoke(ctx, id, ActionWake, SourceBus); err != nil {
		m.logger.Warn("bus wake request failed",
			zap.String("device_id", id), zap.String("source", ev.Source), zap.Error(err))
	}
}

func (m *Module) onDeviceAdded(d *Device) {
	m.metrics.devices.Inc()
	m.publish(m.ctx, TopicDeviceAdded, &DeviceEvent{Device: d.Snapshot()})
}

func (m *Module) onDeviceRemoved(d *Device) {
	m.metrics.devices.Dec()
	m.metrics.reachable.DeleteLabelValues(d.ID())
	m.limiter.Forget(d.ID())
	m.publish(m.ctx, TopicDeviceRemoved, &DeviceEvent{Device: d.Snapshot()})
	if m.bridge != nil {
		m.bridge.ClearState(d.ID())
	}
}

func (m *Module) onPropertyChanged(d *Device, prev, next models.Reachability) {
	on := next == models.ReachabilityReachable
	changedAt := m.now().UTC()
	if p, ok := d.Property(PropertyOn); ok {
		changedAt = p.ChangedAt().UTC()
	}

	m.metrics.reachable.WithLabelValues(d.ID()).Set(boolGauge(on))
	if m.store != nil {
		err := m.store.InsertTransition(m.ctx, models.Transition{
			DeviceID:  d.ID(),
			From:      prev,
			To:        next,
			ChangedAt: changedAt,
		})
		if err != nil {
			m.logger.Warn("failed to record transition", zap.String("device_id", d.ID()), zap.Error(err))
		}
	}
	m.publish(m.ctx, TopicPropertyChanged, &PropertyChangedEvent{
		DeviceID:  d.ID(),
		Property:  PropertyOn,
		Value:     on,
		From:      prev,
		To:        next,
		ChangedAt: changedAt,
	})
	if m.bridge != nil {
		m.bridge.PublishState(d.ID(), on)
	}
}

func (m *Module) onProbed(_ *Device, reachable bool) {
	m.metrics.probes.WithLabelValues(boolResult(reachable, "reachable", "unreachable")).Inc()
}

func (m *Module) onSweepCompleted(elapsed time.Duration, err error) {
	if err != nil {
		m.metrics.discoveryErrors.Inc()
		return
	}
	m.metrics.sweepDuration.Observe(elapsed.Seconds())
}
