package wakeonlan

import (
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/wolgate/internal/wol"
)

// Config holds the Wake-on-LAN module configuration (plugins.wakeonlan.*).
type Config struct {
	Devices          []string      `mapstructure:"devices"`
	CheckPing        bool          `mapstructure:"check_ping"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	PingTimeout      time.Duration `mapstructure:"ping_timeout"`
	PingCount        int           `mapstructure:"ping_count"`
	PingPrivileged   bool          `mapstructure:"ping_privileged"`
	ProbeConcurrency int           `mapstructure:"probe_concurrency"`
	BroadcastAddr    string        `mapstructure:"broadcast_addr"`
	Interface        string        `mapstructure:"interface"`
	AdoptLateDevices bool          `mapstructure:"adopt_late_devices"`
	WakeRate         float64       `mapstructure:"wake_rate"` // per second and device; 0 sends every wake
	WakeBurst        int           `mapstructure:"wake_burst"`
	HistoryRetention time.Duration `mapstructure:"history_retention"`
	MQTT             MQTTConfig    `mapstructure:"mqtt"`
}

// MQTTConfig configures the optional MQTT bridge. An empty Broker disables it.
type MQTTConfig struct {
	Broker         string        `mapstructure:"broker"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	TopicPrefix    string        `mapstructure:"topic_prefix"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// DefaultConfig returns the default module configuration.
func DefaultConfig() Config {
	return Config{
		PingInterval:     30 * time.Second,
		PingTimeout:      2 * time.Second,
		PingCount:        1,
		ProbeConcurrency: 4,
		BroadcastAddr:    wol.DefaultBroadcastAddr,
		WakeBurst:        2,
		HistoryRetention: 30 * 24 * time.Hour,
		MQTT: MQTTConfig{
			ClientID:       "wolgate",
			TopicPrefix:    "wolgate",
			ConnectTimeout: 10 * time.Second,
		},
	}
}

// Validate checks the configuration. Every configured device must be a
// 48-bit MAC address.
func (c Config) Validate() error {
	var errs []error
	for _, mac := range c.Devices {
		if _, err := wol.ParseMAC(mac); err != nil {
			errs = append(errs, fmt.Errorf("devices: %w", err))
		}
	}
	if c.CheckPing {
		if c.PingInterval <= 0 {
			errs = append(errs, errors.New("ping_interval must be positive"))
		}
		if c.PingTimeout <= 0 {
			errs = append(errs, errors.New("ping_timeout must be positive"))
		}
		if c.PingCount <= 0 {
			errs = append(errs, errors.New("ping_count must be positive"))
		}
	}
	if c.WakeRate > 0 && c.WakeBurst <= 0 {
		errs = append(errs, errors.New("wake_burst must be positive when wake_rate is set"))
	}
	if c.HistoryRetention < 0 {
		errs = append(errs, errors.New("history_retention must not be negative"))
	}
	return errors.Join(errs...)
}
