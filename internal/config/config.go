// Package config adapts viper to the plugin.Config interface and loads the
// host configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HerbHall/wolgate/pkg/plugin"
	"github.com/spf13/viper"
)

// Compile-time interface guard.
var _ plugin.Config = (*ViperConfig)(nil)

// EnvPrefix is the prefix for environment overrides (WOLGATE_SERVER_PORT, ...).
const EnvPrefix = "WOLGATE"

// ViperConfig implements plugin.Config on top of a *viper.Viper.
type ViperConfig struct {
	v *viper.Viper
}

// New wraps v. A nil viper behaves as an empty configuration.
func New(v *viper.Viper) *ViperConfig {
	if v == nil {
		v = viper.New()
	}
	return &ViperConfig{v: v}
}

func (c *ViperConfig) GetString(key string) string          { return c.v.GetString(key) }
func (c *ViperConfig) GetStringSlice(key string) []string   { return c.v.GetStringSlice(key) }
func (c *ViperConfig) GetInt(key string) int                { return c.v.GetInt(key) }
func (c *ViperConfig) GetFloat64(key string) float64        { return c.v.GetFloat64(key) }
func (c *ViperConfig) GetBool(key string) bool              { return c.v.GetBool(key) }
func (c *ViperConfig) GetDuration(key string) time.Duration { return c.v.GetDuration(key) }
func (c *ViperConfig) IsSet(key string) bool                { return c.v.IsSet(key) }
func (c *ViperConfig) Unmarshal(target any) error           { return c.v.Unmarshal(target) }

// Sub returns the subtree at key. A missing subtree yields an empty Config, never nil.
func (c *ViperConfig) Sub(key string) plugin.Config {
	sub := c.v.Sub(key)
	if sub == nil {
		return New(nil)
	}
	return New(sub)
}

// Viper exposes the underlying instance for callers that need to merge values.
func (c *ViperConfig) Viper() *viper.Viper {
	return c.v
}

// SetDefaults registers the host defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.max_connections", 256)
	v.SetDefault("database.path", "wolgate.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("plugins.wakeonlan.enabled", true)
}

// Load reads the configuration file at path (optional) and applies
// environment overrides. An empty path searches the working directory and
// /etc/wolgate for wolgate.yaml; a missing file there is not an error.
func Load(path string) (*ViperConfig, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
		return New(v), nil
	}

	v.SetConfigName("wolgate")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/wolgate")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return New(v), nil
}
