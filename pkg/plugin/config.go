package plugin

import "time"

// Config is a read-only view over hierarchical configuration.
type Config interface {
	GetString(key string) string
	GetStringSlice(key string) []string
	GetInt(key string) int
	GetFloat64(key string) float64
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	IsSet(key string) bool
	Sub(key string) Config
	Unmarshal(target any) error
}
