// Package manifest reads add-on manifests and merges their device settings
// into the host configuration.
//
// Three shapes are accepted, in order of precedence:
//
//	moziot:  {config: {devices: [...], checkPing: true}}
//	options: {config: {devices: [...], checkPing: true}}
//	devices: [...] / checkPing: true at the top level
//
// JSON manifests parse as YAML, so one decoder serves both.
package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed manifest.json
var defaultRaw []byte

// Settings is the device configuration carried by a manifest.
type Settings struct {
	Devices   []string `yaml:"devices"`
	CheckPing *bool    `yaml:"checkPing"`
}

type section struct {
	Config *Settings `yaml:"config"`
}

// Manifest is a parsed add-on manifest.
type Manifest struct {
	Name        string   `yaml:"name"`
	DisplayName string   `yaml:"display_name"`
	Description string   `yaml:"description"`
	Version     string   `yaml:"version"`
	Moziot      *section `yaml:"moziot"`
	Options     *section `yaml:"options"`
	Settings    `yaml:",inline"`
}

// Config returns the device settings, preferring moziot.config over
// options.config over the top-level keys.
func (m *Manifest) Config() Settings {
	switch {
	case m.Moziot != nil && m.Moziot.Config != nil:
		return *m.Moziot.Config
	case m.Options != nil && m.Options.Config != nil:
		return *m.Options.Config
	default:
		return m.Settings
	}
}

// Parse decodes a JSON or YAML manifest.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: parse: %w", err)
	}
	return &m, nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %q: %w", path, err)
	}
	return Parse(data)
}

var (
	defaultOnce sync.Once
	defaultMan  *Manifest
	defaultErr  error
)

// Default returns the manifest bundled with the binary.
func Default() (*Manifest, error) {
	defaultOnce.Do(func() {
		defaultMan, defaultErr = Parse(defaultRaw)
	})
	return defaultMan, defaultErr
}

// Apply writes the manifest's device settings into v, which holds a single
// plugin's configuration. Keys the manifest leaves out are not touched, so
// file and environment values survive.
func (m *Manifest) Apply(v *viper.Viper) {
	s := m.Config()
	if s.Devices != nil {
		v.Set("devices", s.Devices)
	}
	if s.CheckPing != nil {
		v.Set("check_ping", *s.CheckPing)
	}
}
