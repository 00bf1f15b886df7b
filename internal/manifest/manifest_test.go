package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Shapes(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		devices   []string
		checkPing *bool
	}{
		{
			name:      "moziot json",
			data:      `{"name":"wake-on-lan","moziot":{"config":{"devices":["AA:BB:CC:DD:EE:01"],"checkPing":true}}}`,
			devices:   []string{"AA:BB:CC:DD:EE:01"},
			checkPing: ptr(true),
		},
		{
			name:    "options json",
			data:    `{"options":{"config":{"devices":["aa:bb:cc:dd:ee:02"]}}}`,
			devices: []string{"aa:bb:cc:dd:ee:02"},
		},
		{
			name:      "flat yaml",
			data:      "devices:\n  - AA:BB:CC:DD:EE:03\ncheckPing: false\n",
			devices:   []string{"AA:BB:CC:DD:EE:03"},
			checkPing: ptr(false),
		},
		{
			name:      "moziot wins over options",
			data:      "moziot:\n  config:\n    checkPing: true\noptions:\n  config:\n    devices: [AA:BB:CC:DD:EE:04]\n",
			checkPing: ptr(true),
		},
		{
			name: "empty",
			data: "{}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(tt.data))
			require.NoError(t, err)
			s := m.Config()
			assert.Equal(t, tt.devices, s.Devices)
			assert.Equal(t, tt.checkPing, s.CheckPing)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("devices: [unterminated"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"x","version":"1.2.3"}`), 0o600))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "x", m.Name)
	assert.Equal(t, "1.2.3", m.Version)

	_, err = Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "wake-on-lan", m.Name)
	assert.NotEmpty(t, m.Version)
	s := m.Config()
	assert.Empty(t, s.Devices)
	require.NotNil(t, s.CheckPing)
	assert.False(t, *s.CheckPing)
}

func TestApply(t *testing.T) {
	v := viper.New()
	v.Set("devices", []string{"00:00:00:00:00:01"})
	v.Set("check_ping", true)
	v.Set("ping_interval", "10s")

	m, err := Parse([]byte(`{"moziot":{"config":{"devices":["AA:BB:CC:DD:EE:01","AA:BB:CC:DD:EE:02"]}}}`))
	require.NoError(t, err)
	m.Apply(v)

	assert.Equal(t, []string{"AA:BB:CC:DD:EE:01", "AA:BB:CC:DD:EE:02"}, v.GetStringSlice("devices"))
	assert.True(t, v.GetBool("check_ping"), "keys absent from the manifest are kept")
	assert.Equal(t, "10s", v.GetString("ping_interval"))
}

func ptr[T any](v T) *T { return &v }
