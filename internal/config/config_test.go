package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestViperConfigGetString(t *testing.T) {
	v := viper.New()
	v.Set("name", "test")
	cfg := New(v)

	if got := cfg.GetString("name"); got != "test" {
		t.Errorf("GetString('name') = %q, want %q", got, "test")
	}
}

func TestViperConfigGetStringSlice(t *testing.T) {
	v := viper.New()
	v.Set("devices", []string{"AA:BB:CC:DD:EE:01", "AA:BB:CC:DD:EE:02"})
	cfg := New(v)

	got := cfg.GetStringSlice("devices")
	if len(got) != 2 || got[0] != "AA:BB:CC:DD:EE:01" {
		t.Errorf("GetStringSlice('devices') = %v", got)
	}
}

func TestViperConfigGetBool(t *testing.T) {
	v := viper.New()
	v.Set("check_ping", true)
	cfg := New(v)

	if got := cfg.GetBool("check_ping"); !got {
		t.Error("GetBool('check_ping') = false, want true")
	}
}

func TestViperConfigGetDuration(t *testing.T) {
	v := viper.New()
	v.Set("ping_interval", "30s")
	cfg := New(v)

	want := 30 * time.Second
	if got := cfg.GetDuration("ping_interval"); got != want {
		t.Errorf("GetDuration('ping_interval') = %v, want %v", got, want)
	}
}

func TestViperConfigIsSet(t *testing.T) {
	v := viper.New()
	v.Set("exists", true)
	cfg := New(v)

	if !cfg.IsSet("exists") {
		t.Error("IsSet('exists') = false, want true")
	}
	if cfg.IsSet("missing") {
		t.Error("IsSet('missing') = true, want false")
	}
}

func TestViperConfigSub(t *testing.T) {
	v := viper.New()
	v.Set("plugins.wakeonlan.enabled", true)
	v.Set("plugins.wakeonlan.ping_count", 3)
	cfg := New(v)

	sub := cfg.Sub("plugins.wakeonlan")
	if sub == nil {
		t.Fatal("Sub('plugins.wakeonlan') = nil")
	}
	if got := sub.GetBool("enabled"); !got {
		t.Error("sub.GetBool('enabled') = false, want true")
	}
	if got := sub.GetInt("ping_count"); got != 3 {
		t.Errorf("sub.GetInt('ping_count') = %d, want %d", got, 3)
	}
}

func TestViperConfigSubMissing(t *testing.T) {
	cfg := New(viper.New())

	sub := cfg.Sub("nonexistent")
	if sub == nil {
		t.Fatal("Sub('nonexistent') should return empty Config, not nil")
	}
	if got := sub.GetString("anything"); got != "" {
		t.Errorf("empty config GetString() = %q, want empty", got)
	}
}

func TestViperConfigUnmarshal(t *testing.T) {
	v := viper.New()
	v.Set("broadcast_addr", "192.168.1.255:9")
	v.Set("ping_count", 2)
	cfg := New(v)

	var target struct {
		BroadcastAddr string `mapstructure:"broadcast_addr"`
		PingCount     int    `mapstructure:"ping_count"`
	}
	if err := cfg.Unmarshal(&target); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if target.BroadcastAddr != "192.168.1.255:9" {
		t.Errorf("BroadcastAddr = %q, want %q", target.BroadcastAddr, "192.168.1.255:9")
	}
	if target.PingCount != 2 {
		t.Errorf("PingCount = %d, want %d", target.PingCount, 2)
	}
}

func TestNilViper(t *testing.T) {
	cfg := New(nil)
	if got := cfg.GetString("key"); got != "" {
		t.Errorf("nil viper GetString() = %q, want empty", got)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wolgate.yaml")
	content := `
server:
  port: "9090"
plugins:
  wakeonlan:
    check_ping: true
    devices:
      - "AA:BB:CC:DD:EE:01"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.GetString("server.port"); got != "9090" {
		t.Errorf("server.port = %q, want 9090", got)
	}
	if got := cfg.GetString("server.host"); got != "0.0.0.0" {
		t.Errorf("server.host default = %q, want 0.0.0.0", got)
	}
	wol := cfg.Sub("plugins.wakeonlan")
	if !wol.GetBool("check_ping") {
		t.Error("plugins.wakeonlan.check_ping = false, want true")
	}
	if devs := wol.GetStringSlice("devices"); len(devs) != 1 {
		t.Errorf("devices = %v, want one entry", devs)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() expected error for missing explicit file, got nil")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("WOLGATE_SERVER_PORT", "7070")
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.GetString("server.port"); got != "7070" {
		t.Errorf("server.port = %q, want 7070", got)
	}
}
