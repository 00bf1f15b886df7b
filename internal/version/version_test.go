package version

import (
	"runtime"
	"runtime/debug"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	info := Info()
	for _, want := range []string{"wolgate", runtime.Version(), runtime.GOOS + "/" + runtime.GOARCH} {
		if !strings.Contains(info, want) {
			t.Errorf("Info() should contain %q, got: %s", want, info)
		}
	}
}

func TestShortOverride(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })

	Version = "0.2.0"
	if got := Short(); got != "0.2.0" {
		t.Errorf("Short() = %q, want %q", got, "0.2.0")
	}
}

func TestMap(t *testing.T) {
	m := Map()

	for _, key := range []string{"version", "git_commit", "build_date", "go_version", "os", "arch"} {
		if _, ok := m[key]; !ok {
			t.Errorf("Map() missing key %q", key)
		}
	}
	if m["go_version"] != runtime.Version() {
		t.Errorf("Map()[\"go_version\"] = %q, want %q", m["go_version"], runtime.Version())
	}
}

func TestFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Path: "github.com/HerbHall/wolgate", Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
		},
	}
	got := fromBuildInfo(bi)
	if got.version != "v0.3.1" || got.commit != "0123456789ab" || got.date != "2026-10-01T12:00:00Z" {
		t.Errorf("fromBuildInfo() = %+v", got)
	}

	devel := fromBuildInfo(&debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	if devel.version != "" {
		t.Errorf("(devel) build should not override the version, got %q", devel.version)
	}
}
