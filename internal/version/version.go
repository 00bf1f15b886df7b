// Package version reports what wolgate binary is running. Release builds set
// the variables through ldflags:
//
//	-X github.com/HerbHall/wolgate/internal/version.Version=0.2.0
//
// Builds without ldflags fall back to the module version and VCS stamp that
// the Go toolchain records in the binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type info struct {
	version, commit, date string
}

var (
	resolveOnce sync.Once
	buildInfo   = debug.ReadBuildInfo
	fallback    info
)

// resolved merges the ldflags values with the embedded build info. Values
// set through ldflags always win.
func resolved() info {
	resolveOnce.Do(func() {
		bi, ok := buildInfo()
		if !ok {
			return
		}
		fallback = fromBuildInfo(bi)
	})

	out := info{version: Version, commit: GitCommit, date: BuildDate}
	if out.version == "dev" && fallback.version != "" {
		out.version = fallback.version
	}
	if out.commit == "unknown" && fallback.commit != "" {
		out.commit = fallback.commit
	}
	if out.date == "unknown" && fallback.date != "" {
		out.date = fallback.date
	}
	return out
}

func fromBuildInfo(bi *debug.BuildInfo) info {
	var out info
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		out.version = v
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			out.commit = s.Value
			if len(out.commit) > 12 {
				out.commit = out.commit[:12]
			}
		case "vcs.time":
			out.date = s.Value
		}
	}
	return out
}

// Info returns the one-line description printed by `wolgate version`.
func Info() string {
	r := resolved()
	return fmt.Sprintf("wolgate %s (commit: %s, built: %s, go: %s, %s/%s)",
		r.version, r.commit, r.date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version, e.g. "0.1.0" or "dev".
func Short() string {
	return resolved().version
}

// Map returns the build information for JSON responses.
func Map() map[string]string {
	r := resolved()
	return map[string]string{
		"version":    r.version,
		"git_commit": r.commit,
		"build_date": r.date,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	}
}
