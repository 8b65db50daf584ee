// Package build reports how the running binary was built.
package build

import (
	"encoding/json"
	"log/slog"
	"runtime/debug"
)

// Injected is build metadata set at link time:
//
//	go build -ldflags "-X github.com/amp-labs/amp-fsm/build.Injected=$(cat build.json)"
var Injected string //nolint:gochecknoglobals

// Info describes a build.
type Info struct {
	Version      string            `json:"version,omitempty"`
	GitCommit    string            `json:"git_commit,omitempty"` //nolint:tagliatelle
	GitDate      string            `json:"git_date,omitempty"`   //nolint:tagliatelle
	GitDirty     bool              `json:"git_dirty,omitempty"`  //nolint:tagliatelle
	BuildTime    string            `json:"build_time,omitempty"` //nolint:tagliatelle
	GoVersion    string            `json:"go_version,omitempty"` //nolint:tagliatelle
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Parse decodes build info JSON. Empty input and "{}" report false.
func Parse(js string) (*Info, bool) {
	if js == "" || js == "{}" {
		return nil, false
	}

	var info Info

	if err := json.Unmarshal([]byte(js), &info); err != nil {
		slog.Warn("Failed to parse build info from JSON",
			"data", js,
			"error", err)

		return nil, false
	}

	return &info, true
}

// Current returns the injected build info, filling gaps from the module
// information the Go toolchain embeds.
func Current() *Info {
	info, ok := Parse(Injected)
	if !ok {
		info = &Info{}
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		merge(info, bi)
	}

	return info
}

func merge(info *Info, bi *debug.BuildInfo) {
	if info.GoVersion == "" {
		info.GoVersion = bi.GoVersion
	}

	if info.Version == "" && bi.Main.Version != "" {
		info.Version = bi.Main.Version
	}

	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "" {
				info.GitCommit = s.Value
			}
		case "vcs.time":
			if info.GitDate == "" {
				info.GitDate = s.Value
			}
		case "vcs.modified":
			info.GitDirty = info.GitDirty || s.Value == "true"
		}
	}

	if len(info.Dependencies) == 0 && len(bi.Deps) > 0 {
		info.Dependencies = make(map[string]string, len(bi.Deps))

		for _, dep := range bi.Deps {
			info.Dependencies[dep.Path] = dep.Version
		}
	}
}
