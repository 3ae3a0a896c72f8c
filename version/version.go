package version

import (
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/kbukum/recpipe/version.Version=v0.3.0"
var (
	Version   = "dev"
	Commit    = ""
	BuildTime = ""
)

// Info describes the running recpipe binary.
type Info struct {
	Version   string    `json:"version" yaml:"version"`
	Commit    string    `json:"commit,omitempty" yaml:"commit,omitempty"`
	GoVersion string    `json:"go_version" yaml:"go_version"`
	BuiltAt   time.Time `json:"built_at,omitempty" yaml:"built_at,omitempty"`
	Dirty     bool      `json:"dirty,omitempty" yaml:"dirty,omitempty"`
}

var (
	buildOnce sync.Once
	buildInfo *debug.BuildInfo
)

func readBuildInfo() *debug.BuildInfo {
	buildOnce.Do(func() {
		if bi, ok := debug.ReadBuildInfo(); ok {
			buildInfo = bi
		}
	})
	return buildInfo
}

// Get returns version information. Linker-set values win over the VCS
// stamps recorded by the Go toolchain.
func Get() Info {
	info := Info{Version: Version, Commit: Commit}
	if BuildTime != "" {
		if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
			info.BuiltAt = t.UTC()
		}
	}

	bi := readBuildInfo()
	if bi == nil {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		case "vcs.time":
			if info.BuiltAt.IsZero() {
				if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
					info.BuiltAt = t.UTC()
				}
			}
		}
	}
	return info
}

// IsRelease reports whether the binary was built from a tagged, clean tree.
func (i Info) IsRelease() bool {
	return i.Version != "dev" && !i.Dirty && !strings.Contains(i.Version, "dirty")
}

// Short returns "<version>[-<commit7>][-dirty]".
func (i Info) Short() string {
	s := i.Version
	if i.Commit != "" {
		c := i.Commit
		if len(c) > 7 {
			c = c[:7]
		}
		s += "-" + c
	}
	if i.Dirty {
		s += "-dirty"
	}
	return s
}

// String is the one-line form printed by `recpipe version`.
func (i Info) String() string {
	s := "recpipe " + i.Short()
	if i.GoVersion != "" {
		s += " " + i.GoVersion
	}
	if !i.BuiltAt.IsZero() {
		s += fmt.Sprintf(" (built %s)", i.BuiltAt.Format(time.RFC3339))
	}
	return s
}

// Short is Get().Short().
func Short() string {
	return Get().Short()
}
