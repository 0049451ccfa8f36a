// Package version tells which build of mixrack is running.
package version

import "runtime/debug"

// Version is empty unless set at build time, e.g.
//
//	go build -ldflags "-X github.com/vsariola/mixrack/version.Version=v0.3.0" ./cmd/...
var Version string

// Revision is the short VCS revision of the build, with "-dirty" appended if
// the work tree had changes. It is empty when the build has no VCS info.
var Revision = revision(debug.ReadBuildInfo())

func revision(info *debug.BuildInfo, ok bool) string {
	if !ok {
		return ""
	}
	var rev string
	dirty := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(rev) > 7 {
		rev = rev[:7]
	}
	if rev != "" && dirty {
		rev += "-dirty"
	}
	return rev
}

// String returns Version, or Revision if no version was set, or "devel".
func String() string {
	switch {
	case Version != "":
		return Version
	case Revision != "":
		return Revision
	}
	return "devel"
}
