// Package version reports build metadata. Release builds set the variables
// with -ldflags "-X github.com/kailas-cloud/ragpipe/internal/version.Version=...".
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Revision returns Commit, or the VCS revision stamped by the go toolchain
// when ldflags did not set one.
func Revision() string {
	if Commit != "" {
		return Commit
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 12 {
				return s.Value[:12]
			}
		}
	}
	return "unknown"
}

// String formats the metadata for --version.
func String() string {
	s := fmt.Sprintf("ragpipe %s (commit %s", Version, Revision())
	if Date != "" {
		s += ", built " + Date
	}
	return s + ")"
}
