// Package misc keeps application identity helpers used in logging, version
// output and report naming.
package misc

import (
	"runtime/debug"
	"strings"
)

const appName = "csslint"

// set by the linker during release builds
var (
	version = ""
	gitHash = ""
)

// GetAppName returns short program name used for logs and reports.
func GetAppName() string {
	return appName
}

// GetVersion returns program version - either set at link time or derived
// from module build information.
func GetVersion() string {
	if len(version) > 0 {
		return version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && len(bi.Main.Version) > 0 {
		return bi.Main.Version
	}
	return "(devel)"
}

// GetGitHash returns VCS revision recorded in build information.
func GetGitHash() string {
	if len(gitHash) > 0 {
		return gitHash
	}
	var rev, modified string
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				rev = s.Value
			case "vcs.modified":
				if s.Value == "true" {
					modified = "*"
				}
			}
		}
	}
	if len(rev) == 0 {
		return "unknown"
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	return strings.TrimSpace(rev + modified)
}
