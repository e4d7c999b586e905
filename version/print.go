// Package version reports the bwcheck build.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Short is the release version. GitCommit and GitDirty are set at link time:
//
//	go build -ldflags "-X bwcheck.dev/version.GitCommit=$(git rev-parse HEAD)"
var (
	Short     = "0.3.1"
	GitCommit = ""
	GitDirty  = ""
)

func String() string {
	var ret strings.Builder
	ret.WriteString(Short)
	ret.WriteByte('\n')
	commit, dirty := GitCommit, GitDirty == "true"
	if commit == "" {
		commit, dirty = vcsInfo()
	}
	if commit != "" {
		var suffix string
		if dirty {
			suffix = "-dirty"
		}
		fmt.Fprintf(&ret, "  bwcheck commit: %s%s\n", commit, suffix)
	}
	fmt.Fprintf(&ret, "  go version: %s\n", runtime.Version())
	return strings.TrimSpace(ret.String())
}

// vcsInfo reads the commit stamped into the binary by the go command, if
// any.
func vcsInfo() (commit string, dirty bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			commit = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	return commit, dirty
}
