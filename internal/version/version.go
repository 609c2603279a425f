// Package version holds build information injected with -ldflags.
package version

import (
	"fmt"
	"runtime"

	"github.com/aatumaykin/ledgercron/internal/constants"
)

var (
	Version   = constants.DefaultVersion
	BuildTime = constants.DefaultBuildTime
	GitCommit = constants.DefaultGitCommit
	GoVersion = constants.DefaultGoVersion
)

func SetInfo(v, bt, gc, gv string) {
	if v != "" {
		Version = v
	}
	if bt != "" {
		BuildTime = bt
	}
	if gc != "" {
		GitCommit = gc
	}
	if gv != "" {
		GoVersion = gv
	}
}

// Go returns the Go version the binary was built with.
func Go() string {
	if GoVersion != constants.DefaultGoVersion {
		return GoVersion
	}
	return runtime.Version()
}

// FormatStartupMessage returns the line logged and reported to systemd on startup.
func FormatStartupMessage() string {
	return fmt.Sprintf("ledgercron %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}

// Details returns the multi-line output of the version command.
func Details() string {
	return fmt.Sprintf("ledgercron %s\nCommit:     %s\nBuild time: %s\nGo version: %s\n",
		Version, GitCommit, BuildTime, Go())
}
