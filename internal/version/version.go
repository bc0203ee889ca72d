// Package version carries the build identity stamped in at link time.
package version

import (
	"fmt"
	"runtime"
)

// Set via -ldflags at release build time; the zero values identify a
// development build.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the full build identity.
func String() string {
	return fmt.Sprintf("warden %s (commit %s, built %s, %s/%s)",
		Version, Commit, Date, runtime.GOOS, runtime.GOARCH)
}
