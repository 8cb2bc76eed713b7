package version

import (
	"fmt"
	"runtime"
	"strings"
)

// These variables are set via ldflags during build.
var (
	Version   = "dev"
	Commit    = "none"
	Date      = "unknown"
	GoVersion = runtime.Version()
)

func Platform() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}

// Summary is the short form used in the User-Agent and the status bar.
func Summary() string {
	v := Version
	if v == "" {
		v = "dev"
	}
	if Commit != "" && Commit != "none" {
		short := Commit
		if len(short) > 7 {
			short = short[:7]
		}
		return fmt.Sprintf("%s (%s)", v, short)
	}
	return v
}

// Details renders the multi-line block printed by `folio version`.
func Details() string {
	var b strings.Builder
	fmt.Fprintf(&b, "folio version %s\n", Summary())
	fmt.Fprintf(&b, "  commit: %s\n", Commit)
	fmt.Fprintf(&b, "  built: %s\n", Date)
	fmt.Fprintf(&b, "  go: %s\n", GoVersion)
	fmt.Fprintf(&b, "  platform: %s\n", Platform())
	return b.String()
}
