// Package buildconfig carries version information injected at build time:
//
//	go build -ldflags "-X github.com/Harshitk-cp/doxa/internal/buildconfig.version=v0.1.0"
package buildconfig

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func Version() string { return version }

func Commit() string { return commit }

// Date is the build timestamp, RFC 3339 when the build sets it.
func Date() string { return date }
