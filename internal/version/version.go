// Package version holds build metadata injected via ldflags:
//
//	go build -ldflags "-X github.com/kailas-cloud/rhokp/internal/version.Version=v0.3.0"
package version

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// UserAgent identifies the client to the portal and the cache store.
func UserAgent() string { return "rhokp-go/" + Version }
