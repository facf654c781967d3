// Package version holds build-time version metadata, overridden via
// -ldflags "-X github.com/kubarr/kubarr/internal/version.Version=... -X .../Commit=..."
package version

var (
	Version = "dev"
	Commit  = "none"
)
