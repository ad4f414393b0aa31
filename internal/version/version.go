// Package version holds build metadata injected with -ldflags, for example
//
//	go build -ldflags "-X github.com/banshee-data/accmouse/internal/version.Version=v0.2.0"
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build metadata for -version output.
func String() string {
	return fmt.Sprintf("accmouse %s (git %s, built %s)", Version, GitSHA, BuildTime)
}
