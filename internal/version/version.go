// Package version exposes build-time version information.
package version

import "fmt"

// Set via -ldflags at build time:
//
//	go build -ldflags "-X .../internal/version.Version=0.3.0 -X .../internal/version.Commit=abc1234"
var (
	Version = "dev"
	Commit  = "unknown"
)

// Short returns the bare version string.
func Short() string {
	return Version
}

// Info returns a human-readable version line.
func Info() string {
	return fmt.Sprintf("llmgate %s (%s)", Version, Commit)
}

// Map returns version fields for JSON responses.
func Map() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
	}
}
