package app

import "runtime"

// Set at link time, e.g.
//
//	go build -ldflags "-X github.com/large-farva/coverage-engine/internal/app.Version=v0.3.0" ./cmd/coverage
var (
	Version   = "dev"
	GoVersion = "unknown"
	BuiltAt   = "unknown"
)

// versionInfo is the body of GET /api/version.
func versionInfo() map[string]string {
	return map[string]string{
		"version":    Version,
		"go_version": GoVersion,
		"built_at":   BuiltAt,
		"runtime":    runtime.Version(),
	}
}
