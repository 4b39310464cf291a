// Package version holds build metadata injected with -ldflags:
//
//	go build -ldflags "\
//	  -X github.com/GoChartingAdmin/bfx-hf-data-server/internal/version.Version=$(git describe --tags) \
//	  -X github.com/GoChartingAdmin/bfx-hf-data-server/internal/version.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/GoChartingAdmin/bfx-hf-data-server/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	  ./cmd/bfx-hf-data-server
package version

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns "<version> (<commit>, built <time>)".
func String() string {
	return Version + " (" + Commit + ", built " + BuildTime + ")"
}
