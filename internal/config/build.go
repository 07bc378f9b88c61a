package config

// Release builds stamp these with
//
//	go build -ldflags "-X carbmine/internal/config.version=$(git describe --tags) \
//	    -X carbmine/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X carbmine/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/api
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo reports the stamped build metadata.
func NewBuildInfo() BuildInfo {
	return BuildInfo{Version: version, Commit: commit, BuildTime: buildTime}
}
