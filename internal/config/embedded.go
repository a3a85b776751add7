package config

// Build-time values injected via ldflags. The keys serve as defaults and can
// be overridden by environment variables or the config file.
//
// Build with:
//   go build -ldflags "-X 'github.com/mediashelf/mediashelf/internal/config.EmbeddedTMDBKey=xxx' \
//                      -X 'github.com/mediashelf/mediashelf/internal/config.EmbeddedAcoustIDKey=yyy'"
var (
	Version             = "dev"
	EmbeddedTMDBKey     string
	EmbeddedOMDBKey     string
	EmbeddedAcoustIDKey string
)
