package app

// Version stamps, overridden at release time with
// -ldflags "-X github.com/discrapp/discr-site/internal/app.BuildVersion=...".
// The zero-config values below are what `discr-site --version` prints from a
// plain `go build`.
var (
	BuildVersion = "0.0.0-dev"
	BuildCommit  = "unknown"
	// BuildDate is RFC 3339, UTC.
	BuildDate = "unknown"
)
