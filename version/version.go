package version

import "runtime"

// Set at build time with -ldflags "-X nixstrap/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
	Arch    = runtime.GOARCH
	OS      = runtime.GOOS
)
