package version

// Injected at build time via -ldflags.
var (
	GitVersion = "v0.1.0-dev"
	GitCommit  = ""
)
