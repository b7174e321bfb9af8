package metadata

// Overwritten with -ldflags "-X github.com/kofuk/amcs/internal/metadata.Version=..." on release builds.
var Version = "dev"
