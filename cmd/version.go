package cmd

import "fmt"

var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// SetVersionInfo records build-time version information set via ldflags.
func SetVersionInfo(v, c, d string) {
	buildVersion = v
	buildCommit = c
	buildDate = d
	rootCmd.Version = GetVersion()
}

// GetVersion returns the tool's own version string.
func GetVersion() string {
	return fmt.Sprintf("%s (commit: %s, date: %s)", buildVersion, buildCommit, buildDate)
}
