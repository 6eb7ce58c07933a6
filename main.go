package main

import (
	"os"

	"github.com/wshanks/release/cmd"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Version information set via ldflags during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Configure zerolog
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Check for debug log level from environment
	if os.Getenv("RELEASE_LOG_LEVEL") == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Set version information
	cmd.SetVersionInfo(version, commit, date)

	// Execute root command
	if err := cmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Release failed")
	}
}
