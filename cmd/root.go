package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wshanks/release/internal/config"
	"github.com/wshanks/release/internal/github"
	"github.com/wshanks/release/internal/gitrepo"
	"github.com/wshanks/release/internal/release"
	"github.com/wshanks/release/internal/version"
)

var (
	releaseArg string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "release",
	Short: "Cut a new release of the current git repository",
	Long: `Release validates the requested version against the repository's tags and
recorded version, rewrites version strings in the configured files, commits
and tags the change, builds, pushes, optionally publishes a GitHub release,
and bumps the tree to the next pre-release version.`,
	Version:       GetVersion(),
	RunE:          runRelease,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Flags().StringVarP(&releaseArg, "release", "r", "", "Release version string")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file")
	_ = rootCmd.MarkFlagRequired("release")
	_ = rootCmd.MarkFlagRequired("config")
}

func runRelease(cmd *cobra.Command, _ []string) error {
	requested, err := version.Parse(releaseArg)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	timeout, err := cfg.CommandTimeout()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	repo, err := gitrepo.Open(ctx, ".", timeout)
	if err != nil {
		return err
	}

	var publisher release.Publisher
	if cfg.GitHub != nil {
		token, err := loadToken(filepath.Join(repo.Root(), cfg.GitHub.Token))
		if err != nil {
			return err
		}
		client := github.NewClient(cfg.GitHub.User, cfg.GitHub.Repo, token)
		publisher = github.NewPublisher(client, repo.Root())
	}

	return release.New(repo, cfg, publisher, timeout).Run(ctx, requested)
}

func loadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
