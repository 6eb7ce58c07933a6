package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// releaseGroup is the named capture group every target pattern must contain.
const releaseGroup = "release"

// Config represents the release configuration file
type Config struct {
	VersionStrings []Target          `yaml:"version_strings" validate:"required,min=1,dive"`
	GitRelease     *GitReleaseConfig `yaml:"git_release"`
	GitHub         *GitHubConfig     `yaml:"github"`
	Build          BuildConfig       `yaml:"build"`
	Timeout        string            `yaml:"timeout"` // per-command timeout (e.g. "5m"), empty for none
}

// Target identifies one place in the tree where a version string is kept.
// Pattern must contain a (?P<release>...) group capturing the version.
type Target struct {
	Path      string `yaml:"path" validate:"required"`
	Pattern   string `yaml:"pattern" validate:"required"`
	SkipAlpha bool   `yaml:"skip_alpha"` // leave this target alone during the post-release alpha bump

	re *regexp.Regexp
}

// Regexp returns the compiled pattern. Only valid after Load or Compile.
func (t *Target) Regexp() *regexp.Regexp {
	return t.re
}

// Compile compiles the target pattern and checks it captures a "release"
// group.
func (t *Target) Compile() error {
	re, err := regexp.Compile(t.Pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern for %s: %w", t.Path, err)
	}
	found := false
	for _, name := range re.SubexpNames() {
		if name == releaseGroup {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("pattern for %s is missing a (?P<release>...) group", t.Path)
	}
	t.re = re
	return nil
}

// GitReleaseConfig configures an extra push of HEAD to a named remote branch
// after the release is tagged (optional)
type GitReleaseConfig struct {
	Remote string `yaml:"remote" validate:"required"`
	Branch string `yaml:"branch" validate:"required"`
}

// GitHubConfig configures publishing a GitHub release with uploaded assets
// (optional)
type GitHubConfig struct {
	User   string  `yaml:"user" validate:"required"`
	Repo   string  `yaml:"repo" validate:"required"`
	Token  string  `yaml:"token" validate:"required"` // path to a token file, relative to the git root
	Assets []Asset `yaml:"assets" validate:"dive"`
}

// Asset is one file uploaded under the GitHub release
type Asset struct {
	Path string `yaml:"path" validate:"required"`
	Type string `yaml:"type" validate:"required"` // content type sent on upload
}

// BuildConfig overrides the build invocation run after tagging (optional).
// Each command is an argv list; the default is "make clean" then "make".
type BuildConfig struct {
	Commands [][]string `yaml:"commands"`
}

// Load loads and validates a configuration file
func Load(path string) (*Config, error) {
	log.Debug().Str("path", path).Msg("Loading configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Defaults
	if len(config.Build.Commands) == 0 {
		config.Build.Commands = [][]string{{"make", "clean"}, {"make"}}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Debug().Int("targets", len(config.VersionStrings)).Msg("Configuration loaded successfully")
	return &config, nil
}

// Validate validates the configuration and compiles the target patterns
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	for i := range c.VersionStrings {
		if err := c.VersionStrings[i].Compile(); err != nil {
			return err
		}
	}

	if _, err := c.CommandTimeout(); err != nil {
		return err
	}

	for _, cmd := range c.Build.Commands {
		if len(cmd) == 0 {
			return fmt.Errorf("build.commands entries must not be empty")
		}
	}

	return nil
}

// CommandTimeout returns the configured per-command timeout, zero when none
// is set.
func (c *Config) CommandTimeout() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := str2duration.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	return d, nil
}
