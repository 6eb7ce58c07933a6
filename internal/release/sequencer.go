// Package release drives the release sequence: validate the requested
// version against git history, rewrite version strings, commit and tag,
// build, push, optionally publish, then bump the tree to the next alpha.
package release

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wshanks/release/internal/config"
	"github.com/wshanks/release/internal/rewrite"
	"github.com/wshanks/release/internal/version"
)

var (
	// ErrStaleBranch means the last published tag is newer than the version
	// recorded in the tree, usually because an old branch is checked out.
	ErrStaleBranch = errors.New("current version older than last tagged version")
	// ErrNotNewer means the requested release is behind the recorded version.
	ErrNotNewer = errors.New("requested release not newer than current version")
	// ErrDirtyWorkingTree means uncommitted changes exist before mutation.
	ErrDirtyWorkingTree = errors.New("working tree has uncommitted changes")
	// ErrNoCurrentVersion means the first target's pattern matched nothing.
	ErrNoCurrentVersion = errors.New("no version string found in target file")
)

// GitRepo is the repository handle every mutating step goes through.
// *gitrepo.Repo implements it.
type GitRepo interface {
	Root() string
	Tags(ctx context.Context) ([]string, error)
	Clean(ctx context.Context) (bool, error)
	StagedClean(ctx context.Context) (bool, error)
	Add(ctx context.Context, path string) error
	Commit(ctx context.Context, message string) error
	Tag(ctx context.Context, name string) error
	Push(ctx context.Context) error
	PushTags(ctx context.Context) error
	PushRef(ctx context.Context, remote, branch string) error
}

// Publisher publishes a hosted release for a tag and uploads its assets.
type Publisher interface {
	Publish(ctx context.Context, tag string, assets []config.Asset) error
}

// Sequencer runs the fixed release protocol over one repository.
type Sequencer struct {
	repo      GitRepo
	cfg       *config.Config
	publisher Publisher // nil when no release hosting is configured
	timeout   time.Duration
	runCmd    func(ctx context.Context, dir string, argv []string) error
	logger    zerolog.Logger
}

// New creates a sequencer. publisher may be nil.
func New(repo GitRepo, cfg *config.Config, publisher Publisher, timeout time.Duration) *Sequencer {
	return &Sequencer{
		repo:      repo,
		cfg:       cfg,
		publisher: publisher,
		timeout:   timeout,
		runCmd:    runCommand,
		logger:    log.Logger.With().Str("component", "release").Logger(),
	}
}

// Run executes the whole sequence for the requested release. Once the tree
// has been mutated there is no rollback; any later failure aborts and
// leaves the repository for the operator to clean up.
func (s *Sequencer) Run(ctx context.Context, requested version.Version) error {
	last, err := s.lastVersion(ctx)
	if err != nil {
		return err
	}
	current, err := s.currentVersion()
	if err != nil {
		return err
	}

	if err := ValidateOrdering(last, current, requested); err != nil {
		return err
	}
	s.logger.Info().
		Stringer("last", last).
		Stringer("current", current).
		Stringer("requested", requested).
		Msg("Versions in order")

	clean, err := s.repo.Clean(ctx)
	if err != nil {
		return err
	}
	if !clean {
		return ErrDirtyWorkingTree
	}

	if err := s.RewriteAndCommit(ctx, requested, s.cfg.VersionStrings); err != nil {
		return err
	}

	if err := s.build(ctx); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	if err := s.pushRelease(ctx, requested); err != nil {
		return err
	}

	return s.bumpToAlpha(ctx, requested)
}

// ValidateOrdering checks last <= current and requested >= current.
// requested == current is allowed; a true duplicate surfaces later when
// tag creation fails.
func ValidateOrdering(last, current, requested version.Version) error {
	if last.NewerThan(current) {
		return fmt.Errorf("%w (last %s, current %s): working from an old branch?",
			ErrStaleBranch, last, current)
	}
	if requested.OlderThan(current) {
		return fmt.Errorf("%w (requested %s, current %s)",
			ErrNotNewer, requested, current)
	}
	return nil
}

// NextPrerelease returns the version that opens the next development cycle
// after a release: the first alpha of the next micro version.
func NextPrerelease(release version.Version) version.Version {
	return version.New(release.Major, release.Minor, release.Micro+1, version.Alpha, 1)
}

// RewriteAndCommit rewrites every target to the given version, stages the
// files, commits when anything actually changed, and always creates the
// release tag. A pre-existing tag makes this fail; that is surfaced rather
// than pre-checked.
func (s *Sequencer) RewriteAndCommit(ctx context.Context, v version.Version, targets []config.Target) error {
	if err := s.rewriteTargets(ctx, v, targets); err != nil {
		return err
	}

	stagedClean, err := s.repo.StagedClean(ctx)
	if err != nil {
		return err
	}
	if !stagedClean {
		if err := s.repo.Commit(ctx, fmt.Sprintf("Version %s", v)); err != nil {
			return err
		}
	} else {
		s.logger.Info().Stringer("version", v).Msg("No file changes, skipping commit")
	}

	return s.repo.Tag(ctx, v.Tag())
}

func (s *Sequencer) rewriteTargets(ctx context.Context, v version.Version, targets []config.Target) error {
	for i := range targets {
		target := &targets[i]
		path := filepath.Join(s.repo.Root(), target.Path)
		changed, err := rewrite.ReplaceInFile(path, target.Regexp(), v.String())
		if err != nil {
			return fmt.Errorf("failed to rewrite %s: %w", target.Path, err)
		}
		s.logger.Debug().Str("path", target.Path).Bool("changed", changed).Msg("Rewrote target")
		if err := s.repo.Add(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

// lastVersion returns the highest parseable tag, or 0.0.0 when none parse.
func (s *Sequencer) lastVersion(ctx context.Context) (version.Version, error) {
	tags, err := s.repo.Tags(ctx)
	if err != nil {
		return version.Version{}, err
	}

	newest := version.New(0, 0, 0, version.Release, 0)
	for _, tag := range tags {
		v, err := version.Parse(tag)
		if err != nil {
			continue
		}
		if v.NewerThan(newest) {
			newest = v
		}
	}
	return newest, nil
}

// currentVersion extracts the recorded version from the first target.
func (s *Sequencer) currentVersion() (version.Version, error) {
	target := &s.cfg.VersionStrings[0]
	path := filepath.Join(s.repo.Root(), target.Path)

	data, err := os.ReadFile(path)
	if err != nil {
		return version.Version{}, fmt.Errorf("failed to read %s: %w", target.Path, err)
	}

	re := target.Regexp()
	group := re.SubexpIndex("release")
	for _, line := range bytes.Split(data, []byte("\n")) {
		match := re.FindSubmatch(line)
		if match == nil || group < 0 || match[group] == nil {
			continue
		}
		return version.Parse(string(match[group]))
	}
	return version.Version{}, fmt.Errorf("%w: %s", ErrNoCurrentVersion, target.Path)
}

func (s *Sequencer) build(ctx context.Context) error {
	for _, argv := range s.cfg.Build.Commands {
		s.logger.Info().Strs("command", argv).Msg("Building")
		cmdCtx := ctx
		var cancel context.CancelFunc = func() {}
		if s.timeout > 0 {
			cmdCtx, cancel = context.WithTimeout(ctx, s.timeout)
		}
		err := s.runCmd(cmdCtx, s.repo.Root(), argv)
		cancel()
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Sequencer) pushRelease(ctx context.Context, v version.Version) error {
	if err := s.repo.Push(ctx); err != nil {
		return err
	}
	if err := s.repo.PushTags(ctx); err != nil {
		return err
	}

	if gr := s.cfg.GitRelease; gr != nil {
		if err := s.repo.PushRef(ctx, gr.Remote, gr.Branch); err != nil {
			return err
		}
	}

	if s.publisher != nil {
		var assets []config.Asset
		if s.cfg.GitHub != nil {
			assets = s.cfg.GitHub.Assets
		}
		if err := s.publisher.Publish(ctx, v.Tag(), assets); err != nil {
			return fmt.Errorf("failed to publish release: %w", err)
		}
	}
	return nil
}

// bumpToAlpha rewrites the tree to the first alpha of the next micro
// version and pushes, skipping targets flagged skip_alpha. The commit is
// unconditional; nothing is tagged.
func (s *Sequencer) bumpToAlpha(ctx context.Context, released version.Version) error {
	next := NextPrerelease(released)
	s.logger.Info().Stringer("version", next).Msg("Bumping to next pre-release")

	var targets []config.Target
	for _, t := range s.cfg.VersionStrings {
		if t.SkipAlpha {
			continue
		}
		targets = append(targets, t)
	}

	if err := s.rewriteTargets(ctx, next, targets); err != nil {
		return err
	}
	if err := s.repo.Commit(ctx, fmt.Sprintf("Bump version to beta %s", next)); err != nil {
		return err
	}
	return s.repo.Push(ctx)
}

func runCommand(ctx context.Context, dir string, argv []string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
