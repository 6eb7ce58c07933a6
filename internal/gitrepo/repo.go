package gitrepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	goversion "github.com/hashicorp/go-version"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// minGitVersion is the oldest git this tool is known to work with.
var minGitVersion = goversion.Must(goversion.NewVersion("2.0.0"))

// Repo is a handle on a single git working tree. All repository state the
// release sequence mutates goes through this handle.
type Repo struct {
	root    string
	timeout time.Duration // per-command timeout, zero for none
	logger  zerolog.Logger
}

// Open verifies git is available and resolves the toplevel of the working
// tree containing dir. A non-zero timeout bounds every subsequent git
// invocation.
func Open(ctx context.Context, dir string, timeout time.Duration) (*Repo, error) {
	r := &Repo{
		timeout: timeout,
		logger:  log.Logger.With().Str("component", "git").Logger(),
	}

	if err := r.checkGit(ctx); err != nil {
		return nil, err
	}

	root, err := r.output(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("not inside a git working tree: %w", err)
	}
	r.root = root
	r.logger.Debug().Str("root", root).Msg("Opened git repository")
	return r, nil
}

// Root returns the absolute path of the working tree toplevel.
func (r *Repo) Root() string {
	return r.root
}

// checkGit verifies git exists and is recent enough to trust.
func (r *Repo) checkGit(ctx context.Context) error {
	out, err := r.output(ctx, "", "--version")
	if err != nil {
		return errors.New("git is not available on the system")
	}

	// Output looks like "git version 2.39.2" with possible platform suffixes.
	fields := strings.Fields(out)
	if len(fields) < 3 {
		r.logger.Debug().Str("output", out).Msg("Unrecognized git version output")
		return nil
	}
	parts := strings.Split(fields[2], ".")
	if len(parts) > 3 {
		// Platform builds report e.g. "2.39.2.windows.1".
		parts = parts[:3]
	}
	v, err := goversion.NewVersion(strings.Join(parts, "."))
	if err != nil {
		r.logger.Debug().Str("output", out).Msg("Could not parse git version")
		return nil
	}
	if v.LessThan(minGitVersion) {
		return fmt.Errorf("git %s is too old, need at least %s", v, minGitVersion)
	}
	return nil
}

// Tags lists all tag names in the repository.
func (r *Repo) Tags(ctx context.Context) ([]string, error) {
	out, err := r.output(ctx, r.root, "tag")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// Clean reports whether the working tree has no unstaged changes.
func (r *Repo) Clean(ctx context.Context) (bool, error) {
	return r.diffQuiet(ctx)
}

// StagedClean reports whether the index has no staged changes.
func (r *Repo) StagedClean(ctx context.Context) (bool, error) {
	return r.diffQuiet(ctx, "--cached")
}

func (r *Repo) diffQuiet(ctx context.Context, extra ...string) (bool, error) {
	args := append([]string{"diff", "--quiet"}, extra...)
	err := r.run(ctx, args...)
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, err
}

// Add stages a path.
func (r *Repo) Add(ctx context.Context, path string) error {
	return r.run(ctx, "add", path)
}

// Commit commits staged changes with the given message.
func (r *Repo) Commit(ctx context.Context, message string) error {
	r.logger.Info().Str("message", message).Msg("Committing")
	return r.run(ctx, "commit", "-m", message)
}

// Tag creates a lightweight tag. Fails if the tag already exists.
func (r *Repo) Tag(ctx context.Context, name string) error {
	r.logger.Info().Str("tag", name).Msg("Tagging")
	if err := r.run(ctx, "tag", name); err != nil {
		return fmt.Errorf("create tag %s failed: %w", name, err)
	}
	return nil
}

// Push pushes the current branch to its upstream.
func (r *Repo) Push(ctx context.Context) error {
	return r.run(ctx, "push")
}

// PushTags pushes all tags.
func (r *Repo) PushTags(ctx context.Context) error {
	return r.run(ctx, "push", "--tags")
}

// PushRef pushes HEAD to the named branch on the named remote.
func (r *Repo) PushRef(ctx context.Context, remote, branch string) error {
	r.logger.Info().Str("remote", remote).Str("branch", branch).Msg("Pushing ref")
	return r.run(ctx, "push", remote, "HEAD:"+branch)
}

// run invokes git with output passed through to the operator.
func (r *Repo) run(ctx context.Context, args ...string) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.root
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	r.logger.Debug().Strs("args", args).Msg("Running git")
	return cmd.Run()
}

// output invokes git and returns its trimmed stdout, with stderr folded
// into the error.
func (r *Repo) output(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("git %v failed: %w: %s", args, err, msg)
		}
		return "", fmt.Errorf("git %v failed: %w", args, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (r *Repo) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}
