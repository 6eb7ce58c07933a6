package gitrepo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

// initRepo creates a git repository with one commit in a temp dir.
func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	runGit := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v\n%s", args, err, out)
		}
	}

	runGit("init")
	runGit("config", "user.email", "test@example.com")
	runGit("config", "user.name", "Test User")

	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("hello\n"), 0644); err != nil {
		t.Fatal(err)
	}
	runGit("add", "README")
	runGit("commit", "-m", "initial")
	return dir
}

func TestOpen(t *testing.T) {
	dir := initRepo(t)

	repo, err := Open(context.Background(), dir, time.Minute)
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}

	// macOS tempdirs resolve through symlinks, compare resolved paths.
	wantRoot, _ := filepath.EvalSymlinks(dir)
	gotRoot, _ := filepath.EvalSymlinks(repo.Root())
	if gotRoot != wantRoot {
		t.Errorf("Root() = %q, want %q", gotRoot, wantRoot)
	}
}

func TestOpenOutsideRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	if _, err := Open(context.Background(), dir, 0); err == nil {
		t.Error("expected error opening non-repository directory")
	}
}

func TestTags(t *testing.T) {
	dir := initRepo(t)
	ctx := context.Background()

	repo, err := Open(ctx, dir, 0)
	if err != nil {
		t.Fatal(err)
	}

	tags, err := repo.Tags(ctx)
	if err != nil {
		t.Fatalf("Tags() unexpected error: %v", err)
	}
	if len(tags) != 0 {
		t.Fatalf("expected no tags, got %v", tags)
	}

	if err := repo.Tag(ctx, "v0.1.0"); err != nil {
		t.Fatalf("Tag() unexpected error: %v", err)
	}
	if err := repo.Tag(ctx, "v0.2.0"); err != nil {
		t.Fatalf("Tag() unexpected error: %v", err)
	}

	tags, err = repo.Tags(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 2 {
		t.Errorf("expected 2 tags, got %v", tags)
	}

	// Tagging the same name again must fail, not be skipped.
	if err := repo.Tag(ctx, "v0.1.0"); err == nil {
		t.Error("expected error creating duplicate tag")
	}
}

func TestCleanAndCommit(t *testing.T) {
	dir := initRepo(t)
	ctx := context.Background()

	repo, err := Open(ctx, dir, 0)
	if err != nil {
		t.Fatal(err)
	}

	clean, err := repo.Clean(ctx)
	if err != nil {
		t.Fatalf("Clean() unexpected error: %v", err)
	}
	if !clean {
		t.Error("expected fresh repository to be clean")
	}

	path := filepath.Join(repo.Root(), "README")
	if err := os.WriteFile(path, []byte("changed\n"), 0644); err != nil {
		t.Fatal(err)
	}

	clean, err = repo.Clean(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if clean {
		t.Error("expected modified tree to be dirty")
	}

	stagedClean, err := repo.StagedClean(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !stagedClean {
		t.Error("expected empty index to be staged-clean")
	}

	if err := repo.Add(ctx, path); err != nil {
		t.Fatalf("Add() unexpected error: %v", err)
	}

	stagedClean, err = repo.StagedClean(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stagedClean {
		t.Error("expected staged change to be reported")
	}

	if err := repo.Commit(ctx, "Version 1.0.0"); err != nil {
		t.Fatalf("Commit() unexpected error: %v", err)
	}

	clean, err = repo.Clean(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !clean {
		t.Error("expected tree to be clean after commit")
	}
}
