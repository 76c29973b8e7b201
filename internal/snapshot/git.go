package snapshot

import (
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"strings"
)

// GitMetadata holds repository identity read from a local git checkout.
type GitMetadata struct {
	Owner  string
	Name   string
	Branch string
}

// GitMetadataCollector resolves metadata for a repository directory.
type GitMetadataCollector interface {
	Collect(ctx context.Context, dir string) (GitMetadata, error)
}

// CommandRunner executes git commands within a working directory.
type CommandRunner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (string, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, dir string, name string, args ...string) (string, error) {
	command := exec.CommandContext(ctx, name, args...)
	command.Dir = dir
	var stdout bytes.Buffer
	command.Stdout = &stdout
	if err := command.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

// GitCollector shells out to git for origin and branch discovery.
type GitCollector struct {
	runner CommandRunner
}

// NewGitCollector constructs a collector that shells out to git.
func NewGitCollector() GitCollector {
	return GitCollector{runner: commandExecutor{}}
}

// NewGitCollectorWithRunner injects a custom command runner, used
// mainly for tests.
func NewGitCollectorWithRunner(runner CommandRunner) GitCollector {
	return GitCollector{runner: runner}
}

// Collect reads the origin remote and current branch. A directory that
// is not a git repository yields an error; callers treat that as
// "no metadata" rather than a failure.
func (c GitCollector) Collect(ctx context.Context, dir string) (GitMetadata, error) {
	if _, err := c.runner.Run(ctx, dir, "git", "rev-parse", "--is-inside-work-tree"); err != nil {
		return GitMetadata{}, err
	}

	var meta GitMetadata
	if remote, err := c.runner.Run(ctx, dir, "git", "remote", "get-url", "origin"); err == nil {
		meta.Owner, meta.Name = parseRemoteURL(remote)
	}
	if branch, err := c.runner.Run(ctx, dir, "git", "rev-parse", "--abbrev-ref", "HEAD"); err == nil && branch != "HEAD" {
		meta.Branch = branch
	}
	return meta, nil
}

var remotePattern = regexp.MustCompile(`[:/]([^/:]+)/([^/]+?)(\.git)?$`)

func parseRemoteURL(remote string) (owner string, name string) {
	matches := remotePattern.FindStringSubmatch(strings.TrimSpace(remote))
	if len(matches) < 3 {
		return "", ""
	}
	return matches[1], matches[2]
}
