package snapshot_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/temirov/repo-insights/internal/snapshot"
)

type scriptedRunner struct {
	outputs map[string]string
	errs    map[string]error
}

func (r scriptedRunner) Run(ctx context.Context, dir string, name string, args ...string) (string, error) {
	key := name + " " + strings.Join(args, " ")
	if err, found := r.errs[key]; found {
		return "", err
	}
	return r.outputs[key], nil
}

func TestGitCollector_Collect(t *testing.T) {
	runner := scriptedRunner{outputs: map[string]string{
		"git rev-parse --is-inside-work-tree": "true",
		"git remote get-url origin":           "git@github.com:acme/demo.git",
		"git rev-parse --abbrev-ref HEAD":     "main",
	}}

	meta, err := snapshot.NewGitCollectorWithRunner(runner).Collect(context.Background(), "/repo")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if meta.Owner != "acme" || meta.Name != "demo" || meta.Branch != "main" {
		t.Fatalf("metadata = %+v", meta)
	}
}

func TestGitCollector_HTTPSRemote(t *testing.T) {
	runner := scriptedRunner{outputs: map[string]string{
		"git rev-parse --is-inside-work-tree": "true",
		"git remote get-url origin":           "https://github.com/acme/demo",
		"git rev-parse --abbrev-ref HEAD":     "trunk",
	}}

	meta, err := snapshot.NewGitCollectorWithRunner(runner).Collect(context.Background(), "/repo")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if meta.Owner != "acme" || meta.Name != "demo" || meta.Branch != "trunk" {
		t.Fatalf("metadata = %+v", meta)
	}
}

func TestGitCollector_NotARepository(t *testing.T) {
	runner := scriptedRunner{errs: map[string]error{
		"git rev-parse --is-inside-work-tree": errors.New("exit 128"),
	}}

	if _, err := snapshot.NewGitCollectorWithRunner(runner).Collect(context.Background(), "/tmp"); err == nil {
		t.Fatalf("expected error outside a work tree")
	}
}

func TestGitCollector_DetachedHeadSkipsBranch(t *testing.T) {
	runner := scriptedRunner{outputs: map[string]string{
		"git rev-parse --is-inside-work-tree": "true",
		"git remote get-url origin":           "git@github.com:acme/demo.git",
		"git rev-parse --abbrev-ref HEAD":     "HEAD",
	}}

	meta, err := snapshot.NewGitCollectorWithRunner(runner).Collect(context.Background(), "/repo")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if meta.Branch != "" {
		t.Fatalf("branch = %q, want empty for detached HEAD", meta.Branch)
	}
}
