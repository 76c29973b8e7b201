package snapshot_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/temirov/repo-insights/internal/snapshot"
)

type fakeGit struct {
	meta snapshot.GitMetadata
	err  error
}

func (g fakeGit) Collect(ctx context.Context, dir string) (snapshot.GitMetadata, error) {
	return g.meta, g.err
}

func writeFiles(t *testing.T, mem snapshot.Mem, files map[string]string) {
	t.Helper()
	for path, content := range files {
		if err := afero.WriteFile(mem.Fs, path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

func TestBuild_CollectsTreeReadmeAndKeyFiles(t *testing.T) {
	mem := snapshot.NewMem()
	writeFiles(t, mem, map[string]string{
		"/repo/README.md":       "# Demo\nA demo repo.",
		"/repo/go.mod":          "module example.com/demo\n\ngo 1.24\n\nrequire (\n\tgithub.com/spf13/cobra v1.10.1\n\tgo.uber.org/zap v1.27.0\n\tgo.uber.org/multierr v1.11.0 // indirect\n)\n",
		"/repo/main.go":         "package main\n",
		"/repo/internal/app.go": "package app\n",
		"/repo/.git/config":     "[core]",
		"/repo/node_modules/x":  "junk",
	})

	builder := snapshot.NewBuilderWithDeps(mem, fakeGit{
		meta: snapshot.GitMetadata{Owner: "acme", Name: "demo", Branch: "main"},
	}, snapshot.DefaultOptions())

	snap, err := builder.Build(context.Background(), "/repo")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if snap.Owner != "acme" || snap.Name != "demo" || snap.DefaultBranch != "main" {
		t.Fatalf("identity = %s @ %s", snap.FullName(), snap.DefaultBranch)
	}
	if snap.PrimaryLanguage != "Go" {
		t.Fatalf("primary language = %q", snap.PrimaryLanguage)
	}
	if !strings.HasPrefix(snap.Readme, "# Demo") {
		t.Fatalf("readme = %q", snap.Readme)
	}

	for _, entry := range snap.FileTree {
		if strings.HasPrefix(entry, ".git/") || strings.Contains(entry, "node_modules") {
			t.Fatalf("skipped directory leaked into tree: %q", entry)
		}
	}

	var sawGoMod bool
	for _, keyFile := range snap.KeyFiles {
		if keyFile.Path == "go.mod" {
			sawGoMod = true
			if !strings.Contains(keyFile.Content, "example.com/demo") {
				t.Fatalf("go.mod content = %q", keyFile.Content)
			}
		}
	}
	if !sawGoMod {
		t.Fatalf("go.mod not captured as key file: %v", snap.KeyFiles)
	}

	wantDeps := []string{"github.com/spf13/cobra", "go.uber.org/zap"}
	if len(snap.Dependencies) != len(wantDeps) {
		t.Fatalf("dependencies = %v", snap.Dependencies)
	}
	for index, dep := range wantDeps {
		if snap.Dependencies[index] != dep {
			t.Fatalf("dependencies = %v, want %v", snap.Dependencies, wantDeps)
		}
	}
}

func TestBuild_CeilingsRespected(t *testing.T) {
	mem := snapshot.NewMem()
	files := map[string]string{
		"/repo/README.md": strings.Repeat("x", 100),
		"/repo/go.mod":    "module example.com/demo\n",
		"/repo/Makefile":  strings.Repeat("y", 100),
	}
	for _, name := range []string{"a.go", "b.go", "c.go", "d.go"} {
		files["/repo/"+name] = "package main\n"
	}
	writeFiles(t, mem, files)

	options := snapshot.Options{
		MaxKeyFiles:    1,
		MaxFileBytes:   10,
		MaxTreeEntries: 3,
	}
	builder := snapshot.NewBuilderWithDeps(mem, fakeGit{err: errors.New("not a repo")}, options)

	snap, err := builder.Build(context.Background(), "/repo")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(snap.FileTree) > 3 {
		t.Fatalf("tree entries = %d", len(snap.FileTree))
	}
	if len(snap.KeyFiles) > 1 {
		t.Fatalf("key files = %d", len(snap.KeyFiles))
	}
	for _, keyFile := range snap.KeyFiles {
		if len(keyFile.Content) > 10 {
			t.Fatalf("key file %s content length = %d", keyFile.Path, len(keyFile.Content))
		}
	}
	if len(snap.Readme) > 10 {
		t.Fatalf("readme length = %d", len(snap.Readme))
	}
	// No git metadata; the directory base name identifies the repository.
	if snap.Name != "repo" || snap.Owner != "" {
		t.Fatalf("identity = %q/%q", snap.Owner, snap.Name)
	}
}

func TestBuild_KeyFileGlobs(t *testing.T) {
	mem := snapshot.NewMem()
	writeFiles(t, mem, map[string]string{
		"/repo/cmd/server/main.go":       "package main\n",
		"/repo/.github/workflows/ci.yml": "on: push\n",
		"/repo/internal/helper.go":       "package internal\n",
		"/repo/docs/guide.md":            "guide\n",
	})

	builder := snapshot.NewBuilderWithDeps(mem, fakeGit{err: errors.New("not a repo")}, snapshot.DefaultOptions())
	snap, err := builder.Build(context.Background(), "/repo")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	captured := map[string]bool{}
	for _, keyFile := range snap.KeyFiles {
		captured[keyFile.Path] = true
	}
	if !captured["cmd/server/main.go"] {
		t.Fatalf("cmd/**/main.go glob missed: %v", captured)
	}
	if !captured[".github/workflows/ci.yml"] {
		t.Fatalf("workflow glob missed: %v", captured)
	}
	if captured["internal/helper.go"] || captured["docs/guide.md"] {
		t.Fatalf("non-key files captured: %v", captured)
	}
}

func TestSnapshot_Validate(t *testing.T) {
	if err := (snapshot.Snapshot{}).Validate(); !errors.Is(err, snapshot.ErrEmptySnapshot) {
		t.Fatalf("err = %v", err)
	}
	if err := (snapshot.Snapshot{Name: "demo"}).Validate(); err != nil {
		t.Fatalf("err = %v", err)
	}
}

func TestSnapshot_Describe(t *testing.T) {
	snap := snapshot.Snapshot{
		Owner:           "acme",
		Name:            "demo",
		PrimaryLanguage: "Go",
		Dependencies:    []string{"github.com/spf13/cobra"},
		FileTree:        []string{"main.go", "go.mod"},
		Readme:          "A demo.",
		KeyFiles:        []snapshot.KeyFile{{Path: "go.mod", Content: "module demo"}},
	}

	described := snap.Describe()
	for _, fragment := range []string{"acme/demo", "Primary language: Go", "github.com/spf13/cobra", "main.go", "A demo.", "--- go.mod ---"} {
		if !strings.Contains(described, fragment) {
			t.Fatalf("describe output missing %q:\n%s", fragment, described)
		}
	}
}
