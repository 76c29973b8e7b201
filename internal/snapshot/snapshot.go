// Package snapshot defines the repository snapshot consumed by
// discovery workflows and builders that assemble one from a local
// checkout or a pre-built JSON file. The snapshot is the only surface
// through which workflows see repository content.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// KeyFile is one bounded file content included in the snapshot.
type KeyFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Snapshot is the structured repository view handed to a workflow run.
// Size ceilings (file count, per-file bytes) are enforced by whatever
// builds the snapshot, not by the pipeline engine.
type Snapshot struct {
	Owner           string    `json:"owner"`
	Name            string    `json:"name"`
	DefaultBranch   string    `json:"default_branch,omitempty"`
	PrimaryLanguage string    `json:"primary_language,omitempty"`
	Description     string    `json:"description,omitempty"`
	Topics          []string  `json:"topics,omitempty"`
	FileTree        []string  `json:"file_tree"`
	Readme          string    `json:"readme,omitempty"`
	KeyFiles        []KeyFile `json:"key_files,omitempty"`
	Dependencies    []string  `json:"dependencies,omitempty"`
}

// ErrEmptySnapshot indicates a snapshot without a repository name; a
// run cannot start from it.
var ErrEmptySnapshot = errors.New("snapshot has no repository name")

// Validate checks the snapshot can seed a run.
func (s Snapshot) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptySnapshot
	}
	return nil
}

// FullName returns owner/name, or just name when the owner is unknown.
func (s Snapshot) FullName() string {
	if s.Owner == "" {
		return s.Name
	}
	return s.Owner + "/" + s.Name
}

// LoadFile reads a pre-built snapshot from a JSON file.
func LoadFile(path string) (Snapshot, error) {
	data, readErr := os.ReadFile(filepath.Clean(path))
	if readErr != nil {
		return Snapshot{}, readErr
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if err := snap.Validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

const (
	describeTreeLimit   = 200
	describeReadmeLimit = 4000
	describeFileLimit   = 3000
)

// Describe renders the snapshot as a compact text block for prompts.
// Long sections are truncated so a single snapshot never dominates a
// model's context window.
func (s Snapshot) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", s.FullName())
	if s.PrimaryLanguage != "" {
		fmt.Fprintf(&b, "Primary language: %s\n", s.PrimaryLanguage)
	}
	if s.DefaultBranch != "" {
		fmt.Fprintf(&b, "Default branch: %s\n", s.DefaultBranch)
	}
	if s.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", s.Description)
	}
	if len(s.Topics) > 0 {
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(s.Topics, ", "))
	}
	if len(s.Dependencies) > 0 {
		fmt.Fprintf(&b, "\nDependencies:\n%s\n", strings.Join(s.Dependencies, "\n"))
	}
	if len(s.FileTree) > 0 {
		tree := s.FileTree
		truncated := false
		if len(tree) > describeTreeLimit {
			tree = tree[:describeTreeLimit]
			truncated = true
		}
		fmt.Fprintf(&b, "\nFile tree:\n%s\n", strings.Join(tree, "\n"))
		if truncated {
			fmt.Fprintf(&b, "... (%d more entries)\n", len(s.FileTree)-describeTreeLimit)
		}
	}
	if s.Readme != "" {
		fmt.Fprintf(&b, "\nREADME:\n%s\n", truncateText(s.Readme, describeReadmeLimit))
	}
	for _, keyFile := range s.KeyFiles {
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", keyFile.Path, truncateText(keyFile.Content, describeFileLimit))
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n... (truncated)"
}
