package snapshot

import (
	"context"
	"encoding/json"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
)

// Options bound what a built snapshot may contain.
type Options struct {
	// MaxKeyFiles caps how many key files are included.
	MaxKeyFiles int

	// MaxFileBytes caps each included file's content.
	MaxFileBytes int

	// MaxTreeEntries caps the file tree listing.
	MaxTreeEntries int

	// KeyFileGlobs select which files are included, matched with
	// doublestar patterns against repository-relative paths.
	KeyFileGlobs []string

	// ReadConcurrency bounds parallel file reads.
	ReadConcurrency int
}

// DefaultOptions returns the builder defaults.
func DefaultOptions() Options {
	return Options{
		MaxKeyFiles:     20,
		MaxFileBytes:    64 * 1024,
		MaxTreeEntries:  2000,
		ReadConcurrency: 4,
		KeyFileGlobs: []string{
			"go.mod",
			"package.json",
			"pyproject.toml",
			"requirements.txt",
			"Cargo.toml",
			"Makefile",
			"Dockerfile",
			"docker-compose.{yml,yaml}",
			"main.go",
			"cmd/**/main.go",
			"src/main.*",
			"src/index.*",
			".github/workflows/*.{yml,yaml}",
		},
	}
}

var skippedDirectories = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"target":       true,
	"__pycache__":  true,
}

// Builder assembles a Snapshot from a local repository checkout.
type Builder struct {
	fs      FS
	git     GitMetadataCollector
	options Options
}

// NewBuilder constructs a builder over the OS filesystem and git.
func NewBuilder(options Options) Builder {
	return NewBuilderWithDeps(NewOS(), NewGitCollector(), options)
}

// NewBuilderWithDeps injects the filesystem and git collector, used
// mainly for tests.
func NewBuilderWithDeps(filesystem FS, git GitMetadataCollector, options Options) Builder {
	if options.MaxKeyFiles <= 0 {
		options.MaxKeyFiles = DefaultOptions().MaxKeyFiles
	}
	if options.MaxFileBytes <= 0 {
		options.MaxFileBytes = DefaultOptions().MaxFileBytes
	}
	if options.MaxTreeEntries <= 0 {
		options.MaxTreeEntries = DefaultOptions().MaxTreeEntries
	}
	if options.ReadConcurrency <= 0 {
		options.ReadConcurrency = DefaultOptions().ReadConcurrency
	}
	if len(options.KeyFileGlobs) == 0 {
		options.KeyFileGlobs = DefaultOptions().KeyFileGlobs
	}
	return Builder{fs: filesystem, git: git, options: options}
}

// Build walks the repository rooted at root and assembles a snapshot:
// file tree, README, key files selected by glob (read concurrently,
// each capped at MaxFileBytes), a dependency summary, and git metadata
// when the directory is a repository.
func (b Builder) Build(ctx context.Context, root string) (Snapshot, error) {
	root = filepath.Clean(root)

	var tree []string
	var keyFilePaths []string
	var readmePath string

	walkErr := b.fs.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := entry.Name()
		if entry.IsDir() {
			if path != root && (skippedDirectories[name] || strings.HasPrefix(name, ".") && name != ".github") {
				return fs.SkipDir
			}
			return nil
		}
		relative, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		relative = filepath.ToSlash(relative)
		if len(tree) < b.options.MaxTreeEntries {
			tree = append(tree, relative)
		}
		if readmePath == "" && isReadme(relative) {
			readmePath = path
		}
		if len(keyFilePaths) < b.options.MaxKeyFiles && b.matchesKeyFile(relative) {
			keyFilePaths = append(keyFilePaths, relative)
		}
		return nil
	})
	if walkErr != nil {
		return Snapshot{}, walkErr
	}
	sort.Strings(tree)

	snap := Snapshot{
		Name:            filepath.Base(root),
		FileTree:        tree,
		PrimaryLanguage: guessPrimaryLanguage(tree),
	}

	if readmePath != "" {
		if content, err := b.fs.ReadFile(readmePath); err == nil {
			snap.Readme = string(clip(content, b.options.MaxFileBytes))
		}
	}

	keyFiles, readErr := b.readKeyFiles(ctx, root, keyFilePaths)
	if readErr != nil {
		return Snapshot{}, readErr
	}
	snap.KeyFiles = keyFiles
	snap.Dependencies = summarizeDependencies(keyFiles)

	if meta, err := b.git.Collect(ctx, root); err == nil {
		if meta.Owner != "" {
			snap.Owner = meta.Owner
		}
		if meta.Name != "" {
			snap.Name = meta.Name
		}
		snap.DefaultBranch = meta.Branch
	}

	if err := snap.Validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (b Builder) matchesKeyFile(relative string) bool {
	for _, pattern := range b.options.KeyFileGlobs {
		if ok, err := doublestar.Match(pattern, relative); err == nil && ok {
			return true
		}
	}
	return false
}

func (b Builder) readKeyFiles(ctx context.Context, root string, paths []string) ([]KeyFile, error) {
	results := make([]KeyFile, len(paths))
	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(b.options.ReadConcurrency)

	for index, relative := range paths {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			content, readErr := b.fs.ReadFile(filepath.Join(root, filepath.FromSlash(relative)))
			if readErr != nil {
				return readErr
			}
			mu.Lock()
			results[index] = KeyFile{Path: relative, Content: string(clip(content, b.options.MaxFileBytes))}
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func clip(content []byte, limit int) []byte {
	if len(content) <= limit {
		return content
	}
	return content[:limit]
}

func isReadme(relative string) bool {
	lower := strings.ToLower(relative)
	return lower == "readme.md" || lower == "readme" || lower == "readme.rst" || lower == "readme.txt"
}

var languageByExtension = map[string]string{
	".go":    "Go",
	".py":    "Python",
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".js":    "JavaScript",
	".jsx":   "JavaScript",
	".rs":    "Rust",
	".java":  "Java",
	".rb":    "Ruby",
	".cs":    "C#",
	".cpp":   "C++",
	".c":     "C",
	".swift": "Swift",
	".kt":    "Kotlin",
}

func guessPrimaryLanguage(tree []string) string {
	counts := map[string]int{}
	for _, path := range tree {
		if language, ok := languageByExtension[filepath.Ext(path)]; ok {
			counts[language]++
		}
	}
	best := ""
	bestCount := 0
	for language, count := range counts {
		if count > bestCount || (count == bestCount && language < best) {
			best = language
			bestCount = count
		}
	}
	return best
}

// summarizeDependencies extracts a flat dependency list from manifest
// files already captured as key files.
func summarizeDependencies(keyFiles []KeyFile) []string {
	var deps []string
	for _, keyFile := range keyFiles {
		switch filepath.Base(keyFile.Path) {
		case "go.mod":
			deps = append(deps, goModRequirements(keyFile.Content)...)
		case "package.json":
			deps = append(deps, packageJSONDependencies(keyFile.Content)...)
		case "requirements.txt":
			deps = append(deps, requirementsEntries(keyFile.Content)...)
		}
	}
	sort.Strings(deps)
	return deps
}

func goModRequirements(content string) []string {
	var deps []string
	inBlock := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "require ("):
			inBlock = true
		case inBlock && trimmed == ")":
			inBlock = false
		case inBlock && trimmed != "" && !strings.HasSuffix(trimmed, "// indirect"):
			fields := strings.Fields(trimmed)
			if len(fields) >= 1 {
				deps = append(deps, fields[0])
			}
		case strings.HasPrefix(trimmed, "require ") && !strings.Contains(trimmed, "("):
			fields := strings.Fields(strings.TrimPrefix(trimmed, "require "))
			if len(fields) >= 1 {
				deps = append(deps, fields[0])
			}
		}
	}
	return deps
}

func packageJSONDependencies(content string) []string {
	var manifest struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal([]byte(content), &manifest); err != nil {
		return nil
	}
	var deps []string
	for name := range manifest.Dependencies {
		deps = append(deps, name)
	}
	for name := range manifest.DevDependencies {
		deps = append(deps, name+" (dev)")
	}
	return deps
}

func requirementsEntries(content string) []string {
	var deps []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "-") {
			continue
		}
		name := trimmed
		for _, sep := range []string{"==", ">=", "<=", "~=", ">"} {
			if idx := strings.Index(name, sep); idx > 0 {
				name = name[:idx]
				break
			}
		}
		deps = append(deps, strings.TrimSpace(name))
	}
	return deps
}
