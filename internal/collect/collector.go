// Package collect walks a resolved project and produces the validated,
// ordered file set that gets submitted for verification.
package collect

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quasarlabs/starkverify/internal/project"
	"github.com/quasarlabs/starkverify/internal/scarb"
)

// MaxFileSize is the per-file size limit enforced during collection.
const MaxFileSize = 20 << 20 // 20 MiB

// Kind classifies a collected file.
type Kind string

const (
	KindSource     Kind = "source"
	KindTestSource Kind = "test-source"
	KindManifest   Kind = "manifest"
	KindLock       Kind = "lock"
	KindDoc        Kind = "doc"
)

// FileEntry is one file of the submission set. RelPath is
// slash-separated and relative to the workspace root (the package root
// for standalone packages), matching the paths transmitted on the wire.
type FileEntry struct {
	RelPath string
	Content []byte
	Size    int64
	Kind    Kind
}

// Options controls which optional file classes are collected.
type Options struct {
	IncludeTests bool
	IncludeLock  bool
}

// allowedExtensions is the extension allow-list for collected files.
var allowedExtensions = map[string]bool{
	".cairo": true,
	".toml":  true,
	".lock":  true,
	".md":    true,
	".txt":   true,
	".json":  true,
}

// allowedBareNames are extensionless filenames accepted as documentation.
var allowedBareNames = map[string]bool{
	"LICENSE":      true,
	"README":       true,
	"CHANGELOG":    true,
	"NOTICE":       true,
	"AUTHORS":      true,
	"CONTRIBUTORS": true,
}

// Collector gathers and validates the file set for one package.
type Collector struct {
	logger *slog.Logger
}

// New creates a Collector. A nil logger disables warnings.
func New(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Collector{logger: logger}
}

// Collect enumerates the submission file set for the resolved package:
// everything under its source directory, the package and workspace
// manifests, and optionally the lock file. The result is sorted by
// relative path so repeated runs over an unchanged tree are
// byte-identical.
func (c *Collector) Collect(d *project.Descriptor, opts Options) ([]FileEntry, error) {
	base := d.WorkspaceRoot

	var entries []FileEntry
	add := func(path string, kind Kind) error {
		entry, err := readEntry(base, path, kind)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
		return nil
	}

	srcDir := d.SourceDir()
	if _, err := os.Stat(srcDir); err != nil {
		return nil, fmt.Errorf("package %s has no source directory: %w", d.PackageName, err)
	}

	isMacro := d.Manifest.IsProceduralMacro()

	err := filepath.WalkDir(srcDir, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return &CollectionError{Path: path, Reason: "unreadable path", Err: err}
		}
		if de.IsDir() {
			return nil
		}
		if isMacro && filepath.Ext(path) == ".rs" {
			return nil // gathered by the macro companion pass
		}

		kind := KindSource
		if ext := filepath.Ext(path); ext != ".cairo" {
			kind = KindDoc
		}
		if underTestSegment(srcDir, path) {
			if !opts.IncludeTests {
				return nil
			}
			kind = KindTestSource
		}
		return add(path, kind)
	})
	if err != nil {
		return nil, err
	}

	if err := add(d.Manifest.Path, KindManifest); err != nil {
		return nil, err
	}
	if d.IsWorkspaceMember() {
		if err := add(d.WorkspaceManifest.Path, KindManifest); err != nil {
			return nil, err
		}
	}

	if opts.IncludeLock {
		lockPath := filepath.Join(base, scarb.LockFile)
		if _, err := os.Stat(lockPath); err != nil {
			c.logger.Warn("lock file requested but not found, continuing without it",
				"path", lockPath)
		} else if err := add(lockPath, KindLock); err != nil {
			return nil, err
		}
	}

	if isMacro {
		macroEntries, err := collectMacroCompanion(base, d.Root)
		if err != nil {
			return nil, err
		}
		entries = append(entries, macroEntries...)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RelPath < entries[j].RelPath
	})
	return entries, nil
}

// readEntry loads one file, applying the type and size validation rules.
func readEntry(base, path string, kind Kind) (FileEntry, error) {
	if err := validateFileType(path, kind); err != nil {
		return FileEntry{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return FileEntry{}, &CollectionError{Path: path, Reason: "unreadable path", Err: err}
	}
	if info.Size() > MaxFileSize {
		return FileEntry{}, &OversizedFileError{Path: path, Size: info.Size(), Limit: MaxFileSize}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return FileEntry{}, &CollectionError{Path: path, Reason: "unreadable path", Err: err}
	}

	rel, err := filepath.Rel(base, path)
	if err != nil {
		return FileEntry{}, &CollectionError{Path: path, Reason: "outside project root", Err: err}
	}

	return FileEntry{
		RelPath: filepath.ToSlash(rel),
		Content: content,
		Size:    info.Size(),
		Kind:    kind,
	}, nil
}

func validateFileType(path string, kind Kind) error {
	if kind == KindRustSource {
		return nil // validated against its own allow-list by the caller
	}
	ext := strings.ToLower(filepath.Ext(path))
	if allowedExtensions[ext] {
		return nil
	}
	if ext == "" && allowedBareNames[strings.ToUpper(filepath.Base(path))] {
		return nil
	}
	return &DisallowedFileError{Path: path, Extension: ext}
}

// underTestSegment reports whether path, restricted to the part below
// srcDir, contains a "test" or "tests" path segment.
func underTestSegment(srcDir, path string) bool {
	rel, err := filepath.Rel(srcDir, path)
	if err != nil {
		return false
	}
	for _, segment := range strings.Split(filepath.ToSlash(rel), "/") {
		if segment == "test" || segment == "tests" {
			return true
		}
	}
	return false
}
