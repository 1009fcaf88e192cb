package collect

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/quasarlabs/starkverify/internal/scarb"
)

// KindRustSource marks companion sources of a Rust-backed procedural
// macro plugin.
const KindRustSource Kind = "rust-source"

// collectMacroCompanion gathers the Cargo manifest and Rust sources of a
// procedural macro package. The remote compiler needs them to build the
// plugin before compiling the Cairo sources that use it.
func collectMacroCompanion(base, pkgRoot string) ([]FileEntry, error) {
	var entries []FileEntry

	cargo, err := readEntry(base, filepath.Join(pkgRoot, scarb.CargoFile), KindManifest)
	if err != nil {
		return nil, err
	}
	entries = append(entries, cargo)

	lockPath := filepath.Join(pkgRoot, "Cargo.lock")
	if lock, err := readEntry(base, lockPath, KindLock); err == nil {
		entries = append(entries, lock)
	}

	err = filepath.WalkDir(pkgRoot, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return &CollectionError{Path: path, Reason: "unreadable path", Err: err}
		}
		if de.IsDir() {
			// Build output is never part of the submission.
			if de.Name() == "target" || strings.HasPrefix(de.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".rs" {
			return nil
		}

		entry, err := readEntry(base, path, KindRustSource)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}
