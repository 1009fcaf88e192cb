// Package scarb parses Scarb package and workspace manifests.
package scarb

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/mod/semver"
)

// Well-known project file names.
const (
	ManifestFile = "Scarb.toml"
	LockFile     = "Scarb.lock"
	CargoFile    = "Cargo.toml"
)

// Dependency is a single entry of a [dependencies] table. Scarb accepts a
// bare version string or an inline table with version/tag/git/path keys.
type Dependency struct {
	Version string
	Tag     string
	Git     string
	Path    string
}

// UnmarshalTOML accepts both declaration shapes.
func (d *Dependency) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case string:
		d.Version = val
		return nil
	case map[string]any:
		if s, ok := val["version"].(string); ok {
			d.Version = s
		}
		if s, ok := val["tag"].(string); ok {
			d.Tag = s
		}
		if s, ok := val["git"].(string); ok {
			d.Git = s
		}
		if s, ok := val["path"].(string); ok {
			d.Path = s
		}
		return nil
	default:
		return fmt.Errorf("unsupported dependency declaration type %T", v)
	}
}

// DeclaredVersion returns the version recorded for the dependency,
// preferring an explicit version over a git tag.
func (d Dependency) DeclaredVersion() (string, bool) {
	if d.Version != "" {
		return d.Version, true
	}
	if d.Tag != "" {
		return d.Tag, true
	}
	return "", false
}

// InheritableString is a manifest field that is either a literal string or
// inherited from the workspace via `field.workspace = true`.
type InheritableString struct {
	Value     string
	Inherited bool
}

// UnmarshalTOML accepts a string literal or a {workspace = true} table.
func (s *InheritableString) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case string:
		s.Value = val
		return nil
	case map[string]any:
		if b, ok := val["workspace"].(bool); ok && b {
			s.Inherited = true
			return nil
		}
		return fmt.Errorf("unsupported field table %v", val)
	default:
		return fmt.Errorf("unsupported field type %T", v)
	}
}

// PackageSection is the [package] table of a manifest.
type PackageSection struct {
	Name         string            `toml:"name"`
	Version      InheritableString `toml:"version"`
	Edition      InheritableString `toml:"edition"`
	License      InheritableString `toml:"license"`
	CairoVersion string            `toml:"cairo-version"`
}

// WorkspaceSection is the [workspace] table of a root manifest.
type WorkspaceSection struct {
	Members      []string              `toml:"members"`
	Package      *WorkspaceDefaults    `toml:"package"`
	Dependencies map[string]Dependency `toml:"dependencies"`
}

// WorkspaceDefaults is the [workspace.package] table holding values that
// member packages inherit via `field.workspace = true`.
type WorkspaceDefaults struct {
	Version string `toml:"version"`
	Edition string `toml:"edition"`
	License string `toml:"license"`
}

// PluginSection marks a package as a Cairo compiler plugin. Rust-backed
// procedural macro plugins additionally carry a Cargo.toml next to the
// Scarb manifest.
type PluginSection struct {
	Builtin bool `toml:"builtin"`
}

// Manifest is a parsed Scarb.toml together with its on-disk location and
// raw content (needed for the transmitted copy, which is filtered
// textually so the user's formatting survives).
type Manifest struct {
	Package         *PackageSection       `toml:"package"`
	Workspace       *WorkspaceSection     `toml:"workspace"`
	Dependencies    map[string]Dependency `toml:"dependencies"`
	DevDependencies map[string]Dependency `toml:"dev-dependencies"`
	CairoPlugin     *PluginSection        `toml:"cairo-plugin"`

	Path string `toml:"-"`
	Raw  []byte `toml:"-"`
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	m.Path = abs
	m.Raw = raw
	return &m, nil
}

// LoadDir reads the Scarb.toml inside dir.
func LoadDir(dir string) (*Manifest, error) {
	return Load(filepath.Join(dir, ManifestFile))
}

// Dir returns the directory containing the manifest.
func (m *Manifest) Dir() string {
	return filepath.Dir(m.Path)
}

// HasPackage reports whether the manifest declares a package (a root
// manifest may be workspace-only).
func (m *Manifest) HasPackage() bool {
	return m.Package != nil && m.Package.Name != ""
}

// IsWorkspace reports whether the manifest declares a workspace.
func (m *Manifest) IsWorkspace() bool {
	return m.Workspace != nil && len(m.Workspace.Members) > 0
}

// IsPlugin reports whether the package is a Cairo compiler plugin.
func (m *Manifest) IsPlugin() bool {
	return m.CairoPlugin != nil
}

// IsProceduralMacro reports whether the package is a Rust-backed
// procedural macro plugin (plugin flag plus a companion Cargo manifest).
func (m *Manifest) IsProceduralMacro() bool {
	if !m.IsPlugin() || (m.CairoPlugin != nil && m.CairoPlugin.Builtin) {
		return false
	}
	_, err := os.Stat(filepath.Join(m.Dir(), CargoFile))
	return err == nil
}

// HasDependency reports whether name appears in [dependencies].
func (m *Manifest) HasDependency(name string) bool {
	_, ok := m.Dependencies[name]
	return ok
}

// DependencyVersion looks up name in [dependencies] and returns its
// declared version, accepting all three declaration shapes.
func (m *Manifest) DependencyVersion(name string) (string, bool) {
	dep, ok := m.Dependencies[name]
	if !ok {
		return "", false
	}
	return dep.DeclaredVersion()
}

// workspaceDependencyVersion looks up name in [workspace.dependencies].
func (m *Manifest) workspaceDependencyVersion(name string) (string, bool) {
	if m.Workspace == nil {
		return "", false
	}
	dep, ok := m.Workspace.Dependencies[name]
	if !ok {
		return "", false
	}
	return dep.DeclaredVersion()
}

// ExtractDependencyVersion searches for a dependency version in the
// package manifest first, then the workspace root manifest (its plain and
// workspace dependency tables). The workspace manifest may be nil for
// single-package projects. A miss is not an error; the version is
// metadata only.
func ExtractDependencyVersion(name string, pkg, workspace *Manifest) (string, bool) {
	if pkg != nil {
		if v, ok := pkg.DependencyVersion(name); ok {
			return NormalizeVersion(v), true
		}
	}
	if workspace != nil && workspace != pkg {
		if v, ok := workspace.DependencyVersion(name); ok {
			return NormalizeVersion(v), true
		}
		if v, ok := workspace.workspaceDependencyVersion(name); ok {
			return NormalizeVersion(v), true
		}
	}
	return "", false
}

// NormalizeVersion trims range operators and a leading "v" from a version
// declaration so the transmitted metadata is a plain version string.
// Declarations that are not semver (branch names, commit-ish tags) pass
// through unchanged.
func NormalizeVersion(v string) string {
	trimmed := strings.TrimSpace(v)
	trimmed = strings.TrimLeft(trimmed, "^>=<~ ")
	if semver.IsValid("v" + trimmed) {
		return trimmed
	}
	if semver.IsValid(trimmed) {
		return strings.TrimPrefix(trimmed, "v")
	}
	return strings.TrimSpace(v)
}
