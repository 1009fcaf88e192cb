// Package project resolves a directory tree into a verifiable package:
// which workspace member is targeted, which build tool it uses, and the
// toolchain metadata the verification service wants alongside the sources.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quasarlabs/starkverify/internal/scarb"
)

// BuildTool identifies the toolchain a project is built with.
type BuildTool string

const (
	// BuildToolScarb is a plain Scarb package.
	BuildToolScarb BuildTool = "scarb"
	// BuildToolDojo is a Dojo game project built with sozo.
	BuildToolDojo BuildTool = "dojo"
	// BuildToolAuto asks the resolver to detect the tool from the manifest.
	BuildToolAuto BuildTool = "auto"
)

// ParseBuildTool validates a user-supplied build tool name.
func ParseBuildTool(s string) (BuildTool, error) {
	switch BuildTool(strings.ToLower(strings.TrimSpace(s))) {
	case BuildToolScarb:
		return BuildToolScarb, nil
	case BuildToolDojo:
		return BuildToolDojo, nil
	case BuildToolAuto, "":
		return BuildToolAuto, nil
	default:
		return "", fmt.Errorf("unknown project type %q (expected scarb, dojo or auto)", s)
	}
}

// CommandName returns the build command associated with the tool.
func (t BuildTool) CommandName() string {
	if t == BuildToolDojo {
		return "sozo"
	}
	return "scarb"
}

// Descriptor is the fully resolved view of the package being verified.
// It is built once per invocation and not mutated afterwards.
type Descriptor struct {
	// Root is the directory of the resolved package.
	Root string
	// WorkspaceRoot is the directory of the enclosing workspace; equal to
	// Root for single-package projects.
	WorkspaceRoot string

	PackageName    string
	PackageVersion string
	License        string

	CairoVersion string
	ScarbVersion string
	// DojoVersion is set only for dojo projects whose manifests declare a
	// resolvable dojo dependency version.
	DojoVersion *string

	BuildTool BuildTool

	// Manifest is the resolved package's manifest. WorkspaceManifest is
	// the workspace root manifest, nil when the project is not a
	// workspace.
	Manifest          *scarb.Manifest
	WorkspaceManifest *scarb.Manifest
}

// IsWorkspaceMember reports whether the package lives inside a larger
// workspace rather than standing alone.
func (d *Descriptor) IsWorkspaceMember() bool {
	return d.WorkspaceManifest != nil && d.WorkspaceRoot != d.Root
}

// SourceDir returns the package's source directory.
func (d *Descriptor) SourceDir() string {
	return filepath.Join(d.Root, "src")
}

// Resolver turns a project root into a Descriptor.
type Resolver struct {
	// Toolchain probes the locally installed scarb version. Replaceable
	// in tests; defaults to running the scarb binary.
	Toolchain ToolchainProber
}

// NewResolver returns a Resolver using the local scarb installation.
func NewResolver() *Resolver {
	return &Resolver{Toolchain: ExecToolchain{}}
}

// Resolve locates the target package under root and builds its
// Descriptor. Package selection priority is the explicit name, then the
// configured default, then the only member of a single-member project.
func (r *Resolver) Resolve(root, explicitPackage, defaultPackage string, tool BuildTool) (*Descriptor, error) {
	rootManifest, err := scarb.LoadDir(root)
	if err != nil {
		return nil, err
	}

	pkg, workspace, err := selectPackage(rootManifest, explicitPackage, defaultPackage)
	if err != nil {
		return nil, err
	}

	if err := validatePathDependencies(pkg, workspace); err != nil {
		return nil, err
	}

	detected := BuildToolScarb
	if isDojoProject(pkg, workspace) {
		detected = BuildToolDojo
	}
	switch tool {
	case BuildToolAuto, "":
		tool = detected
	case detected:
	case BuildToolDojo:
		// A dojo build of a plain scarb package fails remotely with an
		// opaque compiler error; reject it here instead.
		return nil, &InvalidBuildToolError{Specified: tool, Detected: detected}
	}

	d := &Descriptor{
		Root:          pkg.Dir(),
		WorkspaceRoot: rootManifest.Dir(),
		PackageName:   pkg.Package.Name,
		BuildTool:     tool,
		Manifest:      pkg,
	}
	if workspace != nil {
		d.WorkspaceManifest = workspace
	}

	d.PackageVersion = inheritedValue(pkg.Package.Version, workspace, func(w *scarb.WorkspaceDefaults) string { return w.Version })
	d.License = inheritedValue(pkg.Package.License, workspace, func(w *scarb.WorkspaceDefaults) string { return w.License })
	d.CairoVersion = cairoVersion(pkg, workspace)

	if tool == BuildToolDojo {
		if v, ok := scarb.ExtractDependencyVersion("dojo", pkg, workspace); ok {
			d.DojoVersion = &v
		}
	}

	if r.Toolchain != nil {
		if v, err := r.Toolchain.ScarbVersion(); err == nil {
			d.ScarbVersion = v
		}
	}

	return d, nil
}

// selectPackage picks the target package from the root manifest, loading
// workspace member manifests when needed. The second return is the
// workspace root manifest, nil for plain single-package projects.
func selectPackage(root *scarb.Manifest, explicit, fallback string) (*scarb.Manifest, *scarb.Manifest, error) {
	if !root.IsWorkspace() {
		if !root.HasPackage() {
			return nil, nil, fmt.Errorf("manifest %s declares neither a package nor a workspace", root.Path)
		}
		requested := explicit
		if requested == "" {
			requested = fallback
		}
		if requested != "" && requested != root.Package.Name {
			return nil, nil, &PackageNotFoundError{Requested: requested, Available: []string{root.Package.Name}}
		}
		return root, nil, nil
	}

	members, err := loadMembers(root)
	if err != nil {
		return nil, nil, err
	}

	// A workspace root may itself declare a package; it is selectable
	// like any member.
	if root.HasPackage() {
		members = append(members, root)
	}

	names := make([]string, 0, len(members))
	byName := make(map[string]*scarb.Manifest, len(members))
	for _, m := range members {
		names = append(names, m.Package.Name)
		byName[m.Package.Name] = m
	}
	sort.Strings(names)

	for _, requested := range []string{explicit, fallback} {
		if requested == "" {
			continue
		}
		if m, ok := byName[requested]; ok {
			return m, root, nil
		}
		if requested == explicit {
			return nil, nil, &PackageNotFoundError{Requested: requested, Available: names}
		}
		// A stale configured default falls through to the
		// single-member shortcut instead of failing outright.
	}

	if len(members) == 1 {
		return members[0], root, nil
	}

	return nil, nil, &AmbiguousPackageError{Members: names}
}

// loadMembers loads the manifest of every workspace member. Member
// entries may be literal paths or simple glob patterns like "crates/*".
func loadMembers(root *scarb.Manifest) ([]*scarb.Manifest, error) {
	var members []*scarb.Manifest
	seen := make(map[string]bool)

	for _, entry := range root.Workspace.Members {
		pattern := filepath.Join(root.Dir(), filepath.FromSlash(entry))

		dirs := []string{pattern}
		if strings.ContainsAny(entry, "*?[") {
			matches, err := filepath.Glob(pattern)
			if err != nil {
				return nil, fmt.Errorf("workspace member pattern %q: %w", entry, err)
			}
			dirs = matches
		}

		for _, dir := range dirs {
			manifestPath := filepath.Join(dir, scarb.ManifestFile)
			if seen[manifestPath] {
				continue
			}
			seen[manifestPath] = true

			if _, err := os.Stat(manifestPath); err != nil {
				if strings.ContainsAny(entry, "*?[") {
					continue // glob matched a non-package directory
				}
				return nil, fmt.Errorf("workspace member %q has no %s: %w", entry, scarb.ManifestFile, err)
			}

			m, err := scarb.Load(manifestPath)
			if err != nil {
				return nil, err
			}
			if !m.HasPackage() {
				return nil, fmt.Errorf("workspace member %q manifest declares no package", entry)
			}
			members = append(members, m)
		}
	}

	return members, nil
}

// validatePathDependencies walks the path-dependency graph of the
// package, checking that every referenced directory holds a parseable
// manifest. Visited canonical paths guard against dependency cycles.
func validatePathDependencies(pkg, workspace *scarb.Manifest) error {
	visited := make(map[string]bool)
	if err := walkPathDeps(pkg, visited); err != nil {
		return err
	}
	if workspace != nil && workspace != pkg {
		if err := walkPathDeps(workspace, visited); err != nil {
			return err
		}
	}
	return nil
}

func walkPathDeps(m *scarb.Manifest, visited map[string]bool) error {
	canonical := canonicalPath(m.Dir())
	if visited[canonical] {
		return nil
	}
	visited[canonical] = true

	deps := make(map[string]scarb.Dependency, len(m.Dependencies))
	for name, dep := range m.Dependencies {
		deps[name] = dep
	}
	if m.Workspace != nil {
		for name, dep := range m.Workspace.Dependencies {
			deps[name] = dep
		}
	}

	for name, dep := range deps {
		if dep.Path == "" {
			continue
		}

		depDir := dep.Path
		if !filepath.IsAbs(depDir) {
			depDir = filepath.Join(m.Dir(), filepath.FromSlash(dep.Path))
		}
		if visited[canonicalPath(depDir)] {
			continue
		}

		depManifest, err := scarb.LoadDir(depDir)
		if err != nil {
			return &DependencyError{Name: name, Path: dep.Path, Declared: m.Path, Err: err}
		}
		if !depManifest.HasPackage() {
			return &DependencyError{
				Name: name, Path: dep.Path, Declared: m.Path,
				Err: fmt.Errorf("manifest declares no package"),
			}
		}

		if err := walkPathDeps(depManifest, visited); err != nil {
			return err
		}
	}

	return nil
}

func canonicalPath(dir string) string {
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

// isDojoProject reports whether the package or its workspace root
// declares a dojo dependency.
func isDojoProject(pkg, workspace *scarb.Manifest) bool {
	if pkg.HasDependency("dojo") {
		return true
	}
	if workspace != nil {
		if workspace.HasDependency("dojo") {
			return true
		}
		if workspace.Workspace != nil {
			if _, ok := workspace.Workspace.Dependencies["dojo"]; ok {
				return true
			}
		}
	}
	return false
}

// inheritedValue resolves a package field that may be inherited from
// [workspace.package].
func inheritedValue(field scarb.InheritableString, workspace *scarb.Manifest, pick func(*scarb.WorkspaceDefaults) string) string {
	if !field.Inherited {
		return field.Value
	}
	if workspace == nil || workspace.Workspace == nil || workspace.Workspace.Package == nil {
		return ""
	}
	return pick(workspace.Workspace.Package)
}

// cairoVersion reads the declared cairo-version from the package
// manifest, falling back to the workspace root.
func cairoVersion(pkg, workspace *scarb.Manifest) string {
	if pkg.Package.CairoVersion != "" {
		return scarb.NormalizeVersion(pkg.Package.CairoVersion)
	}
	if workspace != nil && workspace.Package != nil && workspace.Package.CairoVersion != "" {
		return scarb.NormalizeVersion(workspace.Package.CairoVersion)
	}
	return ""
}
