package project

import (
	"fmt"
	"strings"
)

// PackageNotFoundError is returned when a requested package does not exist
// in the project or workspace.
type PackageNotFoundError struct {
	Requested string
	Available []string
}

func (e *PackageNotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "package %q not found in workspace", e.Requested)

	if len(e.Available) == 0 {
		b.WriteString("; no packages are available (check that Scarb.toml exists and is valid)")
		return b.String()
	}

	fmt.Fprintf(&b, "; available packages: %s", strings.Join(e.Available, ", "))
	if suggestion := closestMatch(e.Requested, e.Available); suggestion != "" {
		fmt.Fprintf(&b, " (did you mean %q?)", suggestion)
	}
	return b.String()
}

// AmbiguousPackageError is returned when a workspace has several members
// and neither an explicit nor a default package selects one.
type AmbiguousPackageError struct {
	Members []string
}

func (e *AmbiguousPackageError) Error() string {
	return fmt.Sprintf(
		"workspace has %d members and no package was selected; use --package or set workspace.default-package; members: %s",
		len(e.Members), strings.Join(e.Members, ", "))
}

// InvalidBuildToolError is returned when the requested build tool does not
// match what the project declares.
type InvalidBuildToolError struct {
	Specified BuildTool
	Detected  BuildTool
}

func (e *InvalidBuildToolError) Error() string {
	return fmt.Sprintf(
		"project type %q requested but project looks like %q; add a dojo dependency to Scarb.toml or use --project-type=%s",
		e.Specified, e.Detected, e.Detected)
}

// DependencyError is returned when a path dependency cannot be resolved to
// a well-formed package.
type DependencyError struct {
	Name     string
	Path     string
	Declared string // manifest that declares the dependency
	Err      error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("resolving path dependency %q (%s) declared in %s: %v", e.Name, e.Path, e.Declared, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

// closestMatch returns the candidate with the smallest edit distance from
// target, or "" when nothing is close enough to be a plausible typo.
func closestMatch(target string, candidates []string) string {
	best := ""
	bestDistance := len(target)/2 + 2

	for _, candidate := range candidates {
		if d := editDistance(target, candidate); d < bestDistance {
			bestDistance = d
			best = candidate
		}
	}
	return best
}

func editDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
