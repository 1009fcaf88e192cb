// Package verify contains the verification core: payload assembly,
// single-job polling and multi-contract batch orchestration.
package verify

import (
	"encoding/base64"
	"path/filepath"

	"github.com/quasarlabs/starkverify/internal/collect"
	"github.com/quasarlabs/starkverify/internal/project"
	"github.com/quasarlabs/starkverify/internal/scarb"
	"github.com/quasarlabs/starkverify/pkg/client"
)

// DefaultLicense is transmitted when neither the flag nor the manifest
// provides an SPDX identifier.
const DefaultLicense = "NONE"

// BuildPayload assembles the submission request from the resolved
// project and its collected file set. Manifest copies are filtered to
// drop dev-only dependencies; everything else is transmitted verbatim.
// The request is never mutated after construction.
func BuildPayload(d *project.Descriptor, entries []collect.FileEntry, contractFile, license string) *client.VerificationRequest {
	files := make(map[string]string, len(entries))
	for _, e := range entries {
		content := e.Content
		if e.Kind == collect.KindManifest && filepath.Base(e.RelPath) == scarb.ManifestFile {
			content = []byte(scarb.StripDevDependencies(string(content)))
		}
		files[e.RelPath] = base64.StdEncoding.EncodeToString(content)
	}

	if license == "" {
		license = d.License
	}
	if license == "" {
		license = DefaultLicense
	}

	projectDir, err := filepath.Rel(d.WorkspaceRoot, d.Root)
	if err != nil {
		projectDir = "."
	}

	return &client.VerificationRequest{
		Name:           d.PackageName,
		Version:        d.PackageVersion,
		ContractFile:   contractFile,
		ProjectDirPath: filepath.ToSlash(projectDir),
		CairoVersion:   d.CairoVersion,
		ScarbVersion:   d.ScarbVersion,
		License:        license,
		BuildTool:      string(d.BuildTool),
		DojoVersion:    d.DojoVersion,
		Files:          files,
	}
}
