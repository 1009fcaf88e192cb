package collect

import (
	"strings"
)

// contractAttribute marks a Starknet contract module declaration.
const contractAttribute = "#[starknet::contract]"

// attributeScanWindow bounds how many meaningful lines after the
// contract attribute may precede the module declaration.
const attributeScanWindow = 5

// DetectContractFile picks the entry file for the requested contract
// from the collected set. It first scans every source file for a
// contract attribute followed by a module declaration matching the name,
// then falls back through conventional locations, and fails only when
// the set contains no source files at all.
func DetectContractFile(entries []FileEntry, packageName, contractName string) (string, error) {
	sources := sourceEntries(entries)
	if len(sources) == 0 {
		return "", &NoSourcesError{Package: packageName}
	}

	if contractName != "" {
		for _, e := range sources {
			if declaresContract(e.Content, contractName) {
				return e.RelPath, nil
			}
		}
		if path, ok := conventionalPath(sources, contractName); ok {
			return path, nil
		}
	}

	for _, stem := range []string{"contract", "lib", "main"} {
		if path, ok := fileWithStem(sources, stem); ok {
			return path, nil
		}
	}

	return sources[0].RelPath, nil
}

func sourceEntries(entries []FileEntry) []FileEntry {
	var sources []FileEntry
	for _, e := range entries {
		if (e.Kind == KindSource || e.Kind == KindTestSource) && strings.HasSuffix(e.RelPath, ".cairo") {
			sources = append(sources, e)
		}
	}
	return sources
}

// declaresContract reports whether content declares a contract module
// named name: a contract attribute with a matching mod declaration among
// the next few meaningful lines. The comparison is case-insensitive and
// tolerates visibility modifiers and further attributes in between.
func declaresContract(content []byte, name string) bool {
	lines := strings.Split(string(content), "\n")

	for i, line := range lines {
		if !strings.Contains(line, contractAttribute) {
			continue
		}

		scanned := 0
		for j := i + 1; j < len(lines) && scanned < attributeScanWindow; j++ {
			trimmed := strings.TrimSpace(lines[j])
			if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#[") {
				continue
			}
			scanned++

			trimmed = strings.TrimPrefix(trimmed, "pub ")
			if modName, ok := strings.CutPrefix(trimmed, "mod "); ok {
				modName = strings.TrimSpace(modName)
				if cut := strings.IndexAny(modName, " \t{;"); cut >= 0 {
					modName = modName[:cut]
				}
				if strings.EqualFold(modName, name) {
					return true
				}
			}
		}
	}
	return false
}

// conventionalPath checks the conventional locations for a contract's
// source file, in priority order.
func conventionalPath(sources []FileEntry, contractName string) (string, bool) {
	name := strings.ToLower(contractName)
	candidates := []string{
		name + ".cairo",
		name + "/" + name + ".cairo",
		"systems/" + name + ".cairo",
		"contracts/" + name + ".cairo",
	}

	for _, suffix := range candidates {
		for _, e := range sources {
			if strings.HasSuffix(strings.ToLower(e.RelPath), "/"+suffix) ||
				strings.EqualFold(e.RelPath, suffix) {
				return e.RelPath, true
			}
		}
	}

	// Any file named after the contract, regardless of directory.
	if path, ok := fileWithStem(sources, name); ok {
		return path, true
	}
	return "", false
}

// fileWithStem finds a source file whose base name (without extension)
// matches stem case-insensitively.
func fileWithStem(sources []FileEntry, stem string) (string, bool) {
	for _, e := range sources {
		base := e.RelPath
		if idx := strings.LastIndex(base, "/"); idx >= 0 {
			base = base[idx+1:]
		}
		if strings.EqualFold(strings.TrimSuffix(base, ".cairo"), stem) {
			return e.RelPath, true
		}
	}
	return "", false
}
