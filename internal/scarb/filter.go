package scarb

import "strings"

// devDepsHeader is the section header removed from transmitted manifests.
const devDepsHeader = "[dev-dependencies]"

// devDepsRemovedComment replaces the section so a reader of the submitted
// manifest can see why it differs from the repository copy.
const devDepsRemovedComment = "# [dev-dependencies] section removed for remote compilation"

// StripDevDependencies removes the [dev-dependencies] section from manifest
// content. The filter is textual rather than a parse/re-serialize round
// trip so the rest of the user's formatting is preserved byte for byte.
// The on-disk file is never touched; only the transmitted copy is filtered.
func StripDevDependencies(content string) string {
	input := strings.Split(content, "\n")
	if strings.HasSuffix(content, "\n") {
		input = input[:len(input)-1]
	}

	var lines []string
	inDevDeps := false

	for _, line := range input {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, devDepsHeader) {
			inDevDeps = true
			lines = append(lines, devDepsRemovedComment)
			continue
		}

		if strings.HasPrefix(trimmed, "[") {
			if inDevDeps {
				lines = append(lines, "")
			}
			inDevDeps = false
			lines = append(lines, line)
			continue
		}

		if inDevDeps {
			continue
		}

		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}
