package project

import (
	"fmt"
	"os/exec"
	"strings"
)

// ToolchainProber reports versions of locally installed build tools.
type ToolchainProber interface {
	// ScarbVersion returns the version of the scarb binary on PATH.
	ScarbVersion() (string, error)
}

// ExecToolchain probes by executing the tools.
type ExecToolchain struct{}

// ScarbVersion runs `scarb -V` and extracts the version number. The
// output looks like "scarb 2.8.4 (2aa4e193e 2024-10-07)".
func (ExecToolchain) ScarbVersion() (string, error) {
	out, err := exec.Command("scarb", "-V").Output()
	if err != nil {
		return "", fmt.Errorf("running scarb -V (is scarb installed?): %w", err)
	}

	fields := strings.Fields(string(out))
	if len(fields) < 2 || fields[0] != "scarb" {
		return "", fmt.Errorf("unexpected scarb -V output %q", strings.TrimSpace(string(out)))
	}
	return fields[1], nil
}

// StaticToolchain returns fixed versions; used in tests and when the
// scarb version is supplied via configuration.
type StaticToolchain struct {
	Scarb string
}

func (t StaticToolchain) ScarbVersion() (string, error) {
	if t.Scarb == "" {
		return "", fmt.Errorf("no scarb version configured")
	}
	return t.Scarb, nil
}
