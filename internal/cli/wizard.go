package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/quasarlabs/starkverify/internal/config"
)

// wizardAnswers are the values the interactive prompt collects when the
// verify command is invoked without identifying arguments.
type wizardAnswers struct {
	classHash    string
	contractName string
	license      string
}

// runWizard interactively collects the values that would normally come
// from flags. It refuses to run without a terminal so scripted callers
// get a clear error instead of a hung prompt.
func runWizard(cfg *config.Config) (wizardAnswers, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return wizardAnswers{}, fmt.Errorf("--class-hash is required when stdin is not a terminal")
	}

	fmt.Println("🧙 Interactive verification setup")
	reader := bufio.NewReader(os.Stdin)

	var answers wizardAnswers
	for answers.classHash == "" {
		v, err := prompt(reader, "Class hash (0x...)", "")
		if err != nil {
			return wizardAnswers{}, err
		}
		if !strings.HasPrefix(v, "0x") {
			fmt.Println("   A class hash starts with 0x.")
			continue
		}
		answers.classHash = v
	}

	contract, err := prompt(reader, "Contract name", "auto-detect")
	if err != nil {
		return wizardAnswers{}, err
	}
	if contract != "auto-detect" {
		answers.contractName = contract
	}

	network, err := prompt(reader, "Network", cfg.NetworkLabel())
	if err != nil {
		return wizardAnswers{}, err
	}
	if network != cfg.NetworkLabel() {
		cfg.Network = network
		cfg.URL = ""
	}

	license := cfg.License
	if license == "" {
		license = "NONE"
	}
	license, err = prompt(reader, "License (SPDX identifier)", license)
	if err != nil {
		return wizardAnswers{}, err
	}
	if license != "NONE" {
		answers.license = license
	}

	fmt.Println()
	return answers, nil
}

// prompt reads one trimmed line, falling back to def on empty input.
func prompt(reader *bufio.Reader, label, def string) (string, error) {
	if def != "" {
		fmt.Printf("   %s [%s]: ", label, def)
	} else {
		fmt.Printf("   %s: ", label)
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	return line, nil
}
