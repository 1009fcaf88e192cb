package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quasarlabs/starkverify/internal/config"
)

const projectFileTemplate = `# starkverify project configuration
#
# Values here override ~/.starkverify/config.yaml and are overridden by
# STARKVERIFY_* environment variables and command-line flags.

[starkverify]
network = "sepolia"
# license = "MIT"
# default-package = "my_package"
# include-lock = true
# include-tests = false

# Batch verification: each entry is verified by "starkverify verify".
# [[contracts]]
# class-hash = "0x044dc2b3239382230d8b1e943df23b96f52eebcac93efe6e8bde92f9a2f1da18"
# contract-name = "Token"
# package = "token"
`

func createConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage starkverify configuration",
		Long: `Config inspects the merged configuration and scaffolds a per-project
config file.

EXAMPLES:
  starkverify config init
  starkverify config show
`,
	}

	cmd.AddCommand(createConfigInitCmd())
	cmd.AddCommand(createConfigShowCmd())

	return cmd
}

func createConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [project-dir]",
		Short: "Write a " + config.ProjectFile + " template",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			path := filepath.Join(root, config.ProjectFile)

			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists; edit it instead", path)
			}
			if err := os.WriteFile(path, []byte(projectFileTemplate), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}

			fmt.Printf("✅ Wrote %s\n", path)
			return nil
		},
	}
}

func createConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [project-dir]",
		Short: "Print the merged configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			endpoint, err := cfg.Endpoint()
			if err != nil {
				endpoint = fmt.Sprintf("(invalid: %v)", err)
			}

			fmt.Println("⚙️  Effective configuration")
			fmt.Printf("   Network:         %s\n", cfg.NetworkLabel())
			fmt.Printf("   Endpoint:        %s\n", endpoint)
			fmt.Printf("   License:         %s\n", orDash(cfg.License))
			fmt.Printf("   Default package: %s\n", orDash(cfg.DefaultPackage))
			fmt.Printf("   Project type:    %s\n", orDash(cfg.ProjectType))
			fmt.Printf("   Include lock:    %t\n", cfg.IncludeLock)
			fmt.Printf("   Include tests:   %t\n", cfg.IncludeTests)

			backend := cfg.HistoryBackend
			if backend == "" {
				backend = "sqlite"
			}
			fmt.Printf("   History backend: %s\n", backend)

			if len(cfg.Contracts) > 0 {
				fmt.Printf("   Batch contracts: %d\n", len(cfg.Contracts))
				for _, c := range cfg.Contracts {
					fmt.Printf("     - %s (%s)\n", c.ContractName, truncateHash(c.ClassHash))
				}
			}

			fmt.Println()
			fmt.Printf("   Layers: defaults < %s < %s < STARKVERIFY_* env < flags\n",
				config.GlobalPath(), filepath.Join(root, config.ProjectFile))
			fmt.Printf("   Known networks: %s\n", strings.Join(config.KnownNetworks(), ", "))
			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
