package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quasarlabs/starkverify/internal/collect"
	"github.com/quasarlabs/starkverify/internal/config"
	"github.com/quasarlabs/starkverify/internal/project"
	"github.com/quasarlabs/starkverify/internal/verify"
	"github.com/quasarlabs/starkverify/pkg/client"
)

func createVerifyCmd() *cobra.Command {
	var (
		classHash    string
		contractName string
		packageName  string
		projectType  string
		license      string
		lockFile     bool
		testFiles    bool
		dryRun       bool
		watch        bool
		failFast     bool
		delaySeconds int
	)

	cmd := &cobra.Command{
		Use:   "verify [project-dir]",
		Short: "Submit contract sources for verification",
		Long: `Verify submits the Cairo sources of a Scarb or Dojo package to the
verification service and watches the job until it completes.

With no --class-hash and no batch entries in .starkverify.toml, an
interactive wizard collects the missing values.

EXAMPLES:
  # Verify a single contract
  starkverify verify --class-hash 0x044dc2b3239382230d8b1e943df23b96f52eebcac93efe6e8bde92f9a2f1da18 --contract Token

  # Verify a workspace member on mainnet
  starkverify verify --network mainnet --package token --class-hash 0x044d... --contract Token

  # Verify every [[contracts]] entry of .starkverify.toml
  starkverify verify --fail-fast

  # Preview the exact file set without any network traffic
  starkverify verify --class-hash 0x044d... --contract Token --dry-run
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			return runVerify(cmd, root, verifyFlags{
				classHash:    classHash,
				contractName: contractName,
				packageName:  packageName,
				projectType:  projectType,
				license:      license,
				lockFile:     lockFile,
				testFiles:    testFiles,
				dryRun:       dryRun,
				watch:        watch,
				failFast:     failFast,
				delaySeconds: delaySeconds,
				flagsChanged: map[string]bool{
					"lock-file":  cmd.Flags().Changed("lock-file"),
					"test-files": cmd.Flags().Changed("test-files"),
					"fail-fast":  cmd.Flags().Changed("fail-fast"),
					"delay":      cmd.Flags().Changed("delay"),
					"license":    cmd.Flags().Changed("license"),
				},
			})
		},
	}

	cmd.Flags().StringVar(&classHash, "class-hash", "", "class hash of the deployed contract")
	cmd.Flags().StringVar(&contractName, "contract", "", "contract name to verify")
	cmd.Flags().StringVar(&packageName, "package", "", "workspace package to verify")
	cmd.Flags().StringVar(&projectType, "project-type", "", "build tool: scarb, dojo or auto (default auto)")
	cmd.Flags().StringVar(&license, "license", "", "SPDX license identifier for the submission")
	cmd.Flags().BoolVar(&lockFile, "lock-file", false, "include Scarb.lock in the submission")
	cmd.Flags().BoolVar(&testFiles, "test-files", false, "include test files in the submission")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "prepare the submission locally without sending it")
	cmd.Flags().BoolVar(&watch, "watch", true, "poll the job until it completes")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "batch mode: stop at the first submission failure")
	cmd.Flags().IntVar(&delaySeconds, "delay", 0, "batch mode: seconds to wait between submissions")

	return cmd
}

type verifyFlags struct {
	classHash    string
	contractName string
	packageName  string
	projectType  string
	license      string
	lockFile     bool
	testFiles    bool
	dryRun       bool
	watch        bool
	failFast     bool
	delaySeconds int
	flagsChanged map[string]bool
}

func runVerify(cmd *cobra.Command, root string, f verifyFlags) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	applyVerifyFlags(cfg, f)

	batch := len(cfg.Contracts) > 0
	if batch && (f.classHash != "" || f.contractName != "") {
		return fmt.Errorf("batch entries in %s cannot be combined with --class-hash/--contract; remove one or the other", config.ProjectFile)
	}

	if !batch && f.classHash == "" {
		answers, err := runWizard(cfg)
		if err != nil {
			return err
		}
		f.classHash = answers.classHash
		f.contractName = answers.contractName
		if answers.license != "" {
			cfg.License = answers.license
		}
	}

	buildTool, err := project.ParseBuildTool(f.projectType)
	if err != nil {
		return err
	}
	if f.projectType == "" && cfg.ProjectType != "" {
		if buildTool, err = project.ParseBuildTool(cfg.ProjectType); err != nil {
			return err
		}
	}

	logger := newLogger()
	svc, err := newClient(cfg)
	if err != nil {
		return err
	}
	store := openHistory(cmd, cfg, logger)
	if store != nil {
		defer store.Close()
	}

	runner := verify.NewRunner(project.NewResolver(), collect.New(logger), svc, store, logger)
	base := verify.Params{
		Root:           root,
		Package:        f.packageName,
		DefaultPackage: cfg.DefaultPackage,
		BuildTool:      buildTool,
		License:        cfg.License,
		Network:        cfg.NetworkLabel(),
		IncludeTests:   cfg.IncludeTests,
		IncludeLock:    cfg.IncludeLock,
		DryRun:         f.dryRun,
	}

	if batch {
		return runBatchVerify(cmd, runner, cfg, base, f)
	}

	base.ClassHash = f.classHash
	base.ContractName = f.contractName
	return runSingleVerify(cmd, runner, base, f.watch)
}

// applyVerifyFlags lays the command's own flags over the merged config.
// Only flags the user actually set may override file/env values.
func applyVerifyFlags(cfg *config.Config, f verifyFlags) {
	if f.flagsChanged["lock-file"] {
		cfg.IncludeLock = f.lockFile
	}
	if f.flagsChanged["test-files"] {
		cfg.IncludeTests = f.testFiles
	}
	if f.flagsChanged["fail-fast"] {
		cfg.FailFast = f.failFast
	}
	if f.flagsChanged["delay"] {
		cfg.InterItemDelay = time.Duration(f.delaySeconds) * time.Second
	}
	if f.flagsChanged["license"] {
		cfg.License = f.license
	}
}

func runSingleVerify(cmd *cobra.Command, runner *verify.Runner, p verify.Params, watch bool) error {
	ctx := cmd.Context()

	prep, err := runner.Prepare(ctx, p)
	if err != nil {
		return err
	}

	d := prep.Descriptor
	fmt.Printf("🔍 Verifying %s", d.PackageName)
	if p.ContractName != "" {
		fmt.Printf(" / %s", p.ContractName)
	}
	fmt.Println()
	fmt.Printf("   Network:  %s\n", p.Network)
	fmt.Printf("   Tool:     %s (%s)\n", d.BuildTool, d.BuildTool.CommandName())
	fmt.Printf("   Entry:    %s\n", prep.ContractFile)
	fmt.Printf("   Files:    %d\n", len(prep.Entries))

	if p.DryRun {
		fmt.Println()
		fmt.Println("📋 Dry run: files that would be submitted")
		for _, e := range prep.Entries {
			fmt.Printf("   %-11s %s (%d bytes)\n", e.Kind, e.RelPath, e.Size)
		}
		fmt.Println("   No network request was made.")
		return nil
	}

	jobID, err := runner.Submit(ctx, p, prep)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.RateLimited() {
			return fmt.Errorf("service rate limit reached, retry in a moment: %w", err)
		}
		return err
	}
	fmt.Printf("🚀 Submitted, job %s\n", jobID)

	if !watch {
		fmt.Printf("   Check later with: starkverify status %s\n", jobID)
		return nil
	}

	job, err := runner.Watch(ctx, jobID, p.Network, renderInlineStatus)
	if errors.Is(err, verify.ErrPollTimeout) {
		fmt.Println()
		fmt.Printf("⌛ %v\n", err)
		fmt.Printf("   Check later with: starkverify status %s\n", jobID)
		return nil
	}
	if err != nil {
		return err
	}

	return reportOutcome(job)
}

func reportOutcome(job *client.Job) error {
	switch {
	case job.Status == client.StatusSuccess:
		fmt.Println("✅ VERIFIED - contract source matches the deployed class")
		return nil
	case job.Status.Failed():
		fmt.Printf("❌ NOT VERIFIED - %s\n", job.Status)
		fmt.Printf("   %s\n", job.FailureMessage())
		return fmt.Errorf("verification failed")
	default:
		return nil
	}
}

func runBatchVerify(cmd *cobra.Command, runner *verify.Runner, cfg *config.Config, base verify.Params, f verifyFlags) error {
	items := make([]verify.BatchItem, len(cfg.Contracts))
	for i, c := range cfg.Contracts {
		items[i] = verify.BatchItem{
			ClassHash:    c.ClassHash,
			ContractName: c.ContractName,
			Package:      c.Package,
		}
	}

	fmt.Printf("🔍 Batch verification: %d contracts\n", len(items))

	orchestrator := verify.NewOrchestrator(runner)
	summary, err := orchestrator.Run(cmd.Context(), items, verify.BatchOptions{
		Base:           base,
		FailFast:       cfg.FailFast,
		InterItemDelay: cfg.InterItemDelay,
		Watch:          f.watch,
	}, renderBatchTick)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("📊 Batch %s\n", summary.RunID)
	fmt.Printf("   Total:     %d\n", summary.Total)
	fmt.Printf("   Submitted: %d\n", summary.Submitted)
	fmt.Printf("   Succeeded: %d\n", summary.Succeeded)
	fmt.Printf("   Failed:    %d\n", summary.Failed)
	fmt.Printf("   Skipped:   %d\n", summary.Skipped)
	fmt.Printf("   Pending:   %d\n", summary.Pending)

	for _, item := range summary.Items {
		switch item.State {
		case verify.ItemSucceeded:
			fmt.Printf("   ✅ %s (%s)\n", item.Item.ContractName, truncateHash(item.Item.ClassHash))
		case verify.ItemFailed:
			fmt.Printf("   ❌ %s (%s): %v\n", item.Item.ContractName, truncateHash(item.Item.ClassHash), item.Err)
		case verify.ItemSkipped:
			fmt.Printf("   ⏭️  %s (skipped)\n", item.Item.ContractName)
		case verify.ItemPending:
			fmt.Printf("   ⏳ %s, job %s still running\n", item.Item.ContractName, item.JobID)
		}
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d verifications failed", summary.Failed, summary.Total)
	}
	return nil
}
