package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quasarlabs/starkverify/internal/verify"
	"github.com/quasarlabs/starkverify/pkg/client"
)

func createStatusCmd() *cobra.Command {
	var format string
	var watch bool

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Check a verification job",
		Long: `Status fetches the current snapshot of a verification job and updates
local history. With --watch it keeps polling until the job completes.

EXAMPLES:
  starkverify status 8c1e6f0a-1b7e-4d2f-9f6a-0f3b6a9c1d2e
  starkverify status 8c1e6f0a-1b7e-4d2f-9f6a-0f3b6a9c1d2e --watch
  starkverify status 8c1e6f0a-1b7e-4d2f-9f6a-0f3b6a9c1d2e --format json
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, args[0], format, watch)
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	cmd.Flags().BoolVar(&watch, "watch", false, "poll until the job completes")

	return cmd
}

func runStatus(cmd *cobra.Command, jobID, format string, watch bool) error {
	cfg, err := loadConfig(".")
	if err != nil {
		return err
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

	// The recorded network, if any, is more accurate than the current
	// config when the job was submitted elsewhere.
	network := cfg.NetworkLabel()
	if store != nil {
		if rec, err := store.Get(cmd.Context(), jobID); err == nil && rec.Network != "" {
			network = rec.Network
		}
	}

	if watch {
		poller := verify.NewPoller(svc, store, logger)
		poller.Network = network
		job, err := poller.Watch(cmd.Context(), jobID, renderInlineStatus)
		if errors.Is(err, verify.ErrPollTimeout) {
			fmt.Println()
			fmt.Printf("⌛ %v\n", err)
			return nil
		}
		if err != nil {
			return err
		}
		return reportOutcome(job)
	}

	job, err := svc.GetJobStatus(cmd.Context(), jobID)
	if errors.Is(err, client.ErrJobNotFound) {
		return fmt.Errorf("the service has no job %s; it may have been submitted to a different network", jobID)
	}
	if err != nil {
		return err
	}

	if err := verify.PersistSnapshot(cmd.Context(), store, job, network); err != nil {
		logger.Warn("history update failed", "job_id", jobID, "error", err)
	}
	return renderJob(job, format)
}
