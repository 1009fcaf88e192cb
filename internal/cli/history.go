package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/quasarlabs/starkverify/internal/history"
)

func createHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past verification jobs",
		Long: `History lists the verification jobs recorded by this machine, shows
aggregate statistics and prunes old records.

EXAMPLES:
  starkverify history list
  starkverify history list --status Success --network mainnet --limit 5
  starkverify history stats
  starkverify history clean --older-than 30
`,
	}

	cmd.AddCommand(createHistoryListCmd())
	cmd.AddCommand(createHistoryStatsCmd())
	cmd.AddCommand(createHistoryCleanCmd())

	return cmd
}

func createHistoryListCmd() *cobra.Command {
	var (
		status  string
		network string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded verification jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := requireHistory(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), history.Filter{
				Status:  status,
				Network: network,
				Limit:   limit,
			})
			if err != nil {
				return fmt.Errorf("listing history: %w", err)
			}
			if len(records) == 0 {
				fmt.Println("No verification jobs recorded yet.")
				return nil
			}

			fmt.Printf("%-38s %-14s %-15s %-10s %-8s %s\n",
				"JOB", "STATUS", "CONTRACT", "NETWORK", "TOOK", "CLASS HASH")
			for _, rec := range records {
				name := rec.ContractName
				if name == "" {
					name = rec.PackageName
				}
				fmt.Printf("%-38s %-14s %-15s %-10s %-8s %s\n",
					rec.JobID, rec.Status, name, rec.Network,
					formatDuration(rec.Duration()), truncateHash(rec.ClassHash))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status, e.g. Success or CompileFailed")
	cmd.Flags().StringVar(&network, "network", "", "filter by network")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum records to show (0 for all)")

	return cmd
}

func createHistoryStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show verification counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := requireHistory(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading stats: %w", err)
			}
			if len(stats) == 0 {
				fmt.Println("No verification jobs recorded yet.")
				return nil
			}

			statuses := make([]string, 0, len(stats))
			total := 0
			for status, count := range stats {
				statuses = append(statuses, status)
				total += count
			}
			sort.Strings(statuses)

			fmt.Println("📊 Verification history")
			for _, status := range statuses {
				fmt.Printf("   %-14s %d\n", status, stats[status])
			}
			fmt.Printf("   %-14s %d\n", "Total", total)
			return nil
		},
	}
}

func createHistoryCleanCmd() *cobra.Command {
	var (
		olderThanDays int
		all           bool
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete old verification records",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && olderThanDays <= 0 {
				return fmt.Errorf("specify --older-than <days> or --all")
			}

			store, err := requireHistory(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			var deleted int64
			if all {
				deleted, err = store.DeleteAll(cmd.Context())
			} else {
				deleted, err = store.DeleteOlderThan(cmd.Context(), time.Duration(olderThanDays)*24*time.Hour)
			}
			if err != nil {
				return fmt.Errorf("cleaning history: %w", err)
			}

			fmt.Printf("🧹 Deleted %d record(s)\n", deleted)
			return nil
		},
	}

	cmd.Flags().IntVar(&olderThanDays, "older-than", 0, "delete records older than this many days")
	cmd.Flags().BoolVar(&all, "all", false, "delete every record")

	return cmd
}

// requireHistory opens the history store or fails; unlike the verify
// path, history commands have nothing useful to do without it.
func requireHistory(cmd *cobra.Command) (history.Store, error) {
	cfg, err := loadConfig(".")
	if err != nil {
		return nil, err
	}

	logger := newLogger()
	store, err := history.New(history.Config{
		Backend:     cfg.HistoryBackend,
		Path:        cfg.HistoryPath,
		PostgresURL: cfg.HistoryPostgresURL,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("opening history store: %w", err)
	}
	if err := store.Migrate(cmd.Context()); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrating history store: %w", err)
	}
	return store, nil
}
