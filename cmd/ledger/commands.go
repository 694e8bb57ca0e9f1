package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/cmd/ledger/cli"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

func newIntegrityCommand() *cobra.Command {
	opts := cli.IntegrityOptions{}
	cmd := &cobra.Command{
		Use:   "integrity",
		Short: "Compare snapshot balances with a full replay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			logger := app.NewLogger(cfg)
			ctx := cmd.Context()
			dbpool, err := db.New(ctx, cfg.Postgres())
			if err != nil {
				return err
			}
			defer dbpool.Close()

			ledger := app.NewLedger(app.PostgresRepositories(dbpool), nil, nil, cfg, logger)
			job := jobs.NewGLIntegrityJob(ledger.Journals, ledger.Accounts, logger, nil)
			opts.Stdout = cmd.OutOrStdout()
			opts.Stderr = cmd.ErrOrStderr()
			if code := cli.NewIntegrityCLI(job).Command(ctx, opts); code != 0 {
				return exitError{code: code}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Since, "since", "", "first entry date to check (YYYY-MM-DD, default start of year)")
	cmd.Flags().StringVar(&opts.AsOf, "as-of", "", "balance date (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&opts.Repair, "repair", false, "rebuild snapshots when drift is found")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "print the report as JSON")
	return cmd
}

func newJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage background ledger jobs",
	}
	cmd.AddCommand(newJobsTriggerCommand())
	cmd.AddCommand(newJobsStatsCommand())
	return cmd
}

func newJobsTriggerCommand() *cobra.Command {
	var asOf string
	var repair bool
	cmd := &cobra.Command{
		Use:   "trigger <rebuild|integrity>",
		Short: "Enqueue a job on the default queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var date time.Time
			if asOf != "" {
				parsed, err := time.Parse(shared.DateLayout, asOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of %q: %w", asOf, err)
				}
				date = parsed
			}
			return withJobsCLI(func(c *cli.JobsCLI) error {
				info, err := c.Trigger(cmd.Context(), args[0], date, repair)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s (%s) on %s\n", info.Type, info.ID, info.Queue)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "date passed to the job (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&repair, "repair", false, "let the integrity job rebuild drifted snapshots")
	return cmd
}

func newJobsStatsCommand() *cobra.Command {
	var scheduled int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue depth and scheduled tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobsCLI(func(c *cli.JobsCLI) error {
				ctx := cmd.Context()
				stats, err := c.InspectQueue(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
					stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
				tasks, err := c.ListScheduled(ctx, scheduled)
				if err != nil {
					return err
				}
				for _, task := range tasks {
					_, _ = fmt.Fprintf(out, " - %s %s at %s\n", task.Type, task.ID, task.NextProcessAt.Format(time.RFC3339))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&scheduled, "scheduled", 10, "number of scheduled tasks to list")
	return cmd
}

func withJobsCLI(fn func(*cli.JobsCLI) error) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	c, err := cli.NewJobsCLI(cfg.Queue())
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			slog.Default().Warn("jobs cli close", slog.Any("error", err))
		}
	}()
	return fn(c)
}
