package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"MetalPulse/internal/di"
	"MetalPulse/internal/report"
	"MetalPulse/internal/usecase"
	"MetalPulse/pkg/config"
	applogger "MetalPulse/pkg/logger"
)

var (
	serveRunNow           bool
	analyzeSync           bool
	analyzeJSON           bool
	retentionDays         int
	analysisRetentionDays int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the daily scheduler and the live quote feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithEnv(configPath)
		if err != nil {
			return fmt.Errorf("config load failed: %w", err)
		}
		if serveRunNow {
			cfg.Analysis.RunOnStart = true
		}

		app, cleanup, err := di.InitializeApp(cfg)
		if err != nil {
			return fmt.Errorf("app initialization failed: %w", err)
		}
		defer cleanup()

		return app.Run(cmd.Context())
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Sync market data, run one analysis and print the summary",
	Long: `Run a single fragility analysis. The stored history is synced first
unless --sync=false is given. The result is saved, cached, published and
written as a Markdown report exactly as the scheduled job does.

Examples:
  metalpulse analyze
  metalpulse analyze --sync=false --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJobs(cmd, func(ctx context.Context, cfg *config.Config, jobs *di.Jobs) error {
			if analyzeSync {
				if _, err := jobs.Monitor.Sync(ctx); err != nil {
					jobs.Log.Warn("sync failed, analyzing stored history", applogger.Error(err))
				}
			}
			rec, err := jobs.Monitor.Analyze(ctx)
			if err != nil {
				return err
			}
			if analyzeJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.Summary(rec))
			return nil
		})
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Backfill or update the stored price and macro history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJobs(cmd, func(ctx context.Context, cfg *config.Config, jobs *di.Jobs) error {
			res, err := jobs.Monitor.Sync(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "synced %s..%s initial=%t prices=%d macro=%d\n",
				res.From.Format(config.DateLayout), res.To.Format(config.DateLayout),
				res.Initial, res.PriceRows, res.MacroRows)
			return nil
		})
	},
}

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Archive and delete rows older than the retention windows, then optimize",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJobs(cmd, func(ctx context.Context, cfg *config.Config, jobs *di.Jobs) error {
			policy := jobs.Maintenance.Policy()
			if retentionDays > 0 {
				policy.SeriesDays = retentionDays
			}
			if analysisRetentionDays > 0 {
				policy.AnalysisDays = analysisRetentionDays
			}
			res, rotErr := jobs.Maintenance.Rotate(ctx, policy)
			if res != nil {
				out := cmd.OutOrStdout()
				for _, t := range res.Tables {
					fmt.Fprintf(out, "%-18s cutoff %s  archived %d  deleted %d", t.Table, t.Cutoff.Format(config.DateLayout), t.Archived, t.Deleted)
					if t.Error != "" {
						fmt.Fprintf(out, "  error: %s", t.Error)
					}
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "optimized %d tables, removed %d expired archives\n", len(res.Optimized), len(res.ArchivesRemoved))
			}
			return rotErr
		})
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export every table into a new compressed backup set",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJobs(cmd, func(ctx context.Context, cfg *config.Config, jobs *di.Jobs) error {
			res, err := jobs.Maintenance.Backup(ctx)
			if err != nil {
				return err
			}
			tables := make([]string, 0, len(res.Rows))
			for table := range res.Rows {
				tables = append(tables, table)
			}
			sort.Strings(tables)
			fmt.Fprintf(cmd.OutOrStdout(), "backup %s\n", res.Path)
			for _, table := range tables {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d rows\n", table, res.Rows[table])
			}
			for _, p := range res.Removed {
				fmt.Fprintf(cmd.OutOrStdout(), "  pruned %s\n", p)
			}
			return nil
		})
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show table row counts, archive and backup usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJobs(cmd, func(ctx context.Context, cfg *config.Config, jobs *di.Jobs) error {
			info, err := jobs.Maintenance.Info(ctx)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), usecase.FormatInfo(info))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, analyzeCmd, syncCmd, maintainCmd, backupCmd, infoCmd)

	serveCmd.Flags().BoolVar(&serveRunNow, "run-now", false, "Run one analysis immediately after startup")
	analyzeCmd.Flags().BoolVar(&analyzeSync, "sync", true, "Sync market data before analyzing")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the full result as JSON")
	maintainCmd.Flags().IntVar(&retentionDays, "retention-days", 0, "Days of prices and macro data to keep (default: maintenance.retention_days)")
	maintainCmd.Flags().IntVar(&analysisRetentionDays, "analysis-retention-days", 0, "Days of analysis results to keep (default: maintenance.analysis_retention_days)")
}

// withJobs loads config, wires the job dependencies and runs fn under the
// analysis timeout.
func withJobs(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, jobs *di.Jobs) error) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	jobs, cleanup, err := di.InitializeJobs(cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Analysis.Timeout)
	defer cancel()
	return fn(ctx, cfg, jobs)
}
