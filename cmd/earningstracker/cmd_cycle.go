package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"EarningsTracker/internal/app"
	"EarningsTracker/internal/domain"
)

var (
	runForce    bool
	summaryDate string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one check cycle and print its result",
	Long: `Run one check cycle: fetch, deduplicate, diff against the sent ledger and notify.

Examples:
  earningstracker run
  earningstracker run --force   # ignore the minimum interval`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.Application, _ *slog.Logger) error {
			return report(cmd, a.RunOnce(ctx, runForce))
		})
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Email the daily summary (defaults to yesterday)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.Application, _ *slog.Logger) error {
			day := time.Now().In(a.Location()).AddDate(0, 0, -1)
			if summaryDate != "" {
				parsed, err := time.ParseInLocation(domain.DateLayout, summaryDate, a.Location())
				if err != nil {
					return fmt.Errorf("parse --date: %w", err)
				}
				day = parsed
			}
			return report(cmd, a.Summary(ctx, day))
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cron scheduler and the HTTP trigger server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.Application, logger *slog.Logger) error {
			logger.Info("serving")
			if err := a.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			logger.Info("stopped")
			return nil
		})
	},
}

func init() {
	runCmd.Flags().BoolVar(&runForce, "force", false, "bypass the minimum-interval throttle")
	summaryCmd.Flags().StringVar(&summaryDate, "date", "", "day to summarize (YYYY-MM-DD)")

	rootCmd.AddCommand(runCmd, summaryCmd, serveCmd)
}

// report prints res and turns a failed cycle into a non-zero exit.
func report(cmd *cobra.Command, res domain.CycleResult) error {
	if err := printJSON(cmd, res); err != nil {
		return err
	}
	if !res.Success {
		return errors.New(res.Message)
	}
	return nil
}
