package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"EarningsTracker/internal/app"
)

var subscribersCmd = &cobra.Command{
	Use:   "subscribers",
	Short: "Manage notification recipients",
}

var subscribersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recipients (protected addresses first)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.Application, _ *slog.Logger) error {
			list, err := a.Subscribers.List(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, list)
		})
	},
}

var subscribersAddCmd = &cobra.Command{
	Use:   "add EMAIL...",
	Short: "Add recipients; existing ones are ignored",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.Application, _ *slog.Logger) error {
			for _, email := range args {
				added, err := a.Subscribers.Add(ctx, email)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s added=%t\n", email, added)
			}
			return nil
		})
	},
}

var subscribersRemoveCmd = &cobra.Command{
	Use:   "remove EMAIL...",
	Short: "Remove recipients; protected addresses are refused",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.Application, _ *slog.Logger) error {
			for _, email := range args {
				removed, err := a.Subscribers.Remove(ctx, email)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s removed=%t\n", email, removed)
			}
			return nil
		})
	},
}

var subscribersClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every non-protected recipient",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.Application, _ *slog.Logger) error {
			return a.Subscribers.Clear(ctx)
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the notification history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print sent notifications, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.Application, _ *slog.Logger) error {
			entries, err := a.History.List(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, entries)
		})
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the notification history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.Application, _ *slog.Logger) error {
			return a.History.Clear(ctx)
		})
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read or change runtime settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the effective minimum interval",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.Application, _ *slog.Logger) error {
			interval := a.Poll.MinInterval(ctx)
			return printJSON(cmd, map[string]int{"notificationFrequency": int(interval.Minutes())})
		})
	},
}

var settingsSetIntervalCmd = &cobra.Command{
	Use:   "set-interval MINUTES",
	Short: "Set the minimum interval between full cycles (5..1440 minutes)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("parse minutes: %w", err)
		}
		return withApp(cmd, func(ctx context.Context, a *app.Application, _ *slog.Logger) error {
			return a.Poll.SetMinInterval(ctx, minutes)
		})
	},
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Operate on the sent-marker ledger",
}

var ledgerResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget every sent marker and daily bucket",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.Application, _ *slog.Logger) error {
			markers, buckets, err := a.ResetLedger(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]int{"markers": markers, "buckets": buckets})
		})
	},
}

var ledgerUnmarkCmd = &cobra.Command{
	Use:   "unmark CODE PERIOD",
	Short: "Forget one sent marker so the report is announced again",
	Long: `Forget one sent marker so the next cycle treats the report as new.

Examples:
  earningstracker ledger unmark 600519 2025-06-30`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.Application, _ *slog.Logger) error {
			return a.Ledger.Unmark(ctx, args[0], args[1])
		})
	},
}

func init() {
	subscribersCmd.AddCommand(subscribersListCmd, subscribersAddCmd, subscribersRemoveCmd, subscribersClearCmd)
	historyCmd.AddCommand(historyListCmd, historyClearCmd)
	settingsCmd.AddCommand(settingsGetCmd, settingsSetIntervalCmd)
	ledgerCmd.AddCommand(ledgerResetCmd, ledgerUnmarkCmd)

	rootCmd.AddCommand(subscribersCmd, historyCmd, settingsCmd, ledgerCmd)
}
