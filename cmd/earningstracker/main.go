package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"EarningsTracker/internal/app"
	"EarningsTracker/internal/config"
	"EarningsTracker/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "earningstracker",
	Short: "Track earnings-forecast announcements and email subscribers about new ones",
	Long: `earningstracker polls the Eastmoney data center for positive earnings forecasts,
remembers which (stock, period) pairs were already announced and emails subscribers
about the new ones.

Configuration is read from --config or $EARNINGS_TRACKER_CONFIG, with .env and
environment overrides applied on top.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config file")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// withApp loads config, builds the application and closes it after fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.Application, logger *slog.Logger) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx := cmd.Context()
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application init failed", "error", err)
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("close application", "error", err)
		}
	}()

	return fn(ctx, application, logger)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
