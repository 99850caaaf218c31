package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"FinRank/pkg/config"

	"github.com/spf13/cobra"
)

var configPath string

// rootCmd is the base command for the FinRank CLI
var rootCmd = &cobra.Command{
	Use:   "finrank",
	Short: "FinRank stock ranking and diversified selection",
	Long: `FinRank builds a monthly feature table for the constituents of a set of
ETFs, trains a gradient-boosted classifier on whether each stock beat the
equal-weighted market over the following months, and selects diversified
picks from the latest month.

Typical flow:
  finrank generate --out stock_features.csv
  finrank rank --in stock_features.csv --out-dir .
  finrank evaluate --in stock_features.csv
  finrank serve`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (defaults apply when empty)")
}

// loadConfig reads .env, the YAML file and environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
