package main

import (
	"FinRank/internal/di"
	applogger "FinRank/pkg/logger"

	"github.com/spf13/cobra"
)

var generateOut string

// generateCmd builds the feature table
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Build the monthly feature table",
	Long: `Scrape ETF holdings, download daily closes in paced batches, compute the
monthly features and forward labels, join dividend yields and persist the
table to the configured store.

Examples:
  finrank generate
  finrank generate --out data/stock_features.csv`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVar(&generateOut, "out", "", "Feature CSV path (forces the csv store)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if generateOut != "" {
		cfg.Store.Backend = "csv"
		cfg.Store.FeaturesPath = generateOut
	}

	p, cleanup, err := di.InitializePipelines(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signalContext()
	defer stop()

	res, err := p.Generate.Run(ctx)
	if err != nil {
		p.Logger.Error("generate failed", applogger.Error(err))
		return err
	}
	p.Logger.Info("generate complete",
		applogger.String("run_id", res.RunID),
		applogger.String("store", cfg.Store.Backend),
		applogger.Int("tickers", res.Fetch.Retrieved),
		applogger.Int("rows", res.Rows),
	)
	return nil
}
