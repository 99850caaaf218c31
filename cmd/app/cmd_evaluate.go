package main

import (
	"encoding/json"
	"fmt"

	"FinRank/internal/di"
	applogger "FinRank/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
)

var (
	evaluateIn       string
	evaluateFraction float64
)

// evaluateCmd runs a date-split backtest of the classifier
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Walk-forward evaluation of the classifier",
	Long: `Split the feature table by date, train on the earlier months and report
accuracy, log loss and AUC on the later months.

Examples:
  finrank evaluate --in stock_features.csv
  finrank evaluate --train-fraction 0.8`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().StringVar(&evaluateIn, "in", "", "Feature CSV path (forces the csv store)")
	evaluateCmd.Flags().Float64Var(&evaluateFraction, "train-fraction", 0, "Share of months used for training (default from config)")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if evaluateIn != "" {
		cfg.Store.Backend = "csv"
		cfg.Store.FeaturesPath = evaluateIn
	}
	fraction := cfg.Model.TrainFraction
	if evaluateFraction > 0 {
		fraction = evaluateFraction
	}

	p, cleanup, err := di.InitializePipelines(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signalContext()
	defer stop()

	ev, err := p.Recommend.Evaluate(ctx, fraction)
	if err != nil {
		p.Logger.Error("evaluate failed", applogger.Error(err))
		return err
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode evaluation: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(pretty.Pretty(b))
	return err
}
