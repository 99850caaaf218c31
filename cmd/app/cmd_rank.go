package main

import (
	"encoding/json"
	"fmt"
	"io"

	"FinRank/internal/di"
	"FinRank/internal/domain/models"
	applogger "FinRank/pkg/logger"
	"FinRank/pkg/report"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
)

var (
	rankIn     string
	rankOutDir string
	rankFormat string
	rankStyle  string
	rankWrap   int
)

// rankCmd trains on the feature table and prints the pick lists
var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank the latest month and select diversified picks",
	Long: `Train the classifier on the stored feature table, score the latest month
and build the pick lists. Lists are written to the configured store and
printed to stdout.

Examples:
  finrank rank --in stock_features.csv --out-dir picks
  finrank rank --format json`,
	RunE: runRank,
}

func init() {
	rootCmd.AddCommand(rankCmd)
	rankCmd.Flags().StringVar(&rankIn, "in", "", "Feature CSV path (forces the csv store)")
	rankCmd.Flags().StringVar(&rankOutDir, "out-dir", "", "Directory for the pick CSVs")
	rankCmd.Flags().StringVar(&rankFormat, "format", "md", "Output format (md|json)")
	rankCmd.Flags().StringVar(&rankStyle, "style", "auto", "Terminal style (auto|dark|light|notty)")
	rankCmd.Flags().IntVar(&rankWrap, "wrap", 100, "Terminal word wrap")
}

func runRank(cmd *cobra.Command, args []string) error {
	if rankFormat != "md" && rankFormat != "json" {
		return fmt.Errorf("invalid --format %q: want md or json", rankFormat)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if rankIn != "" {
		cfg.Store.Backend = "csv"
		cfg.Store.FeaturesPath = rankIn
	}
	if rankOutDir != "" {
		cfg.Store.PicksDir = rankOutDir
	}

	p, cleanup, err := di.InitializePipelines(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signalContext()
	defer stop()

	recs, err := p.Recommend.Run(ctx)
	if err != nil {
		p.Logger.Error("rank failed", applogger.Error(err))
		return err
	}
	return writeRecommendations(cmd.OutOrStdout(), recs, rankFormat, rankStyle, rankWrap)
}

func writeRecommendations(w io.Writer, recs *models.Recommendations, format, style string, wrap int) error {
	if format == "json" {
		b, err := json.Marshal(recs)
		if err != nil {
			return fmt.Errorf("encode recommendations: %w", err)
		}
		_, err = w.Write(pretty.Pretty(b))
		return err
	}

	md, err := report.Markdown(recs)
	if err != nil {
		return err
	}
	out, err := report.Terminal(md, style, wrap)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
