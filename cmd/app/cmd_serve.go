package main

import (
	"FinRank/internal/di"

	"github.com/spf13/cobra"
)

// serveCmd exposes the pipeline over HTTP
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve recommendations over HTTP",
	Long: `Start the HTTP API:
  GET  /api/recommendations   pick lists for the stored feature table
  GET  /api/features/latest   latest month of the feature table
  POST /api/pipeline/generate rebuild the feature table in the background
  GET  /healthz, /metrics`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signalContext()
	defer stop()
	return app.Run(ctx)
}
