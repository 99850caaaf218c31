//go:build wireinject
// +build wireinject

package di

import (
	"FinRank/pkg/config"
	"FinRank/pkg/server"

	"github.com/google/wire"
)

var pipelineSet = wire.NewSet(
	// Infrastructure
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideMetrics,
	ProvideCache,
	ProvideHTTPClient,
	ProvideFeatureStore,
	ProvidePickPublisher,

	// Sources
	ProvideHoldingsSource,
	ProvideYahooClient,
	ProvidePriceSource,
	ProvideDividendSource,

	// Stages
	ProvideUniverseBuilder,
	ProvidePriceFetcher,
	ProvideFeatureEngine,
	ProvideDividendEnricher,
	ProvideModel,
	ProvideRecommendConfig,

	// Use cases
	ProvideGeneratePipeline,
	ProvideRecommendPipeline,
)

// InitializePipelines wires the batch commands (generate, rank, evaluate).
func InitializePipelines(cfg *config.Config) (*Pipelines, func(), error) {
	wire.Build(pipelineSet, ProvidePipelines)
	return nil, nil, nil
}

// InitializeApp wires the HTTP server.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(pipelineSet, ProvidePipelineHandler, ProvideApp)
	return nil, nil, nil
}
