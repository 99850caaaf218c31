package di

import (
	"context"
	"fmt"
	"time"

	"FinRank/internal/domain/repository"
	"FinRank/internal/handler/api"
	internalrepo "FinRank/internal/repository"
	"FinRank/internal/service/alpaca"
	"FinRank/internal/service/ratelimit"
	"FinRank/internal/service/yahoo"
	"FinRank/internal/service/zacks"
	"FinRank/internal/services/features"
	"FinRank/internal/services/ranking"
	"FinRank/internal/usecase"
	"FinRank/pkg/cache"
	pkgch "FinRank/pkg/clickhouse"
	"FinRank/pkg/config"
	xhttp "FinRank/pkg/http"
	pkgkafka "FinRank/pkg/kafka"
	applogger "FinRank/pkg/logger"
	"FinRank/pkg/metrics"
	"FinRank/pkg/postgres"
	"FinRank/pkg/server"
)

const initTimeout = 15 * time.Second

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
		pkgkafka.WithAutoCreateTopic(cfg.Kafka.AutoCreateTopic),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the application logger. With Kafka enabled, repeated
// warnings and errors are aggregated and published to the logs topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if producer == nil {
		return l, func() {}, nil
	}
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   time.Minute,
		CountThreshold: 100,
		Topic:          cfg.Kafka.LogsTopic,
		Publisher:      producer,
	})
	return l, l.RemoveCollector, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New()
}

// ProvideCache creates the configured cache backend.
func ProvideCache(cfg *config.Config) (cache.Service, func(), error) {
	maxEntries := cache.WithMemoryMaxSize(cfg.Cache.MaxEntries)
	if cfg.Cache.Backend == "memory" {
		c := cache.NewMemoryCache(maxEntries)
		return c, func() { _ = c.Close() }, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	rc, err := cache.NewRedisCache(ctx,
		cache.WithRedisAddr(cfg.Cache.Redis.Addr),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
		cache.WithRedisPool(cfg.Cache.Redis.PoolSize, 2, 30*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	if cfg.Cache.Backend == "layered" {
		lc := cache.NewLayeredCache(rc, cfg.Cache.LocalTTL, maxEntries)
		return lc, func() { _ = lc.Close() }, nil
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideHTTPClient creates the outbound HTTP client shared by scrapers.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	opts := []xhttp.ClientOption{xhttp.WithTimeout(cfg.Universe.Timeout)}
	if cfg.Universe.UserAgent != "" {
		opts = append(opts, xhttp.WithHeader("User-Agent", cfg.Universe.UserAgent))
	}
	return xhttp.NewClient(opts...)
}

// ProvideHoldingsSource creates the ETF holdings scraper.
func ProvideHoldingsSource(cfg *config.Config, client *xhttp.Client) repository.HoldingsSource {
	return zacks.NewClient(client, cfg.Universe.HoldingsURL)
}

// ProvideYahooClient creates the rate-limited, breaker-guarded chart client.
func ProvideYahooClient(cfg *config.Config, l *applogger.Logger) *yahoo.Client {
	p := cfg.Prices
	client := xhttp.NewClient(xhttp.WithTimeout(p.Timeout))
	return yahoo.NewClient(client, l,
		yahoo.WithBaseURL(p.BaseURL),
		yahoo.WithLimiter(ratelimit.New(p.RequestsPerSecond, p.Burst)),
		yahoo.WithBreaker(ratelimit.BreakerSettings{
			ConsecutiveFailures: p.Breaker.ConsecutiveFailures,
			OpenTimeout:         p.Breaker.OpenTimeout,
			Interval:            p.Breaker.Interval,
		}),
	)
}

// ProvidePriceSource selects the configured price provider.
func ProvidePriceSource(cfg *config.Config, y *yahoo.Client) repository.PriceSource {
	if cfg.Prices.Provider == "alpaca" {
		a := cfg.Alpaca
		return alpaca.NewClient(a.APIKey, a.APISecret, a.BaseURL, a.Feed)
	}
	return y
}

// ProvideDividendSource uses the chart client's dividend events.
func ProvideDividendSource(y *yahoo.Client) repository.DividendSource {
	return y
}

// ProvideFeatureStore opens the configured feature store and ensures its schema.
func ProvideFeatureStore(cfg *config.Config, l *applogger.Logger) (repository.FeatureStore, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	switch cfg.Store.Backend {
	case "clickhouse":
		ch := cfg.ClickHouse
		client, err := pkgch.NewClient(ctx,
			pkgch.WithHost(ch.Host),
			pkgch.WithPort(ch.Port),
			pkgch.WithDatabase(ch.Database),
			pkgch.WithCredentials(ch.User, ch.Password),
			pkgch.WithHTTP(ch.UseHTTP),
			pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
			pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
			pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse client: %w", err)
		}
		store := internalrepo.NewCHFeatureStore(client, l)
		if err := store.Init(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		return store, func() { _ = store.Close() }, nil

	case "postgres":
		pg := cfg.Postgres
		client, err := postgres.NewClient(ctx, postgres.Config{
			DSN:             pg.DSN,
			MaxOpenConns:    pg.MaxOpenConns,
			MaxIdleConns:    pg.MaxIdleConns,
			ConnMaxLifetime: pg.ConnMaxLifetime,
			QueryTimeout:    pg.QueryTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres client: %w", err)
		}
		store := internalrepo.NewPGFeatureStore(client, l)
		if err := store.Init(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("postgres schema: %w", err)
		}
		return store, func() { _ = store.Close() }, nil

	default:
		store := internalrepo.NewCSVStore(cfg.Store.FeaturesPath, cfg.Store.PicksDir, l)
		return store, func() {}, nil
	}
}

// ProvidePickPublisher announces picks on Kafka, or returns nil when disabled.
func ProvidePickPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.PickPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPickPublisher(producer, cfg.Kafka.PicksTopic)
}

// ProvideUniverseBuilder creates the ticker universe stage.
func ProvideUniverseBuilder(cfg *config.Config, src repository.HoldingsSource, c cache.Service, l *applogger.Logger, m repository.Metrics) *usecase.UniverseBuilder {
	u := cfg.Universe
	return usecase.NewUniverseBuilder(src, u.ETFs, u.CashTicker, c, cfg.Cache.HoldingsTTL, l, m)
}

// ProvidePriceFetcher creates the bulk download stage.
func ProvidePriceFetcher(cfg *config.Config, src repository.PriceSource, l *applogger.Logger, m repository.Metrics) *usecase.PriceFetcher {
	p := cfg.Prices
	return usecase.NewPriceFetcher(src, usecase.FetchConfig{
		Period:          p.Period,
		Interval:        p.Interval,
		BatchSize:       p.BatchSize,
		BatchDelay:      p.BatchDelay,
		RetryCooldown:   p.RetryCooldown,
		MinObservations: p.MinObservations,
	}, usecase.ClockSleeper{}, l, m)
}

// ProvideFeatureEngine creates the feature engine.
func ProvideFeatureEngine(cfg *config.Config, l *applogger.Logger, m repository.Metrics) *features.Engine {
	f := cfg.Features
	return features.NewEngine(features.Config{
		LookbackMonths: f.LookbackMonths,
		ForwardMonths:  f.ForwardMonths,
		MinLookbackObs: f.MinLookbackObs,
		Epsilon:        f.Epsilon,
	}, l, m)
}

// ProvideDividendEnricher creates the dividend stage, or nil when disabled.
func ProvideDividendEnricher(cfg *config.Config, src repository.DividendSource, c cache.Service, l *applogger.Logger, m repository.Metrics) *usecase.DividendEnricher {
	if !cfg.Dividends.Enabled {
		return nil
	}
	return usecase.NewDividendEnricher(src, c, cfg.Cache.DividendTTL, cfg.Dividends.ProgressEvery, l, m)
}

// ProvideModel creates the ranking model backed by gradient-boosted trees.
func ProvideModel(cfg *config.Config, l *applogger.Logger, m repository.Metrics) *ranking.Model {
	mc := cfg.Model
	return ranking.NewModel(ranking.GBMFactory(ranking.GBMParams{
		Rounds:       mc.Rounds,
		Depth:        mc.Depth,
		LearningRate: mc.LearningRate,
		Lambda:       mc.Lambda,
		MaxBins:      mc.MaxBins,
		MinLeaf:      mc.MinLeaf,
		Subsample:    mc.Subsample,
		Seed:         mc.Seed,
	}), l, m)
}

// ProvideRecommendConfig maps selection thresholds.
func ProvideRecommendConfig(cfg *config.Config) usecase.RecommendConfig {
	s := cfg.Selection
	return usecase.RecommendConfig{
		MinProb:              s.MinProb,
		MaxCorrelation:       s.MaxCorrelation,
		TopN:                 s.TopN,
		StrictMaxCorrelation: s.StrictMaxCorrelation,
		StrictTopN:           s.StrictTopN,
		DividendMinYield:     s.DividendMinYield,
		DividendPool:         s.DividendPool,
		DividendTopN:         s.DividendTopN,
		ExportTopN:           s.ExportTopN,
		MaxVolatility:        s.MaxVolatility,
	}
}

// ProvideGeneratePipeline wires the feature-table build.
func ProvideGeneratePipeline(
	u *usecase.UniverseBuilder,
	f *usecase.PriceFetcher,
	e *features.Engine,
	d *usecase.DividendEnricher,
	store repository.FeatureStore,
	l *applogger.Logger,
	m repository.Metrics,
) *usecase.GeneratePipeline {
	return usecase.NewGeneratePipeline(u, f, e, d, store, l, m)
}

// ProvideRecommendPipeline wires ranking and selection.
func ProvideRecommendPipeline(
	store repository.FeatureStore,
	model *ranking.Model,
	pub repository.PickPublisher,
	rc usecase.RecommendConfig,
	l *applogger.Logger,
	m repository.Metrics,
) *usecase.RecommendPipeline {
	return usecase.NewRecommendPipeline(store, model, pub, rc, l, m)
}

// ProvidePipelines groups what the batch commands need.
func ProvidePipelines(
	cfg *config.Config,
	l *applogger.Logger,
	gen *usecase.GeneratePipeline,
	rec *usecase.RecommendPipeline,
) *Pipelines {
	return &Pipelines{Config: cfg, Logger: l, Generate: gen, Recommend: rec}
}

// ProvidePipelineHandler creates the HTTP handler.
func ProvidePipelineHandler(
	cfg *config.Config,
	l *applogger.Logger,
	gen *usecase.GeneratePipeline,
	rec *usecase.RecommendPipeline,
	store repository.FeatureStore,
	c cache.Service,
) *api.PipelineEchoHandler {
	return api.NewPipelineEchoHandler(l, rec, gen, store, c, cfg.Cache.LocalTTL, cfg.Cache.LockTTL)
}

// ProvideApp creates the serve application.
func ProvideApp(cfg *config.Config, l *applogger.Logger, h *api.PipelineEchoHandler) *server.App {
	return server.New(cfg, l, h)
}

// Pipelines is the batch-mode object graph.
type Pipelines struct {
	Config    *config.Config
	Logger    *applogger.Logger
	Generate  *usecase.GeneratePipeline
	Recommend *usecase.RecommendPipeline
}
