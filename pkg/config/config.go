package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"FinRank/pkg/logger"
	"FinRank/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrConfiguration wraps every validation failure.
var ErrConfiguration = errors.New("invalid configuration")

type Config struct {
	Environment string        `yaml:"environment" default:"development" validate:"required"`
	Log         logger.Config `yaml:"log"`

	Universe   UniverseConfig   `yaml:"universe"`
	Prices     PricesConfig     `yaml:"prices"`
	Features   FeaturesConfig   `yaml:"features"`
	Model      ModelConfig      `yaml:"model"`
	Selection  SelectionConfig  `yaml:"selection"`
	Dividends  DividendsConfig  `yaml:"dividends"`
	Store      StoreConfig      `yaml:"store"`
	Cache      CacheConfig      `yaml:"cache"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Alpaca     AlpacaConfig     `yaml:"alpaca"`
	Server     ServerConfig     `yaml:"server"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type UniverseConfig struct {
	ETFs        []string      `yaml:"etfs" validate:"required,min=1,dive,required"`
	CashTicker  string        `yaml:"cash_ticker" default:"DX-Y.NYB" validate:"required"`
	HoldingsURL string        `yaml:"holdings_url" default:"https://www.zacks.com/funds/etf/%s/holding" validate:"required"`
	UserAgent   string        `yaml:"user_agent"`
	Timeout     time.Duration `yaml:"timeout" default:"30s"`
}

type PricesConfig struct {
	Provider          string        `yaml:"provider" default:"yahoo" validate:"oneof=yahoo alpaca"`
	BaseURL           string        `yaml:"base_url" default:"https://query1.finance.yahoo.com"`
	Period            string        `yaml:"period" default:"5y" validate:"required"`
	Interval          string        `yaml:"interval" default:"1d" validate:"oneof=1d 1wk 1mo"`
	BatchSize         int           `yaml:"batch_size" default:"30" validate:"gte=1"`
	BatchDelay        time.Duration `yaml:"batch_delay" default:"2s" validate:"gte=0"`
	RetryCooldown     time.Duration `yaml:"retry_cooldown" default:"10s" validate:"gte=0"`
	MinObservations   int           `yaml:"min_observations" default:"250" validate:"gte=1"`
	RequestsPerSecond float64       `yaml:"requests_per_second" default:"5" validate:"gt=0"`
	Burst             int           `yaml:"burst" default:"5" validate:"gte=1"`
	Timeout           time.Duration `yaml:"timeout" default:"20s"`
	Breaker           BreakerConfig `yaml:"breaker"`
}

type BreakerConfig struct {
	ConsecutiveFailures uint32        `yaml:"consecutive_failures" default:"5" validate:"gte=1"`
	OpenTimeout         time.Duration `yaml:"open_timeout" default:"30s"`
	Interval            time.Duration `yaml:"interval" default:"60s"`
}

type FeaturesConfig struct {
	LookbackMonths int     `yaml:"lookback_months" default:"6" validate:"gte=1"`
	ForwardMonths  int     `yaml:"forward_months" default:"3" validate:"gte=1"`
	MinLookbackObs int     `yaml:"min_lookback_obs" default:"20" validate:"gte=2"`
	Epsilon        float64 `yaml:"epsilon" default:"0.000001" validate:"gt=0"`
}

type ModelConfig struct {
	Rounds        int     `yaml:"rounds" default:"200" validate:"gte=1"`
	Depth         int     `yaml:"depth" default:"4" validate:"gte=1,lte=12"`
	LearningRate  float64 `yaml:"learning_rate" default:"0.05" validate:"gt=0,lte=1"`
	Lambda        float64 `yaml:"lambda" default:"3" validate:"gte=0"`
	MaxBins       int     `yaml:"max_bins" default:"64" validate:"gte=2,lte=255"`
	MinLeaf       int     `yaml:"min_leaf" default:"1" validate:"gte=1"`
	Subsample     float64 `yaml:"subsample" default:"0.8" validate:"gt=0,lte=1"`
	Seed          int64   `yaml:"seed" default:"42"`
	TrainFraction float64 `yaml:"train_fraction" default:"0.7" validate:"gt=0,lt=1"`
}

type SelectionConfig struct {
	MinProb              float64 `yaml:"min_prob" default:"0.5" validate:"gte=0,lte=1"`
	MaxCorrelation       float64 `yaml:"max_correlation" default:"0.5" validate:"gte=0,lte=1"`
	TopN                 int     `yaml:"top_n" default:"20" validate:"gte=1"`
	StrictMaxCorrelation float64 `yaml:"strict_max_correlation" default:"0.3" validate:"gte=0,lte=1"`
	StrictTopN           int     `yaml:"strict_top_n" default:"15" validate:"gte=1"`
	DividendMinYield     float64 `yaml:"dividend_min_yield" default:"0.02" validate:"gte=0"`
	DividendPool         int     `yaml:"dividend_pool" default:"50" validate:"gte=1"`
	DividendTopN         int     `yaml:"dividend_top_n" default:"15" validate:"gte=1"`
	ExportTopN           int     `yaml:"export_top_n" default:"50" validate:"gte=1"`
	MaxVolatility        float64 `yaml:"max_volatility" default:"1" validate:"gt=0"`
}

type DividendsConfig struct {
	Enabled       bool `yaml:"enabled" default:"true"`
	ProgressEvery int  `yaml:"progress_every" default:"100" validate:"gte=1"`
}

type StoreConfig struct {
	Backend      string `yaml:"backend" default:"csv" validate:"oneof=csv clickhouse postgres"`
	FeaturesPath string `yaml:"features_path" default:"stock_features.csv" validate:"required"`
	PicksDir     string `yaml:"picks_dir" default:"." validate:"required"`
}

type CacheConfig struct {
	Backend     string        `yaml:"backend" default:"memory" validate:"oneof=memory redis layered"`
	HoldingsTTL time.Duration `yaml:"holdings_ttl" default:"24h"`
	DividendTTL time.Duration `yaml:"dividend_ttl" default:"24h"`
	LocalTTL    time.Duration `yaml:"local_ttl" default:"5m"`
	LockTTL     time.Duration `yaml:"lock_ttl" default:"2h"`
	MaxEntries  int           `yaml:"max_entries" default:"10000" validate:"gte=1"`
	Redis       struct {
		Addr     string `yaml:"addr" default:"localhost:6379"`
		PoolSize int    `yaml:"pool_size" default:"10"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"finrank"`
	} `yaml:"redis"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"finrank"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
}

type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" default:"5"`
	MaxIdleConns    int           `yaml:"max_idle_conns" default:"2"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"30m"`
	QueryTimeout    time.Duration `yaml:"query_timeout" default:"30s"`
}

type KafkaConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Brokers         []string      `yaml:"brokers"`
	PicksTopic      string        `yaml:"picks_topic" default:"finrank.picks"`
	LogsTopic       string        `yaml:"logs_topic" default:"finrank.logs"`
	RequiredAcks    int           `yaml:"required_acks" default:"-1"`
	Compression     string        `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
	MaxAttempts     int           `yaml:"max_attempts" default:"3"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	AutoCreateTopic bool          `yaml:"auto_create_topic"`
}

type AlpacaConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	Feed      string `yaml:"feed" default:"iex"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	CORS            bool          `yaml:"cors" default:"true"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

var validate = validator.New()

// Default returns a configuration populated from `default` tags only.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	c.Universe.ETFs = []string{"SPY", "MDY", "SPSM"}
	return &c
}

// Load reads and parses a YAML configuration file. An empty path yields the
// defaults. Fields absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadWithEnv loads .env (if present), then the YAML file, then applies
// environment overrides and validates the result.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FINRANK_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("ETFS"); v != "" {
		c.Universe.ETFs = util.SplitList(v)
	}
	if v := os.Getenv("PRICE_PROVIDER"); v != "" {
		c.Prices.Provider = v
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("BATCH_SIZE"); v != "" {
		c.Prices.BatchSize = util.ParseIntDefault(v, c.Prices.BatchSize)
	}
	if v := os.Getenv("MAX_CORRELATION"); v != "" {
		c.Selection.MaxCorrelation = util.ParseFloatDefault(v, c.Selection.MaxCorrelation)
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		c.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		c.Alpaca.APISecret = v
	}
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	switch c.Store.Backend {
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("%w: clickhouse.host is required when store.backend=clickhouse", ErrConfiguration)
		}
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("%w: postgres.dsn is required when store.backend=postgres", ErrConfiguration)
		}
	}
	if c.Prices.Provider == "alpaca" && (c.Alpaca.APIKey == "" || c.Alpaca.APISecret == "") {
		return fmt.Errorf("%w: alpaca.api_key and alpaca.api_secret are required when prices.provider=alpaca", ErrConfiguration)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("%w: kafka.brokers cannot be empty when kafka.enabled", ErrConfiguration)
	}
	if c.Selection.StrictMaxCorrelation > c.Selection.MaxCorrelation {
		return fmt.Errorf("%w: selection.strict_max_correlation must not exceed selection.max_correlation", ErrConfiguration)
	}
	return nil
}
