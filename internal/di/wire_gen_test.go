package di

import (
	"path/filepath"
	"testing"

	"FinRank/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Log.Output = "stderr"
	cfg.Log.Level = "error"
	dir := t.TempDir()
	cfg.Store.FeaturesPath = filepath.Join(dir, "stock_features.csv")
	cfg.Store.PicksDir = dir
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestInitializePipelinesLocal(t *testing.T) {
	p, cleanup, err := InitializePipelines(localConfig(t))
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, p.Generate)
	assert.NotNil(t, p.Recommend)
	assert.NotNil(t, p.Logger)
}

func TestInitializeAppLocal(t *testing.T) {
	app, cleanup, err := InitializeApp(localConfig(t))
	require.NoError(t, err)
	defer cleanup()
	assert.NotNil(t, app.Server())
}

func TestProvidePickPublisherDisabled(t *testing.T) {
	cfg := config.Default()
	assert.Nil(t, ProvidePickPublisher(cfg, nil))

	p, cleanup, err := ProvideKafkaProducer(cfg)
	require.NoError(t, err)
	cleanup()
	assert.Nil(t, p)
}

func TestProvideDividendEnricherDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Dividends.Enabled = false
	assert.Nil(t, ProvideDividendEnricher(cfg, nil, nil, nil, nil))
}
