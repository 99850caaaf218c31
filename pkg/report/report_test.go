package report

import (
	"testing"
	"time"

	"FinRank/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdown(t *testing.T) {
	avg := 0.123
	half := 0.5
	recs := &models.Recommendations{
		RunID:     "run-1",
		AsOf:      time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Analyzed:  3,
		AboveHalf: 2,
		Above55:   1,
		Lists: []models.PickList{
			{Name: "top", Title: "Top 20", Picks: []models.Pick{
				{Ticker: "AAPL", ProbBeatMarket: 0.612, DividendYield: 0.0051, Momentum: 0.25, Volatility: 0.3},
			}},
			{Name: "diversified", Title: "Diversified", Diversified: true, Picks: []models.Pick{
				{Ticker: "KO", ProbBeatMarket: 0.55, DividendYield: 0.031, AvgCorrWithPicks: &avg},
			}},
			{Name: "strict", Title: "Strict", Diversified: true},
		},
		Correlations: models.CorrelationTable{
			Tickers: []string{"KO", "PEP"},
			Values:  [][]*float64{{nil, &half}, {&half, nil}},
		},
	}

	md, err := Markdown(recs)
	require.NoError(t, err)

	assert.Contains(t, md, "# Recommendations as of 2024-03-31")
	assert.Contains(t, md, "| 1 | AAPL | 61.2 | 0.51 | 25.0 | 30.0 |")
	assert.Contains(t, md, "| 1 | KO | 55.0 | 3.10 | 0.0 | 0.0 | 0.12 |")
	assert.Contains(t, md, "_No candidate passed the filters._")
	assert.Contains(t, md, "- Probability above 55%: 1")
	assert.Contains(t, md, "| KO | n/a | 0.50 |")
}

func TestMarkdownEmptyRun(t *testing.T) {
	md, err := Markdown(&models.Recommendations{})
	require.NoError(t, err)
	assert.Contains(t, md, "as of n/a")
	assert.NotContains(t, md, "Correlation of leading")
}

func TestTerminalPlain(t *testing.T) {
	out, err := Terminal("# Title\n\nbody", "notty", 80)
	require.NoError(t, err)
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "body")
}
