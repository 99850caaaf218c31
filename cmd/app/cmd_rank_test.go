package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"FinRank/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecommendations() *models.Recommendations {
	asOf := time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)
	return &models.Recommendations{
		RunID:    "run-1",
		AsOf:     asOf,
		Analyzed: 2,
		Lists: []models.PickList{{
			Name:  "top",
			Title: "Top 2 by probability",
			AsOf:  asOf,
			Picks: []models.Pick{{Ticker: "AAA", ProbBeatMarket: 0.7}, {Ticker: "BBB", ProbBeatMarket: 0.6}},
		}},
	}
}

func TestWriteRecommendationsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRecommendations(&buf, sampleRecommendations(), "json", "notty", 80))

	var got models.Recommendations
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
	require.Len(t, got.Lists, 1)
	assert.Equal(t, "BBB", got.Lists[0].Picks[1].Ticker)
	assert.Contains(t, buf.String(), "\n  \"run_id\"")
}

func TestWriteRecommendationsMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRecommendations(&buf, sampleRecommendations(), "md", "notty", 80))
	assert.Contains(t, buf.String(), "AAA")
	assert.Contains(t, buf.String(), "2024-06-28")
}

func TestRootRegistersCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"generate", "rank", "evaluate", "serve"} {
		assert.True(t, names[want], want)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}
