package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"FinRank/internal/domain/models"
	pkgkafka "FinRank/pkg/kafka"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs []kafka.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestKafkaPickPublisher(t *testing.T) {
	w := &captureWriter{}
	pub := NewKafkaPickPublisher(pkgkafka.NewProducerWithWriter(w, "gzip"), "finrank.picks")
	asOf := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	err := pub.PublishPicks(context.Background(), "run-9", models.PickList{
		Name: "diversified",
		AsOf: asOf,
		Picks: []models.Pick{
			{Ticker: "AAPL", ProbBeatMarket: 0.7},
			{Ticker: "KO", ProbBeatMarket: 0.6, DividendYield: 0.03},
		},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)

	assert.Equal(t, "finrank.picks", w.msgs[1].Topic)
	assert.Equal(t, "KO", string(w.msgs[1].Key))
	assert.Equal(t, "run-9", string(w.msgs[1].Headers[0].Value))

	var ev PickEvent
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &ev))
	assert.Equal(t, 2, ev.Rank)
	assert.Equal(t, "diversified", ev.List)
	assert.Equal(t, "KO", ev.Ticker)
	assert.Equal(t, 0.03, ev.DividendYield)
	assert.True(t, asOf.Equal(ev.AsOf))
}
