package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestCollectorAggregatesRepeatedWarnings(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.DebugLevel)
	pub := &capturePublisher{}
	l.AddCollector(&CollectionConfig{Topic: "diagnostics", Publisher: pub, CountThreshold: 10})

	for i := 0; i < 3; i++ {
		l.Warn("feature row skipped", String("reason", "computation_error"), Error(errors.New("bad")))
	}
	l.Info("not collected")
	l.RemoveCollector()

	require.Len(t, pub.batches, 1)
	assert.Equal(t, "diagnostics", pub.topic)
	require.Len(t, pub.batches[0], 1)
	assert.Equal(t, 3, pub.batches[0][0].Count)
	assert.Equal(t, "warn", pub.batches[0][0].Level)
	assert.Contains(t, buf.String(), "feature row skipped")
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{Publisher: pub, CountThreshold: 2})
	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")
	require.Len(t, pub.batches, 1)
	assert.Len(t, pub.batches[0], 2)
	c.Close()
	assert.Len(t, pub.batches, 1)
}
