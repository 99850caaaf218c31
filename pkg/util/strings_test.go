package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunk(t *testing.T) {
	got := Chunk([]string{"A", "B", "C", "D", "E"}, 2)
	assert.Equal(t, [][]string{{"A", "B"}, {"C", "D"}, {"E"}}, got)
	assert.Nil(t, Chunk([]string{}, 3))
	assert.Nil(t, Chunk([]string{"A"}, 0))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"SPY", "MDY"}, SplitList(" SPY, ,MDY "))
}

func TestParseDefaults(t *testing.T) {
	assert.Equal(t, 7, ParseIntDefault("x", 7))
	assert.Equal(t, 3, ParseIntDefault("3", 7))
	assert.InDelta(t, 0.25, ParseFloatDefault("0.25", 1), 1e-12)
	assert.InDelta(t, 1.0, ParseFloatDefault("", 1), 1e-12)
}
