package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClaude_KnownModel(t *testing.T) {
	c := NewCalculator(DefaultRates())

	// 1M input + 1M output at haiku rates.
	got := c.Claude("claude-haiku-4-5-20251001", 1_000_000, 1_000_000, 0, 0)
	assert.InDelta(t, 0.80+4.00, got, 0.0001)
}

func TestClaude_UnknownModel(t *testing.T) {
	c := NewCalculator(DefaultRates())
	assert.Zero(t, c.Claude("no-such-model", 1_000_000, 0, 0, 0))
}

func TestClaude_CacheMultipliers(t *testing.T) {
	c := NewCalculator(DefaultRates())

	got := c.Claude("claude-haiku-4-5-20251001", 0, 0, 1_000_000, 1_000_000)
	assert.InDelta(t, 0.80*1.25+0.80*0.1, got, 0.0001)
}

func TestEmbedding(t *testing.T) {
	c := NewCalculator(DefaultRates())
	assert.InDelta(t, 0.02, c.Embedding(1_000_000), 0.0001)
	assert.Zero(t, c.Embedding(0))
}

func TestReviews(t *testing.T) {
	c := NewCalculator(DefaultRates())
	assert.InDelta(t, 0.10, c.Reviews(1000), 0.0001)
	assert.InDelta(t, 0.05, c.Reviews(500), 0.0001)
}
