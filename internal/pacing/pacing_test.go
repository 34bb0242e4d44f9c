package pacing_test

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popeskul/wa-dispatcher/internal/config"
	"github.com/popeskul/wa-dispatcher/internal/pacing"
)

// sequence replays fixed draws, cycling when exhausted.
type sequence struct {
	norms  []float64
	floats []float64
	ni, fi int
}

func (s *sequence) NormFloat64() float64 {
	v := s.norms[s.ni%len(s.norms)]
	s.ni++
	return v
}

func (s *sequence) Float64() float64 {
	v := s.floats[s.fi%len(s.floats)]
	s.fi++
	return v
}

func fixed(norm float64, floats ...float64) *sequence {
	if len(floats) == 0 {
		floats = []float64{0.99}
	}
	return &sequence{norms: []float64{norm}, floats: floats}
}

func TestEngine_WarmupMultiplier(t *testing.T) {
	e := pacing.NewEngine(pacing.DefaultConfig(), fixed(0))

	tests := []struct {
		index    int
		expected float64
	}{
		{0, 3.0}, {2, 3.0},
		{3, 2.0}, {5, 2.0},
		{6, 1.5}, {9, 1.5},
		{10, 1.0}, {11, 1.0}, {500, 1.0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, e.WarmupMultiplier(tt.index), "index %d", tt.index)
	}

	prev := e.WarmupMultiplier(0)
	for i := 1; i < 50; i++ {
		cur := e.WarmupMultiplier(i)
		assert.LessOrEqual(t, cur, prev, "multiplier must not increase at index %d", i)
		prev = cur
	}
}

func TestEngine_BaseDelay(t *testing.T) {
	tests := []struct {
		name     string
		norm     float64
		index    int
		expected time.Duration
	}{
		{name: "mean draw after warm-up", norm: 0, index: 10, expected: 8 * time.Second},
		{name: "one sigma", norm: 1, index: 20, expected: 11 * time.Second},
		{name: "negative sigma", norm: -0.5, index: 20, expected: 6500 * time.Millisecond},
		{name: "upper tail clamps", norm: 40, index: 20, expected: 11 * time.Second},
		{name: "lower tail clamps", norm: -40, index: 20, expected: 5 * time.Second},
		{name: "warm-up triples first messages", norm: 0, index: 0, expected: 24 * time.Second},
		{name: "warm-up clamps before scaling", norm: -40, index: 4, expected: 10 * time.Second},
		{name: "warm-up one and a half", norm: 40, index: 7, expected: 16500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := pacing.NewEngine(pacing.DefaultConfig(), fixed(tt.norm))
			assert.Equal(t, tt.expected, e.BaseDelay(tt.index))
		})
	}
}

func TestEngine_BaseDelay_BoundsHoldForAnyDraw(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	e := pacing.NewEngine(pacing.DefaultConfig(), rnd)

	for i := 0; i < 5000; i++ {
		index := i % 15
		m := e.WarmupMultiplier(index)
		d := e.BaseDelay(index)

		lower := time.Duration(float64(5*time.Second) * m)
		upper := time.Duration(float64(11*time.Second) * m)
		require.GreaterOrEqual(t, d, lower, "draw %d", i)
		require.LessOrEqual(t, d, upper, "draw %d", i)
	}
}

func TestEngine_BreakDelay(t *testing.T) {
	tests := []struct {
		name     string
		floats   []float64
		expected time.Duration
	}{
		{name: "no break", floats: []float64{0.9, 0.9}, expected: 0},
		{name: "long break only", floats: []float64{0.5, 0.05}, expected: 30 * time.Second},
		{name: "very long break only", floats: []float64{0.01, 0.5}, expected: 90 * time.Second},
		{name: "both breaks", floats: []float64{0.01, 0.01}, expected: 120 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := pacing.NewEngine(pacing.DefaultConfig(), fixed(0, tt.floats...))
			assert.Equal(t, tt.expected, e.BreakDelay())
		})
	}
}

func TestEngine_NextDelay_NeverBelowBase(t *testing.T) {
	e := pacing.NewEngine(pacing.DefaultConfig(), fixed(-40, 0.01, 0.01))
	assert.Equal(t, 5*time.Second+120*time.Second, e.NextDelay(30))

	e = pacing.NewEngine(pacing.DefaultConfig(), fixed(-40, 0.99, 0.99))
	assert.Equal(t, 5*time.Second, e.NextDelay(30))
}

func TestEngine_TypingDelay(t *testing.T) {
	e := pacing.NewEngine(pacing.DefaultConfig(), fixed(0))

	tests := []struct {
		name     string
		text     string
		expected time.Duration
	}{
		{name: "empty uses minimum", text: "", expected: 2 * time.Second},
		{name: "short clamps to minimum", text: "Oi!", expected: 2 * time.Second},
		{name: "proportional", text: strings.Repeat("a", 40), expected: 12 * time.Second},
		{name: "long clamps to maximum", text: strings.Repeat("a", 400), expected: 15 * time.Second},
		{name: "emoji count as one character", text: strings.Repeat("👍🏽", 20), expected: 6 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, e.TypingDelay(tt.text))
		})
	}
}

func TestVariationIndex(t *testing.T) {
	for i := 0; i < 200; i++ {
		for v := 1; v <= 4; v++ {
			assert.Equal(t, (i/5)%v, pacing.VariationIndex(i, v, 5))
			assert.Equal(t, pacing.VariationIndex((i/5)*5, v, 5), pacing.VariationIndex(i, v, 5),
				"recipients of one batch share a variation")
		}
	}

	expected := []int{0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 0, 0}
	for i, want := range expected {
		assert.Equal(t, want, pacing.VariationIndex(i, 2, 5), "recipient %d", i)
	}

	assert.Equal(t, 0, pacing.VariationIndex(7, 0, 5))
}

func TestEngine_IsBatchBoundary(t *testing.T) {
	e := pacing.NewEngine(pacing.DefaultConfig(), fixed(0))

	assert.False(t, e.IsBatchBoundary(0))
	assert.False(t, e.IsBatchBoundary(4))
	assert.True(t, e.IsBatchBoundary(5))
	assert.False(t, e.IsBatchBoundary(6))
	assert.True(t, e.IsBatchBoundary(10))
}

func TestPersonalize(t *testing.T) {
	assert.Equal(t, "Olá Ana, tudo bem?", pacing.Personalize("Olá {nome}, tudo bem?", "Ana"))
	assert.Equal(t, "Hi Bob and Bob", pacing.Personalize("Hi {name} and {nome}", "Bob"))
	assert.Equal(t, "no placeholder", pacing.Personalize("no placeholder", "Bob"))
}

func TestFromDispatchConfig(t *testing.T) {
	cfg := pacing.FromDispatchConfig(config.DispatchConfig{
		MeanDelayMs:          8000,
		StdDevDelayMs:        3000,
		MinDelayMs:           5000,
		MaxDelayMs:           11000,
		TypingCharsPerMinute: 200,
		MinTypingMs:          2000,
		MaxTypingMs:          15000,
		BatchSize:            5,
		LongBreakChance:      0.1,
		LongBreakMs:          1000,
	})

	assert.Equal(t, 8*time.Second, cfg.MeanDelay)
	assert.Equal(t, 5, cfg.BatchSize)
	assert.Equal(t, time.Second, cfg.LongBreak)
	assert.Equal(t, pacing.DefaultWarmup(), cfg.Warmup)
}

func TestRealClock_SleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := pacing.RealClock().Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
