// Package pacing computes human-like send cadence: inter-message delays,
// warm-up slowdown, typing simulation and per-batch variation rotation.
package pacing

import (
	"math"
	"strings"
	"time"

	"github.com/rivo/uniseg"

	"github.com/popeskul/wa-dispatcher/internal/config"
)

// RandomSource is the randomness used by the engine. *rand.Rand from
// math/rand/v2 satisfies it.
type RandomSource interface {
	Float64() float64
	NormFloat64() float64
}

// WarmupStep applies Multiplier to every message index below Until.
type WarmupStep struct {
	Until      int
	Multiplier float64
}

// Config is the immutable pacing tuning.
type Config struct {
	MeanDelay   time.Duration
	StdDevDelay time.Duration
	MinDelay    time.Duration
	MaxDelay    time.Duration

	// Steps must be ordered by Until.
	Warmup []WarmupStep

	TypingCharsPerMinute int
	MinTyping            time.Duration
	MaxTyping            time.Duration

	BatchSize int

	LongBreakChance     float64
	LongBreak           time.Duration
	VeryLongBreakChance float64
	VeryLongBreak       time.Duration
}

// DefaultWarmup slows the first ten messages of a campaign.
func DefaultWarmup() []WarmupStep {
	return []WarmupStep{
		{Until: 3, Multiplier: 3.0},
		{Until: 6, Multiplier: 2.0},
		{Until: 10, Multiplier: 1.5},
	}
}

// DefaultConfig returns production pacing values.
func DefaultConfig() Config {
	return Config{
		MeanDelay:            8 * time.Second,
		StdDevDelay:          3 * time.Second,
		MinDelay:             5 * time.Second,
		MaxDelay:             11 * time.Second,
		Warmup:               DefaultWarmup(),
		TypingCharsPerMinute: 200,
		MinTyping:            2 * time.Second,
		MaxTyping:            15 * time.Second,
		BatchSize:            5,
		LongBreakChance:      0.10,
		LongBreak:            30 * time.Second,
		VeryLongBreakChance:  0.05,
		VeryLongBreak:        90 * time.Second,
	}
}

// FromDispatchConfig converts loaded configuration into pacing values.
func FromDispatchConfig(c config.DispatchConfig) Config {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return Config{
		MeanDelay:            ms(c.MeanDelayMs),
		StdDevDelay:          ms(c.StdDevDelayMs),
		MinDelay:             ms(c.MinDelayMs),
		MaxDelay:             ms(c.MaxDelayMs),
		Warmup:               DefaultWarmup(),
		TypingCharsPerMinute: c.TypingCharsPerMinute,
		MinTyping:            ms(c.MinTypingMs),
		MaxTyping:            ms(c.MaxTypingMs),
		BatchSize:            c.BatchSize,
		LongBreakChance:      c.LongBreakChance,
		LongBreak:            ms(c.LongBreakMs),
		VeryLongBreakChance:  c.VeryLongBreakChance,
		VeryLongBreak:        ms(c.VeryLongBreakMs),
	}
}

// Engine computes delays from a Config and a RandomSource.
type Engine struct {
	cfg Config
	rnd RandomSource
}

func NewEngine(cfg Config, rnd RandomSource) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	return &Engine{cfg: cfg, rnd: rnd}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// WarmupMultiplier returns the slowdown applied to the message at index i.
func (e *Engine) WarmupMultiplier(i int) float64 {
	for _, step := range e.cfg.Warmup {
		if i < step.Until {
			return step.Multiplier
		}
	}
	return 1.0
}

// BaseDelay draws a normally distributed delay clamped to [MinDelay, MaxDelay]
// and scales it by the warm-up multiplier of index i.
func (e *Engine) BaseDelay(i int) time.Duration {
	mean := float64(e.cfg.MeanDelay)
	sd := float64(e.cfg.StdDevDelay)
	d := mean + e.rnd.NormFloat64()*sd
	if math.IsNaN(d) {
		d = mean
	}
	d = math.Max(float64(e.cfg.MinDelay), math.Min(float64(e.cfg.MaxDelay), d))
	scaled := time.Duration(d * e.WarmupMultiplier(i))
	return scaled.Round(time.Millisecond)
}

// BreakDelay samples the occasional long pauses. The result is added on top
// of the base delay, never subtracted from it.
func (e *Engine) BreakDelay() time.Duration {
	var extra time.Duration
	if e.cfg.VeryLongBreakChance > 0 && e.rnd.Float64() < e.cfg.VeryLongBreakChance {
		extra += e.cfg.VeryLongBreak
	}
	if e.cfg.LongBreakChance > 0 && e.rnd.Float64() < e.cfg.LongBreakChance {
		extra += e.cfg.LongBreak
	}
	return extra
}

// NextDelay is the full wait after the message at index i.
func (e *Engine) NextDelay(i int) time.Duration {
	return e.BaseDelay(i) + e.BreakDelay()
}

// TypingDelay is the composing hint for text, proportional to its length at
// TypingCharsPerMinute and clamped to [MinTyping, MaxTyping].
func (e *Engine) TypingDelay(text string) time.Duration {
	text = strings.TrimSpace(text)
	if text == "" || e.cfg.TypingCharsPerMinute <= 0 {
		return e.cfg.MinTyping
	}
	chars := uniseg.GraphemeClusterCount(text)
	d := time.Duration(float64(chars) / float64(e.cfg.TypingCharsPerMinute) * float64(time.Minute))
	if d < e.cfg.MinTyping {
		return e.cfg.MinTyping
	}
	if d > e.cfg.MaxTyping {
		return e.cfg.MaxTyping
	}
	return d.Round(time.Millisecond)
}

// VariationIndex selects the variation for recipient i using the engine batch size.
func (e *Engine) VariationIndex(i, variations int) int {
	return VariationIndex(i, variations, e.cfg.BatchSize)
}

// IsBatchBoundary reports whether recipient i starts a new batch after the first.
func (e *Engine) IsBatchBoundary(i int) bool {
	return i > 0 && i%e.cfg.BatchSize == 0
}

// VariationIndex rotates variations per batch: floor(i / batchSize) mod variations.
func VariationIndex(i, variations, batchSize int) int {
	if variations <= 0 || i < 0 {
		return 0
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return (i / batchSize) % variations
}

var namePlaceholders = []string{"{nome}", "{name}"}

// Personalize substitutes the recipient name into the message template.
func Personalize(template, name string) string {
	out := template
	for _, p := range namePlaceholders {
		out = strings.ReplaceAll(out, p, name)
	}
	return out
}
