package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/disintegrate/engine/effect"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEffectConfigIsValid(t *testing.T) {
	cfg := DefaultEffectConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1023, cfg.MaxInstancesPerCall)
	assert.Equal(t, effect.DefaultTriggerParams(), cfg.TriggerParams())
	assert.Nil(t, cfg.Random())
	assert.Len(t, cfg.FragmentOptions(), 1)
}

func TestParseEffectConfigOverridesDefaults(t *testing.T) {
	data := []byte(`
speed: 3
drift: {x: 1, y: 0, z: -1}
lifetime: {min: 0.5, max: 0.75}
delayFactor: -0.25
loop: true
seed: 42
`)
	cfg, err := ParseEffectConfig(data)
	require.NoError(t, err)

	def := DefaultEffectConfig()
	assert.Equal(t, float32(3), cfg.Speed)
	assert.Equal(t, def.Spread, cfg.Spread)
	assert.Equal(t, Range{Min: 0.5, Max: 0.75}, cfg.Lifetime)
	assert.Equal(t, def.DelayVariance, cfg.DelayVariance)
	assert.True(t, cfg.Loop)
	assert.Equal(t, def.RestoreRenderer, cfg.RestoreRenderer)

	p := cfg.TriggerParams()
	assert.Equal(t, mgl32.Vec3{1, 0, -1}, p.Drift)
	assert.Equal(t, float32(-0.25), p.DelayFactor)
	assert.True(t, p.Looped)

	require.NotNil(t, cfg.Random())
	assert.Equal(t, cfg.Random().Range(0, 1), cfg.Random().Range(0, 1))
	assert.Len(t, cfg.FragmentOptions(), 2)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *EffectConfig)
	}{
		{name: "zero lifetime", mutate: func(c *EffectConfig) { c.Lifetime.Min = 0 }},
		{name: "negative lifetime max", mutate: func(c *EffectConfig) { c.Lifetime = Range{Min: 1, Max: -1} }},
		{name: "inverted lifetime", mutate: func(c *EffectConfig) { c.Lifetime = Range{Min: 2, Max: 1} }},
		{name: "inverted delay variance", mutate: func(c *EffectConfig) { c.DelayVariance = Range{Min: 1, Max: 0} }},
		{name: "negative loop delay", mutate: func(c *EffectConfig) { c.LoopDelay = -1 }},
		{name: "zero instance cap", mutate: func(c *EffectConfig) { c.MaxInstancesPerCall = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultEffectConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestParseEffectConfigErrors(t *testing.T) {
	_, err := ParseEffectConfig([]byte("lifetime: {min: 2, max: 1}"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ParseEffectConfig([]byte("speed: [not, a, number]"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadEffectConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "effect.yaml")
	require.NoError(t, os.WriteFile(path, []byte("spread: 2\nmaxInstancesPerCall: 512\n"), 0o644))

	cfg, err := LoadEffectConfig(path)
	require.NoError(t, err)
	assert.Equal(t, float32(2), cfg.Spread)
	assert.Equal(t, 512, cfg.MaxInstancesPerCall)

	_, err = LoadEffectConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTriggerRandomIsSeededApartFromLifetimes(t *testing.T) {
	cfg := DefaultEffectConfig()
	assert.Nil(t, cfg.TriggerRandom())

	cfg.Seed = 7
	sample := func(next func() float32) []float32 {
		out := make([]float32, 8)
		for i := range out {
			out[i] = next()
		}
		return out
	}
	lifetimes, delays, again := cfg.Random(), cfg.TriggerRandom(), cfg.TriggerRandom()

	delaySeq := sample(func() float32 { return delays.Range(0, 1) })
	assert.NotEqual(t, sample(func() float32 { return lifetimes.Range(0, 1) }), delaySeq)
	assert.Equal(t, delaySeq, sample(func() float32 { return again.Range(0, 1) }), "trigger stream is reproducible")
}
