package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/Carmen-Shannon/disintegrate/common"
	"github.com/Carmen-Shannon/disintegrate/engine/effect"
	"github.com/Carmen-Shannon/disintegrate/engine/fragment"
	"github.com/Carmen-Shannon/disintegrate/engine/renderer/batcher"
	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("config: invalid effect config")

// Vec3 is a YAML-friendly vector.
type Vec3 struct {
	X float32 `yaml:"x"`
	Y float32 `yaml:"y"`
	Z float32 `yaml:"z"`
}

// Range is a closed [Min, Max] interval.
type Range struct {
	Min float32 `yaml:"min"`
	Max float32 `yaml:"max"`
}

// EffectConfig holds the disintegration tunables.
type EffectConfig struct {
	Speed         float32 `yaml:"speed"`
	Spread        float32 `yaml:"spread"`
	Drift         Vec3    `yaml:"drift"`
	Lifetime      Range   `yaml:"lifetime"`
	DelayFactor   float32 `yaml:"delayFactor"`
	DelayVariance Range   `yaml:"delayVariance"`
	Loop          bool    `yaml:"loop"`
	LoopDelay     float32 `yaml:"loopDelay"`

	// MaxInstancesPerCall must not exceed what the renderer accepts.
	MaxInstancesPerCall int `yaml:"maxInstancesPerCall"`

	// RestoreRenderer re-enables the intact mesh once the effect completes.
	RestoreRenderer bool `yaml:"restoreRenderer"`

	// Seed makes lifetimes and delays reproducible. 0 seeds from the clock.
	Seed uint64 `yaml:"seed"`
}

// DefaultEffectConfig returns the configuration used when no file is given.
func DefaultEffectConfig() *EffectConfig {
	p := effect.DefaultTriggerParams()
	return &EffectConfig{
		Speed:               p.Speed,
		Spread:              p.Spread,
		Drift:               Vec3{X: p.Drift[0], Y: p.Drift[1], Z: p.Drift[2]},
		Lifetime:            Range{Min: fragment.DefaultMinLifetime, Max: fragment.DefaultMaxLifetime},
		DelayFactor:         p.DelayFactor,
		DelayVariance:       Range{Min: p.DelayVarianceMin, Max: p.DelayVarianceMax},
		Loop:                p.Looped,
		LoopDelay:           p.LoopDelay,
		MaxInstancesPerCall: batcher.DefaultMaxInstances,
		RestoreRenderer:     true,
	}
}

// LoadEffectConfig reads and validates an effect config from a YAML file.
// Keys missing from the file keep their DefaultEffectConfig values.
//
// Parameters:
//   - path: the YAML file path
//
// Returns:
//   - *EffectConfig: the loaded configuration
//   - error: a read, parse or validation error
func LoadEffectConfig(path string) (*EffectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read effect config file %s: %w", path, err)
	}
	cfg, err := ParseEffectConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseEffectConfig decodes and validates an effect config from YAML bytes.
//
// Parameters:
//   - data: the YAML document
//
// Returns:
//   - *EffectConfig: the decoded configuration
//   - error: a parse or validation error
func ParseEffectConfig(data []byte) (*EffectConfig, error) {
	cfg := DefaultEffectConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse effect config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that would make decomposition or triggering panic.
//
// Returns:
//   - error: nil, or an error wrapping ErrInvalidConfig
func (c *EffectConfig) Validate() error {
	switch {
	case c.Lifetime.Min <= 0 || c.Lifetime.Max <= 0:
		return fmt.Errorf("%w: lifetime bounds must be positive, got [%v, %v]", ErrInvalidConfig, c.Lifetime.Min, c.Lifetime.Max)
	case c.Lifetime.Min > c.Lifetime.Max:
		return fmt.Errorf("%w: lifetime.min %v exceeds lifetime.max %v", ErrInvalidConfig, c.Lifetime.Min, c.Lifetime.Max)
	case c.DelayVariance.Min > c.DelayVariance.Max:
		return fmt.Errorf("%w: delayVariance.min %v exceeds delayVariance.max %v", ErrInvalidConfig, c.DelayVariance.Min, c.DelayVariance.Max)
	case c.LoopDelay < 0:
		return fmt.Errorf("%w: loopDelay cannot be negative, got %v", ErrInvalidConfig, c.LoopDelay)
	case c.MaxInstancesPerCall <= 0:
		return fmt.Errorf("%w: maxInstancesPerCall must be positive, got %d", ErrInvalidConfig, c.MaxInstancesPerCall)
	}
	return nil
}

// TriggerParams converts the config into effect trigger tunables.
func (c *EffectConfig) TriggerParams() effect.TriggerParams {
	return effect.TriggerParams{
		Speed:            c.Speed,
		Spread:           c.Spread,
		Drift:            mgl32.Vec3{c.Drift.X, c.Drift.Y, c.Drift.Z},
		DelayFactor:      c.DelayFactor,
		DelayVarianceMin: c.DelayVariance.Min,
		DelayVarianceMax: c.DelayVariance.Max,
		Looped:           c.Loop,
		LoopDelay:        c.LoopDelay,
	}
}

// Random returns a source seeded from Seed, or nil when Seed is 0 so callers fall back to
// a clock-seeded source.
func (c *EffectConfig) Random() common.Random {
	if c.Seed == 0 {
		return nil
	}
	return common.NewRandom(c.Seed)
}

// TriggerRandom returns the source for per-fragment delay variance. It is seeded apart
// from Random so delay jitter does not repeat the lifetime sequence. Nil when Seed is 0.
func (c *EffectConfig) TriggerRandom() common.Random {
	if c.Seed == 0 {
		return nil
	}
	return common.NewRandom(c.Seed + 1)
}

// FragmentOptions returns the decomposition options for this config.
func (c *EffectConfig) FragmentOptions() []fragment.DecomposeOption {
	opts := []fragment.DecomposeOption{fragment.WithLifetime(c.Lifetime.Min, c.Lifetime.Max)}
	if r := c.Random(); r != nil {
		opts = append(opts, fragment.WithRandom(r))
	}
	return opts
}
