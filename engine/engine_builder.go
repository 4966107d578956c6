package engine

import (
	"time"

	"github.com/Carmen-Shannon/disintegrate/engine/scene"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables profiler log output.
//
// Parameters:
//   - enabled: true to log profiler reports
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled.Store(enabled)
	}
}

// WithTickRate sets the engine tick rate in ticks per second.
//
// Parameters:
//   - fps: target ticks per second (defaults to 60 if <= 0)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60
		}
		e.engineTickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithHost sets the window Run pumps and resize events come from.
//
// Parameters:
//   - h: the host window
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithHost(h Host) EngineBuilderOption {
	return func(e *engine) {
		e.host = h
	}
}

// WithScene registers a scene at the given z-index key.
//
// Parameters:
//   - key: the z-index
//   - s: the scene
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithScene(key int, s scene.Scene) EngineBuilderOption {
	return func(e *engine) {
		e.scenes[key] = s
	}
}
