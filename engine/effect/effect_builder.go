package effect

import (
	"github.com/Carmen-Shannon/disintegrate/common"
	"github.com/Carmen-Shannon/disintegrate/engine/camera"
	"github.com/Carmen-Shannon/disintegrate/engine/renderer/batcher"
	"github.com/Carmen-Shannon/disintegrate/engine/renderer/material"
)

// EffectBuilderOption is a functional option for configuring an effect.
type EffectBuilderOption func(e *effect)

// WithTriggerParams sets the trigger tunables. Defaults to DefaultTriggerParams.
//
// Parameters:
//   - params: the tunables
//
// Returns:
//   - EffectBuilderOption: option function to apply
func WithTriggerParams(params TriggerParams) EffectBuilderOption {
	return func(e *effect) {
		e.params = params
	}
}

// WithRandom sets the random source used for delay variance.
//
// Parameters:
//   - r: the random source
//
// Returns:
//   - EffectBuilderOption: option function to apply
func WithRandom(r common.Random) EffectBuilderOption {
	return func(e *effect) {
		e.random = r
	}
}

// WithTransform sets the object whose live position and rotation place the fragments.
// Without it the fragments are placed at the origin with no rotation.
//
// Parameters:
//   - t: the object transform
//
// Returns:
//   - EffectBuilderOption: option function to apply
func WithTransform(t Transform) EffectBuilderOption {
	return func(e *effect) {
		e.transform = t
	}
}

// WithSourceMaterial sets the material dormant fragments are drawn with.
//
// Parameters:
//   - mat: the source object's material
//
// Returns:
//   - EffectBuilderOption: option function to apply
func WithSourceMaterial(mat material.Material) EffectBuilderOption {
	return func(e *effect) {
		e.material = mat
	}
}

// WithCamera sets the camera active fragments face and draws are submitted for.
//
// Parameters:
//   - cam: the viewing camera
//
// Returns:
//   - EffectBuilderOption: option function to apply
func WithCamera(cam camera.Camera) EffectBuilderOption {
	return func(e *effect) {
		e.camera = cam
	}
}

// WithBatcher sets the batcher draws are collected in.
//
// Parameters:
//   - b: the batcher
//
// Returns:
//   - EffectBuilderOption: option function to apply
func WithBatcher(b batcher.Batcher) EffectBuilderOption {
	return func(e *effect) {
		e.batcher = b
	}
}

// WithOnComplete sets the completion callback.
//
// Parameters:
//   - fn: the callback fired once when the effect finishes
//
// Returns:
//   - EffectBuilderOption: option function to apply
func WithOnComplete(fn func()) EffectBuilderOption {
	return func(e *effect) {
		e.onComplete = fn
	}
}
