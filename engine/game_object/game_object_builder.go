package game_object

import (
	"github.com/Carmen-Shannon/disintegrate/common"
	"github.com/Carmen-Shannon/disintegrate/engine/fragment"
	"github.com/Carmen-Shannon/disintegrate/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// GameObjectBuilderOption is a functional option for configuring a GameObject during construction.
type GameObjectBuilderOption func(*gameObject)

// WithID sets the ID of the GameObject.
//
// Parameters:
//   - id: unique identifier for the GameObject
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the ID
func WithID(id uint64) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.id = id
	}
}

// WithEnabled sets whether the intact mesh is drawn.
//
// Parameters:
//   - enabled: true to draw the object
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the Enabled state
func WithEnabled(enabled bool) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.enabled.Store(enabled)
	}
}

// WithModel sets the Model of the GameObject.
//
// Parameters:
//   - m: the model to draw and decompose
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the Model
func WithModel(m model.Model) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.mdl = m
	}
}

// WithPosition sets the initial world-space position.
//
// Parameters:
//   - pos: the position
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the position
func WithPosition(pos mgl32.Vec3) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.position = pos
	}
}

// WithRotation sets the initial world-space orientation.
//
// Parameters:
//   - rot: the orientation; normalized on assignment
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the rotation
func WithRotation(rot mgl32.Quat) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.rotation = rot.Normalize()
	}
}

// WithSpin makes the object rotate continuously in Update.
//
// Parameters:
//   - axis: the rotation axis
//   - radiansPerSecond: the angular rate
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the spin
func WithSpin(axis mgl32.Vec3, radiansPerSecond float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.spinAxis = common.SafeNormalize(axis)
		obj.spinRate = radiansPerSecond
	}
}

// WithFragmentOptions sets the options used when the object is first decomposed.
//
// Parameters:
//   - opts: decomposition options such as fragment.WithLifetime
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the decomposition options
func WithFragmentOptions(opts ...fragment.DecomposeOption) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.fragmentOptions = opts
	}
}
