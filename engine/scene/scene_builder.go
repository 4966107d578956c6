package scene

import (
	"github.com/Carmen-Shannon/disintegrate/engine/config"
	"github.com/Carmen-Shannon/disintegrate/engine/game_object"
	"github.com/Carmen-Shannon/disintegrate/engine/model"
	"github.com/Carmen-Shannon/disintegrate/engine/renderer/material"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithActive sets whether the scene is active for rendering. Scenes start active.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithObjects adds initial objects to the scene.
// Objects without IDs will be assigned new IDs.
//
// Parameters:
//   - objects: the objects to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithObjects(objects ...game_object.GameObject) SceneBuilderOption {
	return func(s *scene) {
		for _, obj := range objects {
			s.addLocked(obj)
		}
	}
}

// WithSimulateWorkers sets the number of worker goroutines that simulate effects during
// Update. Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithSimulateWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		if n < 1 {
			n = 1
		}
		s.simulateWorkers = n
	}
}

// WithParticleMesh sets the shape every in-flight fragment is drawn as.
// Defaults to a small quad.
//
// Parameters:
//   - mesh: the particle geometry
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithParticleMesh(mesh *model.Mesh) SceneBuilderOption {
	return func(s *scene) {
		s.particleMesh = mesh
	}
}

// WithParticleMaterial sets the material every in-flight fragment is drawn with.
//
// Parameters:
//   - mat: the particle material
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithParticleMaterial(mat material.Material) SceneBuilderOption {
	return func(s *scene) {
		s.particleMaterial = mat
	}
}

// WithDefaultEffectConfig sets the config Disintegrate uses when given nil.
//
// Parameters:
//   - cfg: the default effect config
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithDefaultEffectConfig(cfg *config.EffectConfig) SceneBuilderOption {
	return func(s *scene) {
		if cfg != nil {
			s.defaultConfig = cfg
		}
	}
}
