package batcher

import (
	"github.com/Carmen-Shannon/disintegrate/engine/model"
	"github.com/Carmen-Shannon/disintegrate/engine/renderer/material"
)

// BatcherBuilderOption is a functional option for configuring a batcher.
type BatcherBuilderOption func(b *batcher)

// WithMaxInstances sets the instanced chunk size. It should match the renderer's
// MaxInstancesPerCall.
//
// Parameters:
//   - n: the maximum instances per instanced draw
//
// Returns:
//   - BatcherBuilderOption: option function to apply
func WithMaxInstances(n int) BatcherBuilderOption {
	return func(b *batcher) {
		b.maxInstances = n
	}
}

// WithParticleMesh sets the geometry drawn for every active fragment.
//
// Parameters:
//   - mesh: the particle geometry
//
// Returns:
//   - BatcherBuilderOption: option function to apply
func WithParticleMesh(mesh *model.Mesh) BatcherBuilderOption {
	return func(b *batcher) {
		b.particleMesh = mesh
	}
}

// WithParticleMaterial sets the material drawn for every active fragment.
//
// Parameters:
//   - mat: the particle material
//
// Returns:
//   - BatcherBuilderOption: option function to apply
func WithParticleMaterial(mat material.Material) BatcherBuilderOption {
	return func(b *batcher) {
		b.particleMaterial = mat
	}
}
