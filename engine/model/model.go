package model

import (
	"math"

	"github.com/Carmen-Shannon/disintegrate/engine/renderer/material"
)

// model is the implementation of the Model interface.
type model struct {
	name           string
	mesh           *Mesh
	material       material.Material
	boundingRadius float32
}

// Model defines the interface for a renderable mesh paired with the material it is drawn with.
// A Model is the source shape an effect decomposes; its mesh is shared and never mutated.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Mesh retrieves the triangle mesh backing this model.
	//
	// Returns:
	//   - *Mesh: the mesh
	Mesh() *Mesh

	// Material retrieves the material the intact model is drawn with.
	//
	// Returns:
	//   - material.Material: the material, never nil
	Material() material.Material

	// SetMaterial replaces the model's material.
	//
	// Parameters:
	//   - mat: the material to use
	SetMaterial(mat material.Material)

	// BoundingRadius returns the bounding sphere radius for this model, measured as
	// the maximum vertex distance from the origin.
	//
	// Returns:
	//   - float32: the bounding radius
	BoundingRadius() float32
}

var _ Model = &model{}

// NewModel creates a new Model configured by the given options.
// A model without an explicit material gets a default white one. The mesh is validated
// and NewModel panics when it is structurally malformed.
//
// Parameters:
//   - options: functional options applied to the model
//
// Returns:
//   - Model: the constructed model
func NewModel(options ...ModelBuilderOption) Model {
	m := &model{}
	for _, opt := range options {
		opt(m)
	}
	if m.mesh == nil {
		panic("model: NewModel requires a mesh")
	}
	m.mesh.Validate()
	if m.material == nil {
		m.material = material.NewMaterial(material.WithName(m.name))
	}
	if m.boundingRadius == 0 {
		m.boundingRadius = ComputeBoundingRadius(m.mesh)
	}
	return m
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Mesh() *Mesh {
	return m.mesh
}

func (m *model) Material() material.Material {
	return m.material
}

func (m *model) SetMaterial(mat material.Material) {
	if mat == nil {
		panic("model: SetMaterial called with nil material")
	}
	m.material = mat
}

func (m *model) BoundingRadius() float32 {
	return m.boundingRadius
}

// ComputeBoundingRadius calculates the bounding sphere radius of a mesh. The radius is
// the maximum distance from the origin across all vertex positions.
//
// Parameters:
//   - mesh: the mesh to measure
//
// Returns:
//   - float32: the maximum distance from the origin
func ComputeBoundingRadius(mesh *Mesh) float32 {
	var maxDistSq float32
	for _, p := range mesh.Positions {
		distSq := p[0]*p[0] + p[1]*p[1] + p[2]*p[2]
		if distSq > maxDistSq {
			maxDistSq = distSq
		}
	}
	return float32(math.Sqrt(float64(maxDistSq)))
}
