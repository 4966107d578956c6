package material

import "sync"

// material is the implementation of the Material interface.
type material struct {
	mu          *sync.RWMutex
	name        string
	baseColor   [4]float32
	doubleSided bool
}

// Material defines the surface a mesh is drawn with. A disintegrating object draws its
// dormant fragments with its own source Material and its in-flight particles with a
// shared particle Material, so a Material is read concurrently by every live effect.
type Material interface {
	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// BaseColor retrieves the albedo RGBA color of the material.
	//
	// Returns:
	//   - [4]float32: the base color as RGBA values
	BaseColor() [4]float32

	// DoubleSided reports whether back faces should be drawn. Lone fragment triangles
	// expose their back faces once they leave the surface, so fragment materials
	// usually enable this.
	//
	// Returns:
	//   - bool: true if back-face culling should be disabled
	DoubleSided() bool

	// SetBaseColor replaces the albedo RGBA color.
	//
	// Parameters:
	//   - color: the new base color
	SetBaseColor(color [4]float32)

	// GPUParams packs the material into its uniform layout.
	//
	// Returns:
	//   - GPUMaterialParams: the GPU-aligned material parameters
	GPUParams() GPUMaterialParams
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided options.
// The default base color is opaque white.
//
// Parameters:
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		mu:        &sync.RWMutex{},
		baseColor: [4]float32{1, 1, 1, 1},
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *material) Name() string {
	return m.name
}

func (m *material) BaseColor() [4]float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.baseColor
}

func (m *material) DoubleSided() bool {
	return m.doubleSided
}

func (m *material) SetBaseColor(color [4]float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseColor = color
}

func (m *material) GPUParams() GPUMaterialParams {
	return GPUMaterialParams{BaseColor: m.BaseColor()}
}
