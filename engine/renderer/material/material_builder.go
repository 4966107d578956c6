package material

// MaterialBuilderOption is a functional option for configuring a Material via NewMaterial.
type MaterialBuilderOption func(*material)

// WithName sets the identifier of the Material.
//
// Parameters:
//   - name: the material identifier
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.name = name
	}
}

// WithBaseColor sets the albedo RGBA color of the Material.
//
// Parameters:
//   - color: the base color as RGBA values in [0, 1]
//
// Returns:
//   - MaterialBuilderOption: a function that applies the base color option to a material
func WithBaseColor(color [4]float32) MaterialBuilderOption {
	return func(m *material) {
		m.baseColor = color
	}
}

// WithDoubleSided disables back-face culling for meshes drawn with this Material.
//
// Parameters:
//   - doubleSided: true to draw both faces
//
// Returns:
//   - MaterialBuilderOption: a function that applies the double-sided option to a material
func WithDoubleSided(doubleSided bool) MaterialBuilderOption {
	return func(m *material) {
		m.doubleSided = doubleSided
	}
}
