package model

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIcosphereTriangleCount(t *testing.T) {
	tests := []struct {
		subdivisions int
		triangles    int
	}{
		{0, 20},
		{1, 80},
		{2, 320},
	}

	for _, tt := range tests {
		m := NewIcosphere(2, tt.subdivisions)
		assert.NotPanics(t, m.Validate)
		assert.Equal(t, tt.triangles, m.TriangleCount())
		assert.Equal(t, tt.triangles*3, m.VertexCount())
		for _, p := range m.Positions {
			assert.InDelta(t, 2, p.Len(), 1e-4)
		}
	}
}

func TestMeshValidate(t *testing.T) {
	tri := []mgl32.Vec3{{}, {1, 0, 0}, {0, 1, 0}}
	tests := []struct {
		name   string
		mesh   *Mesh
		panics bool
	}{
		{name: "quad", mesh: NewQuad(1)},
		{name: "empty", mesh: &Mesh{}},
		{name: "positions only", mesh: &Mesh{Positions: tri, Indices: []uint32{0, 1, 2}}},
		{name: "nil", mesh: nil, panics: true},
		{name: "short index buffer", mesh: &Mesh{Positions: tri, Indices: []uint32{0, 1, 2, 0}}, panics: true},
		{name: "index out of range", mesh: &Mesh{Positions: tri, Indices: []uint32{0, 1, 5}}, panics: true},
		{name: "uv mismatch", mesh: &Mesh{Positions: tri, UVs: []mgl32.Vec2{{}}, Indices: []uint32{0, 1, 2}}, panics: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.panics {
				assert.Panics(t, tt.mesh.Validate)
			} else {
				assert.NotPanics(t, tt.mesh.Validate)
			}
		})
	}
}

func TestMarshalMesh(t *testing.T) {
	q := NewQuad(2)
	vertexData, indexData := MarshalMesh(q)
	v := GPUVertex{}
	require.Len(t, vertexData, 4*v.Size())
	require.Len(t, indexData, 6*4)

	want := GPUVertex{Position: q.Positions[2], Normal: q.Normals[2], TexCoord: q.UVs[2]}
	assert.Equal(t, want.Marshal(), vertexData[2*32:3*32])
	assert.Equal(t, []byte{3, 0, 0, 0}, indexData[20:24])
}

func TestMarshalTransforms(t *testing.T) {
	a := mgl32.Translate3D(1, 2, 3)
	b := mgl32.Ident4()
	data := MarshalTransforms([]mgl32.Mat4{a, b})
	require.Len(t, data, 128)

	g := GPUModelData{Model: a}
	assert.Equal(t, g.Marshal(), data[:64])
}

func TestNewModelDefaults(t *testing.T) {
	m := NewModel(WithName("cube"), WithMesh(NewQuad(2)))
	require.NotNil(t, m.Material())
	assert.Equal(t, "cube", m.Material().Name())
	assert.InDelta(t, 1.41421, m.BoundingRadius(), 1e-4)
	assert.Panics(t, func() { NewModel() })
}
