package model

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Mesh is an indexed triangle list in the owning object's local space.
// Indices are consumed three at a time; UVs and Normals are either empty or parallel to Positions.
type Mesh struct {
	// Positions are the vertex positions.
	Positions []mgl32.Vec3

	// UVs are the per-vertex texture coordinates (optional).
	UVs []mgl32.Vec2

	// Normals are the per-vertex normals (optional).
	Normals []mgl32.Vec3

	// Indices is the triangle index buffer. Its length must be a multiple of 3.
	Indices []uint32
}

// TriangleCount returns the number of triangles described by the index buffer.
//
// Returns:
//   - int: len(Indices) / 3
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// VertexCount returns the number of vertices in the mesh.
//
// Returns:
//   - int: len(Positions)
func (m *Mesh) VertexCount() int {
	return len(m.Positions)
}

// Validate checks the mesh's structural preconditions and panics on the first breach:
// an index buffer whose length is not a multiple of 3, an index past the vertex arrays,
// or a UV/normal array whose length disagrees with the position array.
func (m *Mesh) Validate() {
	if m == nil {
		panic("model: nil Mesh")
	}
	if len(m.Indices)%3 != 0 {
		panic(fmt.Sprintf("model: index buffer length %d is not a multiple of 3", len(m.Indices)))
	}
	if len(m.UVs) != 0 && len(m.UVs) != len(m.Positions) {
		panic(fmt.Sprintf("model: %d UVs for %d positions", len(m.UVs), len(m.Positions)))
	}
	if len(m.Normals) != 0 && len(m.Normals) != len(m.Positions) {
		panic(fmt.Sprintf("model: %d normals for %d positions", len(m.Normals), len(m.Positions)))
	}
	for i, idx := range m.Indices {
		if int(idx) >= len(m.Positions) {
			panic(fmt.Sprintf("model: index %d at position %d exceeds vertex count %d", idx, i, len(m.Positions)))
		}
	}
}

// UV returns the texture coordinate of vertex i, or the zero vector when the mesh has no UVs.
func (m *Mesh) UV(i uint32) mgl32.Vec2 {
	if len(m.UVs) == 0 {
		return mgl32.Vec2{}
	}
	return m.UVs[i]
}

// Normal returns the normal of vertex i, or the zero vector when the mesh has no normals.
func (m *Mesh) Normal(i uint32) mgl32.Vec3 {
	if len(m.Normals) == 0 {
		return mgl32.Vec3{}
	}
	return m.Normals[i]
}

// NewQuad creates a camera-facing unit quad centered on the origin in the XY plane,
// facing +Z. It is the shared shape every in-flight particle is instanced from.
//
// Parameters:
//   - size: edge length of the quad
//
// Returns:
//   - *Mesh: a 4-vertex, 2-triangle mesh
func NewQuad(size float32) *Mesh {
	h := size / 2
	return &Mesh{
		Positions: []mgl32.Vec3{{-h, -h, 0}, {h, -h, 0}, {h, h, 0}, {-h, h, 0}},
		UVs:       []mgl32.Vec2{{0, 1}, {1, 1}, {1, 0}, {0, 0}},
		Normals:   []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		Indices:   []uint32{0, 1, 2, 0, 2, 3},
	}
}

// NewIcosphere creates a flat-shaded sphere by subdividing an icosahedron. Every triangle
// owns its three vertices so each face carries its own face normal.
//
// Parameters:
//   - radius: sphere radius
//   - subdivisions: number of 4-way subdivision passes (0 yields the 20-face icosahedron)
//
// Returns:
//   - *Mesh: a mesh with 20 * 4^subdivisions triangles
func NewIcosphere(radius float32, subdivisions int) *Mesh {
	t := float32((1 + math.Sqrt(5)) / 2)
	verts := []mgl32.Vec3{
		{-1, t, 0}, {1, t, 0}, {-1, -t, 0}, {1, -t, 0},
		{0, -1, t}, {0, 1, t}, {0, -1, -t}, {0, 1, -t},
		{t, 0, -1}, {t, 0, 1}, {-t, 0, -1}, {-t, 0, 1},
	}
	faces := [][3]int{
		{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
		{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
		{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
		{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
	}
	tris := make([][3]mgl32.Vec3, 0, len(faces))
	for _, f := range faces {
		tris = append(tris, [3]mgl32.Vec3{verts[f[0]].Normalize(), verts[f[1]].Normalize(), verts[f[2]].Normalize()})
	}
	for range subdivisions {
		next := make([][3]mgl32.Vec3, 0, len(tris)*4)
		for _, tri := range tris {
			a := tri[0].Add(tri[1]).Normalize()
			b := tri[1].Add(tri[2]).Normalize()
			c := tri[2].Add(tri[0]).Normalize()
			next = append(next,
				[3]mgl32.Vec3{tri[0], a, c},
				[3]mgl32.Vec3{tri[1], b, a},
				[3]mgl32.Vec3{tri[2], c, b},
				[3]mgl32.Vec3{a, b, c},
			)
		}
		tris = next
	}

	m := &Mesh{
		Positions: make([]mgl32.Vec3, 0, len(tris)*3),
		UVs:       make([]mgl32.Vec2, 0, len(tris)*3),
		Normals:   make([]mgl32.Vec3, 0, len(tris)*3),
		Indices:   make([]uint32, 0, len(tris)*3),
	}
	for _, tri := range tris {
		n := tri[1].Sub(tri[0]).Cross(tri[2].Sub(tri[0])).Normalize()
		for _, p := range tri {
			m.Indices = append(m.Indices, uint32(len(m.Positions)))
			m.Positions = append(m.Positions, p.Mul(radius))
			m.Normals = append(m.Normals, n)
			u := 0.5 + float32(math.Atan2(float64(p[2]), float64(p[0])))/(2*math.Pi)
			v := 0.5 - float32(math.Asin(float64(p[1])))/math.Pi
			m.UVs = append(m.UVs, mgl32.Vec2{u, v})
		}
	}
	return m
}
