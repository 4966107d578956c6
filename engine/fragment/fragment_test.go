package fragment

import (
	"testing"

	"github.com/Carmen-Shannon/disintegrate/common"
	"github.com/Carmen-Shannon/disintegrate/engine/model"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type midRandom struct{}

func (midRandom) Range(min, max float32) float32 { return (min + max) / 2 }

func TestDecomposeReconstructsSource(t *testing.T) {
	tests := []struct {
		name string
		mesh *model.Mesh
	}{
		{name: "quad", mesh: model.NewQuad(2)},
		{name: "icosahedron", mesh: model.NewIcosphere(1.5, 0)},
		{name: "icosphere", mesh: model.NewIcosphere(3, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := Decompose(tt.mesh, WithRandom(common.NewRandom(7)))
			require.Equal(t, tt.mesh.TriangleCount(), set.Len())
			assert.Same(t, tt.mesh, set.Source())

			for i, f := range set.Fragments() {
				assert.Equal(t, i, f.Index)
				assert.Equal(t, []uint32{0, 1, 2}, f.Mesh.Indices)
				for k := 0; k < 3; k++ {
					src := tt.mesh.Indices[i*3+k]
					got := f.Mesh.Positions[k].Add(f.Position)
					assert.True(t, got.ApproxEqualThreshold(tt.mesh.Positions[src], 1e-5),
						"fragment %d vertex %d: got %v want %v", i, k, got, tt.mesh.Positions[src])
					assert.Equal(t, tt.mesh.UVs[src], f.Mesh.UVs[k])
					assert.Equal(t, tt.mesh.Normals[src], f.Mesh.Normals[k])
				}
			}
		})
	}
}

func TestDecomposeCentroidIsOrigin(t *testing.T) {
	set := Decompose(model.NewIcosphere(2, 1))
	for _, f := range set.Fragments() {
		sum := f.Mesh.Positions[0].Add(f.Mesh.Positions[1]).Add(f.Mesh.Positions[2])
		assert.True(t, sum.ApproxEqualThreshold(mgl32.Vec3{}, 1e-5), "fragment %d sum %v", f.Index, sum)
	}
}

func TestDecomposeNormalNotRenormalized(t *testing.T) {
	mesh := &model.Mesh{
		Positions: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Normals:   []mgl32.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		Indices:   []uint32{0, 1, 2},
	}
	set := Decompose(mesh, WithLifetime(1, 1))
	n := set.At(0).Normal
	assert.True(t, n.ApproxEqualThreshold(mgl32.Vec3{1.0 / 3, 1.0 / 3, 1.0 / 3}, 1e-6))
	assert.InDelta(t, 0.57735, n.Len(), 1e-4)
}

func TestDecomposeMissingAttributesAreZero(t *testing.T) {
	mesh := &model.Mesh{
		Positions: []mgl32.Vec3{{0, 0, 0}, {3, 0, 0}, {0, 3, 0}},
		Indices:   []uint32{0, 1, 2},
	}
	f := Decompose(mesh).At(0)
	assert.True(t, f.Position.ApproxEqualThreshold(mgl32.Vec3{1, 1, 0}, 1e-6))
	assert.Equal(t, mgl32.Vec3{}, f.Normal)
	assert.Len(t, f.Mesh.UVs, 3)
	assert.Equal(t, mgl32.Vec2{}, f.Mesh.UVs[2])
}

func TestDecomposeLifetimes(t *testing.T) {
	tests := []struct {
		name     string
		min, max float32
		rng      common.Random
		check    func(t *testing.T, set *Set)
	}{
		{
			name: "equal bounds",
			min:  1, max: 1,
			rng: common.NewRandom(1),
			check: func(t *testing.T, set *Set) {
				for _, f := range set.Fragments() {
					assert.Equal(t, float32(1), f.Lifetime)
				}
				assert.Equal(t, float32(1), set.MaxLifetime())
			},
		},
		{
			name: "sampled within range",
			min:  0.5, max: 3,
			rng: common.NewRandom(42),
			check: func(t *testing.T, set *Set) {
				var longest float32
				for _, f := range set.Fragments() {
					assert.GreaterOrEqual(t, f.Lifetime, float32(0.5))
					assert.LessOrEqual(t, f.Lifetime, float32(3))
					longest = max(longest, f.Lifetime)
				}
				assert.Equal(t, longest, set.MaxLifetime())
			},
		},
		{
			name: "fixed source",
			min:  2, max: 4,
			rng: midRandom{},
			check: func(t *testing.T, set *Set) {
				assert.Equal(t, float32(3), set.At(0).Lifetime)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := Decompose(model.NewIcosphere(1, 1), WithLifetime(tt.min, tt.max), WithRandom(tt.rng))
			tt.check(t, set)
		})
	}
}

func TestDecomposeSeededIsDeterministic(t *testing.T) {
	mesh := model.NewIcosphere(1, 1)
	a := Decompose(mesh, WithRandom(common.NewRandom(99)))
	b := Decompose(mesh, WithRandom(common.NewRandom(99)))
	for i := 0; i < a.Len(); i++ {
		assert.Equal(t, a.At(i).Lifetime, b.At(i).Lifetime)
	}
}

func TestDecomposeEmptyMesh(t *testing.T) {
	set := Decompose(&model.Mesh{})
	assert.Equal(t, 0, set.Len())
	assert.Equal(t, float32(0), set.MaxLifetime())
	assert.Empty(t, set.Fragments())
}

func TestDecomposePreconditions(t *testing.T) {
	tests := []struct {
		name    string
		mesh    *model.Mesh
		options []DecomposeOption
	}{
		{
			name: "index count not a multiple of three",
			mesh: &model.Mesh{Positions: []mgl32.Vec3{{}, {}, {}}, Indices: []uint32{0, 1}},
		},
		{
			name: "index past vertex count",
			mesh: &model.Mesh{Positions: []mgl32.Vec3{{}, {}, {}}, Indices: []uint32{0, 1, 3}},
		},
		{
			name: "normal count mismatch",
			mesh: &model.Mesh{Positions: []mgl32.Vec3{{}, {}, {}}, Normals: []mgl32.Vec3{{}}, Indices: []uint32{0, 1, 2}},
		},
		{
			name: "nil mesh",
			mesh: nil,
		},
		{
			name:    "zero lifetime",
			mesh:    model.NewQuad(1),
			options: []DecomposeOption{WithLifetime(0, 1)},
		},
		{
			name:    "negative lifetime",
			mesh:    model.NewQuad(1),
			options: []DecomposeOption{WithLifetime(-2, -1)},
		},
		{
			name:    "min above max",
			mesh:    model.NewQuad(1),
			options: []DecomposeOption{WithLifetime(3, 1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, func() { Decompose(tt.mesh, tt.options...) })
		})
	}
}

func TestSetAtStaleIndexPanics(t *testing.T) {
	set := Decompose(model.NewQuad(1))
	assert.Panics(t, func() { set.At(2) })
	assert.Panics(t, func() { set.At(-1) })
	assert.NotPanics(t, func() { set.At(1) })
}

func TestSetFragmentsIsACopy(t *testing.T) {
	set := Decompose(model.NewQuad(1), WithLifetime(1, 1))
	frags := set.Fragments()
	frags[0].Lifetime = 50
	assert.Equal(t, float32(1), set.At(0).Lifetime)
}
