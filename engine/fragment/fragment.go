package fragment

import (
	"fmt"
	"time"

	"github.com/Carmen-Shannon/disintegrate/common"
	"github.com/Carmen-Shannon/disintegrate/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// Fragment is one triangle of a decomposed source mesh.
// Fragments are created once per source mesh and never mutated afterwards; every effect
// triggered from the same Set reads the same Fragment values.
type Fragment struct {
	// Index is the fragment's triangle position in the source index buffer.
	Index int

	// Mesh is the standalone triangle, translated so Position is its origin.
	// Its index list is always {0, 1, 2}.
	Mesh *model.Mesh

	// Position is the triangle centroid in the source object's local space.
	Position mgl32.Vec3

	// Normal is the mean of the three vertex normals. It is not renormalized, so its
	// length shrinks as the vertex normals diverge and spread scales with it.
	Normal mgl32.Vec3

	// Lifetime is the active-phase duration in seconds.
	Lifetime float32
}

// Set is the immutable result of decomposing a mesh.
type Set struct {
	source      *model.Mesh
	fragments   []Fragment
	maxLifetime float32
}

// Decompose splits mesh into one Fragment per triangle, in index buffer order.
// Decompose panics when the mesh is malformed or the lifetime bounds are not positive.
//
// Parameters:
//   - mesh: the source mesh; it is read but never modified
//   - options: functional options (lifetime range, random source)
//
// Returns:
//   - *Set: the decomposed fragments
func Decompose(mesh *model.Mesh, options ...DecomposeOption) *Set {
	opts := &decomposeOptions{
		minLifetime: DefaultMinLifetime,
		maxLifetime: DefaultMaxLifetime,
	}
	for _, opt := range options {
		opt(opts)
	}
	if opts.minLifetime <= 0 || opts.maxLifetime <= 0 {
		panic(fmt.Sprintf("fragment: lifetime bounds must be positive, got [%v, %v]", opts.minLifetime, opts.maxLifetime))
	}
	if opts.minLifetime > opts.maxLifetime {
		panic(fmt.Sprintf("fragment: min lifetime %v exceeds max lifetime %v", opts.minLifetime, opts.maxLifetime))
	}
	if opts.random == nil {
		opts.random = common.NewRandom(uint64(time.Now().UnixNano()))
	}
	mesh.Validate()

	s := &Set{
		source:    mesh,
		fragments: make([]Fragment, mesh.TriangleCount()),
	}
	for t := range s.fragments {
		i0, i1, i2 := mesh.Indices[t*3], mesh.Indices[t*3+1], mesh.Indices[t*3+2]
		p0, p1, p2 := mesh.Positions[i0], mesh.Positions[i1], mesh.Positions[i2]
		centroid := p0.Add(p1).Add(p2).Mul(1.0 / 3.0)
		n0, n1, n2 := mesh.Normal(i0), mesh.Normal(i1), mesh.Normal(i2)

		f := Fragment{
			Index: t,
			Mesh: &model.Mesh{
				Positions: []mgl32.Vec3{p0.Sub(centroid), p1.Sub(centroid), p2.Sub(centroid)},
				UVs:       []mgl32.Vec2{mesh.UV(i0), mesh.UV(i1), mesh.UV(i2)},
				Normals:   []mgl32.Vec3{n0, n1, n2},
				Indices:   []uint32{0, 1, 2},
			},
			Position: centroid,
			Normal:   n0.Add(n1).Add(n2).Mul(1.0 / 3.0),
			Lifetime: opts.random.Range(opts.minLifetime, opts.maxLifetime),
		}
		if f.Lifetime > s.maxLifetime {
			s.maxLifetime = f.Lifetime
		}
		s.fragments[t] = f
	}
	return s
}

// Len returns the number of fragments, equal to the source triangle count.
func (s *Set) Len() int {
	return len(s.fragments)
}

// At returns the fragment at index i. A stale index is a programming error and panics.
//
// Parameters:
//   - i: the fragment index
//
// Returns:
//   - *Fragment: the fragment; callers must not modify it
func (s *Set) At(i int) *Fragment {
	if i < 0 || i >= len(s.fragments) {
		panic(fmt.Sprintf("fragment: index %d out of range [0, %d)", i, len(s.fragments)))
	}
	return &s.fragments[i]
}

// Fragments returns a copy of the fragment slice.
func (s *Set) Fragments() []Fragment {
	out := make([]Fragment, len(s.fragments))
	copy(out, s.fragments)
	return out
}

// Source returns the mesh the set was decomposed from.
func (s *Set) Source() *model.Mesh {
	return s.source
}

// MaxLifetime returns the longest sampled lifetime, or 0 for an empty set.
func (s *Set) MaxLifetime() float32 {
	return s.maxLifetime
}
