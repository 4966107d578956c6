package loader

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Carmen-Shannon/disintegrate/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrMeshIndex is returned when the requested mesh does not exist in the document.
	ErrMeshIndex = errors.New("loader: mesh index out of range")

	// ErrNoTriangles is returned when the requested mesh has no triangle-list primitive.
	ErrNoTriangles = errors.New("loader: mesh has no triangle primitives")
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	meshIndex int
	meshCache map[string]*model.Mesh
}

// Loader imports triangle meshes from glTF 2.0 files (.gltf or .glb) and caches them by name.
// Every triangle-list primitive of the selected mesh is merged into one model.Mesh in the
// file's local space. NORMAL and TEXCOORD_0 are optional: a mesh whose primitives all lack
// one keeps that array empty, and a mesh where only some primitives carry it is padded with
// zero vectors so the array stays parallel to the positions.
type Loader interface {
	// LoadMesh imports the mesh at path. A cached mesh is returned if path was loaded before.
	//
	// Parameters:
	//   - path: the .gltf or .glb file
	//
	// Returns:
	//   - *model.Mesh: the merged triangle mesh
	//   - error: error if the file cannot be read or holds no usable triangles
	LoadMesh(path string) (*model.Mesh, error)

	// LoadMeshReader imports a mesh from r and caches it under name.
	// Buffers must be embedded as data URIs or in the GLB binary chunk.
	//
	// Parameters:
	//   - name: the cache key
	//   - r: the document bytes
	//   - isGLB: true if r holds a GLB container
	//
	// Returns:
	//   - *model.Mesh: the merged triangle mesh
	//   - error: error if parsing fails
	LoadMeshReader(name string, r io.Reader, isGLB bool) (*model.Mesh, error)

	// Get returns the cached mesh for name, or nil.
	Get(name string) *model.Mesh

	// Meshes returns a copy of the cache.
	Meshes() map[string]*model.Mesh
}

var _ Loader = &loader{}

// NewLoader creates a new Loader with the provided options applied.
//
// Parameters:
//   - options: a variadic list of LoaderBuilderOption functions
//
// Returns:
//   - Loader: the configured loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		meshCache: make(map[string]*model.Mesh),
	}
	for _, option := range options {
		option(l)
	}
	return l
}

func (l *loader) LoadMesh(path string) (*model.Mesh, error) {
	if m := l.Get(path); m != nil {
		return m, nil
	}

	p := &gltfParser{}
	if err := p.parseFile(path); err != nil {
		return nil, fmt.Errorf("loader: %s: %w", path, err)
	}
	return l.store(path, p)
}

func (l *loader) LoadMeshReader(name string, r io.Reader, isGLB bool) (*model.Mesh, error) {
	p := &gltfParser{}
	if err := p.parseReader(r, isGLB); err != nil {
		return nil, fmt.Errorf("loader: %s: %w", name, err)
	}
	return l.store(name, p)
}

func (l *loader) Get(name string) *model.Mesh {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.meshCache[name]
}

func (l *loader) Meshes() map[string]*model.Mesh {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]*model.Mesh, len(l.meshCache))
	for k, v := range l.meshCache {
		out[k] = v
	}
	return out
}

func (l *loader) store(name string, p *gltfParser) (*model.Mesh, error) {
	m, err := extractMesh(p, l.meshIndex)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", name, err)
	}

	l.mu.Lock()
	l.meshCache[name] = m
	l.mu.Unlock()
	return m, nil
}

// extractMesh merges the triangle primitives of one glTF mesh.
func extractMesh(p *gltfParser, meshIndex int) (*model.Mesh, error) {
	doc := p.document
	if meshIndex < 0 || meshIndex >= len(doc.Meshes) {
		return nil, fmt.Errorf("%w: %d of %d", ErrMeshIndex, meshIndex, len(doc.Meshes))
	}

	out := &model.Mesh{}
	for i := range doc.Meshes[meshIndex].Primitives {
		prim := &doc.Meshes[meshIndex].Primitives[i]
		if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
			continue
		}
		if err := appendPrimitive(p, prim, out); err != nil {
			return nil, fmt.Errorf("primitive %d: %w", i, err)
		}
	}

	if len(out.Indices) == 0 {
		return nil, ErrNoTriangles
	}
	if len(out.Normals) > 0 {
		out.Normals = padVec3(out.Normals, len(out.Positions))
	}
	if len(out.UVs) > 0 {
		out.UVs = padVec2(out.UVs, len(out.Positions))
	}
	return out, nil
}

func appendPrimitive(p *gltfParser, prim *gltfPrimitive, out *model.Mesh) error {
	posIndex, ok := prim.Attributes["POSITION"]
	if !ok {
		return errors.New("missing POSITION attribute")
	}
	positions, err := p.readVec3(posIndex)
	if err != nil {
		return fmt.Errorf("POSITION: %w", err)
	}

	var normals []mgl32.Vec3
	if idx, ok := prim.Attributes["NORMAL"]; ok {
		if normals, err = p.readVec3(idx); err != nil {
			return fmt.Errorf("NORMAL: %w", err)
		}
		if len(normals) != len(positions) {
			return fmt.Errorf("%d normals for %d positions", len(normals), len(positions))
		}
	}

	var uvs []mgl32.Vec2
	if idx, ok := prim.Attributes["TEXCOORD_0"]; ok {
		if uvs, err = p.readVec2(idx); err != nil {
			return fmt.Errorf("TEXCOORD_0: %w", err)
		}
		if len(uvs) != len(positions) {
			return fmt.Errorf("%d UVs for %d positions", len(uvs), len(positions))
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		if indices, err = p.readIndices(*prim.Indices); err != nil {
			return fmt.Errorf("indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	if len(indices)%3 != 0 {
		return fmt.Errorf("index count %d is not a multiple of 3", len(indices))
	}

	base := uint32(len(out.Positions))
	for _, idx := range indices {
		if int(idx) >= len(positions) {
			return fmt.Errorf("index %d exceeds vertex count %d", idx, len(positions))
		}
		out.Indices = append(out.Indices, base+idx)
	}

	if normals != nil {
		out.Normals = append(padVec3(out.Normals, int(base)), normals...)
	}
	if uvs != nil {
		out.UVs = append(padVec2(out.UVs, int(base)), uvs...)
	}
	out.Positions = append(out.Positions, positions...)
	return nil
}

func padVec3(v []mgl32.Vec3, n int) []mgl32.Vec3 {
	for len(v) < n {
		v = append(v, mgl32.Vec3{})
	}
	return v
}

func padVec2(v []mgl32.Vec2, n int) []mgl32.Vec2 {
	for len(v) < n {
		v = append(v, mgl32.Vec2{})
	}
	return v
}
