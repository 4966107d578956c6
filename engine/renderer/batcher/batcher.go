package batcher

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/disintegrate/engine/camera"
	"github.com/Carmen-Shannon/disintegrate/engine/model"
	"github.com/Carmen-Shannon/disintegrate/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultMaxInstances is the per-call instance cap used when no Drawer limit is configured.
const DefaultMaxInstances = 1023

// Drawer is the subset of the renderer a Batcher submits through.
// renderer.Renderer satisfies it.
type Drawer interface {
	DrawMesh(mesh *model.Mesh, mat material.Material, transform mgl32.Mat4, cam camera.Camera) error
	DrawMeshInstanced(mesh *model.Mesh, mat material.Material, transforms []mgl32.Mat4, cam camera.Camera) error
}

// Stats counts the draw calls one Submit issued.
type Stats struct {
	SingleDraws    int
	InstancedDraws int
	Instances      int
}

// Add returns the field-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		SingleDraws:    s.SingleDraws + o.SingleDraws,
		InstancedDraws: s.InstancedDraws + o.InstancedDraws,
		Instances:      s.Instances + o.Instances,
	}
}

// DrawCalls returns the total number of draw calls counted in s.
func (s Stats) DrawCalls() int {
	return s.SingleDraws + s.InstancedDraws
}

type singleDraw struct {
	mesh      *model.Mesh
	mat       material.Material
	transform mgl32.Mat4
}

// batcher is the implementation of the Batcher interface.
type batcher struct {
	maxInstances     int
	particleMesh     *model.Mesh
	particleMaterial material.Material

	singles   []singleDraw
	instances []mgl32.Mat4
}

// Batcher collects one tick of fragment draws and turns them into render calls.
//
// Dormant fragments each have their own geometry and are recorded as single draws.
// Active fragments all share the particle mesh and material, so only their transforms are
// recorded and they are submitted as instanced draws split into chunks of at most
// MaxInstances. A Batcher is owned by one effect and is not safe for concurrent use.
type Batcher interface {
	// DrawSingle records a one-off draw of mesh with mat at transform.
	//
	// Parameters:
	//   - mesh: the fragment geometry
	//   - mat: the source material
	//   - transform: the model-to-world matrix
	DrawSingle(mesh *model.Mesh, mat material.Material, transform mgl32.Mat4)

	// AddInstance appends one particle transform to the instanced buffer.
	//
	// Parameters:
	//   - transform: the particle model-to-world matrix
	AddInstance(transform mgl32.Mat4)

	// Pending returns how many single draws and instances are recorded for the current tick.
	//
	// Returns:
	//   - int: recorded single draws
	//   - int: recorded instances
	Pending() (int, int)

	// Submit issues every recorded single draw in record order, then one instanced draw per
	// chunk of the instance buffer in record order. All buffers are cleared afterwards
	// whether or not any call failed.
	//
	// Parameters:
	//   - d: the renderer to draw through
	//   - cam: the viewing camera
	//
	// Returns:
	//   - Stats: the calls that succeeded
	//   - error: every draw error joined, or nil
	Submit(d Drawer, cam camera.Camera) (Stats, error)

	// Reset drops everything recorded for the current tick without drawing it.
	Reset()

	// MaxInstances returns the instanced chunk size.
	MaxInstances() int

	// ParticleMesh returns the shared geometry drawn for every active fragment.
	ParticleMesh() *model.Mesh

	// ParticleMaterial returns the shared material drawn for every active fragment.
	ParticleMaterial() material.Material
}

var _ Batcher = &batcher{}

// NewBatcher creates a Batcher for the given options.
// Without options the particle shape is a unit quad drawn double-sided in white, and the
// chunk size is DefaultMaxInstances.
//
// Parameters:
//   - options: variadic list of BatcherBuilderOption functions
//
// Returns:
//   - Batcher: the configured batcher
func NewBatcher(options ...BatcherBuilderOption) Batcher {
	b := &batcher{
		maxInstances: DefaultMaxInstances,
	}
	for _, opt := range options {
		opt(b)
	}
	if b.maxInstances <= 0 {
		panic(fmt.Sprintf("batcher: max instances must be positive, got %d", b.maxInstances))
	}
	if b.particleMesh == nil {
		b.particleMesh = model.NewQuad(0.1)
	}
	if b.particleMaterial == nil {
		b.particleMaterial = material.NewMaterial(
			material.WithName("particle"),
			material.WithDoubleSided(true),
		)
	}
	return b
}

func (b *batcher) DrawSingle(mesh *model.Mesh, mat material.Material, transform mgl32.Mat4) {
	b.singles = append(b.singles, singleDraw{mesh: mesh, mat: mat, transform: transform})
}

func (b *batcher) AddInstance(transform mgl32.Mat4) {
	b.instances = append(b.instances, transform)
}

func (b *batcher) Pending() (int, int) {
	return len(b.singles), len(b.instances)
}

func (b *batcher) Submit(d Drawer, cam camera.Camera) (Stats, error) {
	defer b.Reset()

	var stats Stats
	var errs []error
	for _, s := range b.singles {
		if err := d.DrawMesh(s.mesh, s.mat, s.transform, cam); err != nil {
			errs = append(errs, fmt.Errorf("single draw: %w", err))
			continue
		}
		stats.SingleDraws++
	}
	for _, chunk := range Chunks(b.instances, b.maxInstances) {
		if err := d.DrawMeshInstanced(b.particleMesh, b.particleMaterial, chunk, cam); err != nil {
			errs = append(errs, fmt.Errorf("instanced draw of %d: %w", len(chunk), err))
			continue
		}
		stats.InstancedDraws++
		stats.Instances += len(chunk)
	}
	return stats, errors.Join(errs...)
}

func (b *batcher) Reset() {
	// Keep the backing arrays; the next tick usually records a similar amount.
	clear(b.singles)
	b.singles = b.singles[:0]
	b.instances = b.instances[:0]
}

func (b *batcher) MaxInstances() int {
	return b.maxInstances
}

func (b *batcher) ParticleMesh() *model.Mesh {
	return b.particleMesh
}

func (b *batcher) ParticleMaterial() material.Material {
	return b.particleMaterial
}

// Chunks splits transforms into consecutive sub-slices of at most size elements.
// The sub-slices alias transforms and preserve its order. An empty input yields no chunks.
//
// Parameters:
//   - transforms: the instance transforms
//   - size: the maximum chunk length; must be positive
//
// Returns:
//   - [][]mgl32.Mat4: the chunks in order
func Chunks(transforms []mgl32.Mat4, size int) [][]mgl32.Mat4 {
	if size <= 0 {
		panic(fmt.Sprintf("batcher: chunk size must be positive, got %d", size))
	}
	if len(transforms) == 0 {
		return nil
	}
	chunks := make([][]mgl32.Mat4, 0, (len(transforms)+size-1)/size)
	for start := 0; start < len(transforms); start += size {
		end := min(start+size, len(transforms))
		chunks = append(chunks, transforms[start:end:end])
	}
	return chunks
}
