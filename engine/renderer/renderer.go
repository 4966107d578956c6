package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/disintegrate/engine/camera"
	"github.com/Carmen-Shannon/disintegrate/engine/model"
	"github.com/Carmen-Shannon/disintegrate/engine/renderer/material"
	"github.com/Carmen-Shannon/disintegrate/engine/window"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultMaxInstancesPerCall is the per-call instance cap of DrawMeshInstanced.
const DefaultMaxInstancesPerCall = 1023

// DefaultMaxInstancesPerFrame is the capacity of the per-frame instance transform buffer.
const DefaultMaxInstancesPerFrame = 1 << 16

var (
	// ErrInstanceLimit is returned by DrawMeshInstanced when more transforms are passed than
	// MaxInstancesPerCall allows. Callers are expected to chunk.
	ErrInstanceLimit = errors.New("renderer: instance count exceeds per-call limit")

	// ErrFrameCapacity is returned when a frame's draws exceed the instance transform buffer.
	ErrFrameCapacity = errors.New("renderer: frame instance buffer exhausted")

	// ErrNoFrame is returned by draw calls issued outside BeginFrame/EndFrame.
	ErrNoFrame = errors.New("renderer: draw outside of an open frame")
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	backend     RendererBackend

	maxInstancesPerCall  int
	maxInstancesPerFrame int

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	pendingMSAA          *MSAASampleCount
}

// Renderer is the rendering boundary the disintegration effect draws through.
//
// It exposes exactly two draw primitives: a single mesh draw with one transform, and an
// instanced draw of one mesh/material pair with many transforms capped at MaxInstancesPerCall.
// Draws are only valid between BeginFrame and EndFrame.
type Renderer interface {
	// MaxInstancesPerCall returns the hard per-call cap of DrawMeshInstanced.
	//
	// Returns:
	//   - int: the maximum number of transforms accepted by one instanced draw
	MaxInstancesPerCall() int

	// DrawMesh draws mesh once with mat at transform, as seen from cam.
	//
	// Parameters:
	//   - mesh: the geometry; GPU buffers are created on first use and cached per mesh
	//   - mat: the material
	//   - transform: the model-to-world matrix
	//   - cam: the viewing camera
	//
	// Returns:
	//   - error: ErrNoFrame outside a frame, ErrFrameCapacity when the frame is full, or a GPU error
	DrawMesh(mesh *model.Mesh, mat material.Material, transform mgl32.Mat4, cam camera.Camera) error

	// DrawMeshInstanced draws one copy of mesh per transform in a single call.
	//
	// Parameters:
	//   - mesh: the shared geometry
	//   - mat: the shared material
	//   - transforms: one model-to-world matrix per instance
	//   - cam: the viewing camera
	//
	// Returns:
	//   - error: ErrInstanceLimit when len(transforms) exceeds MaxInstancesPerCall, or any DrawMesh error
	DrawMeshInstanced(mesh *model.Mesh, mat material.Material, transforms []mgl32.Mat4, cam camera.Camera) error

	// BeginFrame acquires the swapchain texture and begins the main render pass.
	//
	// Returns:
	//   - error: an error if the swapchain texture could not be acquired
	BeginFrame() error

	// EndFrame ends the current render pass and submits the command buffer to the GPU.
	// Does not present the surface; call Present() after EndFrame to display the frame.
	EndFrame()

	// Present presents the surface to the display and releases the swapchain texture.
	Present()

	// Resize reconfigures the surface for a new size.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode sets the surface present mode. A Resize is required for it to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// ReleaseMesh frees the GPU buffers cached for mesh.
	//
	// Parameters:
	//   - mesh: the mesh whose buffers to release
	ReleaseMesh(mesh *model.Mesh)

	// Release frees every GPU resource held by the renderer.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer drawing into the given window's surface.
//
// Parameters:
//   - backendType: the type of rendering backend to use (e.g., WGPU)
//   - window: the window whose surface is rendered to
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the configured renderer
//   - error: an error if the GPU device or pipelines could not be created
func NewRenderer(backendType RendererBackendType, window window.Window, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:                   &sync.Mutex{},
		backendType:          backendType,
		maxInstancesPerCall:  DefaultMaxInstancesPerCall,
		maxInstancesPerFrame: DefaultMaxInstancesPerFrame,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}
	if r.maxInstancesPerCall <= 0 {
		panic("renderer: max instances per call must be positive")
	}

	msaa := MSAA4x
	if r.pendingMSAA != nil {
		msaa = *r.pendingMSAA
	}

	var err error
	switch backendType {
	case BackendTypeWGPU:
		fallthrough
	default:
		r.backend, err = newWGPURendererBackend(window.SurfaceDescriptor(), r.forceFallbackAdapter, msaa, r.maxInstancesPerFrame)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer backend: %w", err)
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}

	r.backend.ConfigureSurface(window.Width(), window.Height())
	if err := r.backend.RegisterPipelines(); err != nil {
		return nil, fmt.Errorf("failed to register pipelines: %w", err)
	}
	return r, nil
}

func (r *renderer) MaxInstancesPerCall() int {
	return r.maxInstancesPerCall
}

func (r *renderer) DrawMesh(mesh *model.Mesh, mat material.Material, transform mgl32.Mat4, cam camera.Camera) error {
	return r.backend.Draw(mesh, mat, []mgl32.Mat4{transform}, cam)
}

func (r *renderer) DrawMeshInstanced(mesh *model.Mesh, mat material.Material, transforms []mgl32.Mat4, cam camera.Camera) error {
	if len(transforms) > r.maxInstancesPerCall {
		return fmt.Errorf("%w: %d > %d", ErrInstanceLimit, len(transforms), r.maxInstancesPerCall)
	}
	if len(transforms) == 0 {
		return nil
	}
	return r.backend.Draw(mesh, mat, transforms, cam)
}

func (r *renderer) BeginFrame() error {
	return r.backend.BeginFrame()
}

func (r *renderer) EndFrame() {
	r.backend.EndFrame()
}

func (r *renderer) Present() {
	r.backend.Present()
}

func (r *renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) ReleaseMesh(mesh *model.Mesh) {
	r.backend.ReleaseMesh(mesh)
}

func (r *renderer) Release() {
	r.backend.Release()
}
