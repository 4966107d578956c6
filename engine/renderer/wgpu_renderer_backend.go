package renderer

import (
	_ "embed"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/disintegrate/engine/camera"
	"github.com/Carmen-Shannon/disintegrate/engine/model"
	"github.com/Carmen-Shannon/disintegrate/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/disintegrate/engine/renderer/material"
	"github.com/Carmen-Shannon/disintegrate/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

//go:embed assets/mesh.wgsl
var meshShaderBody string

const (
	pipelineKeyDoubleSided = "mesh_double_sided"
	pipelineKeyCullBack    = "mesh_cull_back"

	frameBindingCamera    = 0
	frameBindingInstances = 1
	materialBindingParams = 0
)

// meshShaderSource assembles the mesh WGSL module from the canonical struct definitions of
// each GPU layout followed by the entry points.
func meshShaderSource() string {
	return camera.GPUCameraUniformSource + "\n" +
		model.GPUModelDataSource + "\n" +
		model.GPUVertexSource + "\n" +
		material.GPUMaterialParamsSource + "\n" +
		meshShaderBody
}

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat        *wgpu.TextureFormat
	msaaTextureView      *wgpu.TextureView
	depthTextureView     *wgpu.TextureView
	renderPassDescriptor *wgpu.RenderPassDescriptor

	presentMode wgpu.PresentMode
	sampleCount MSAASampleCount

	frameLayout    *wgpu.BindGroupLayout
	materialLayout *wgpu.BindGroupLayout
	pipelines      map[string]pipeline.Pipeline

	// frameProvider holds the camera uniform and the instance transform storage buffer.
	frameProvider     bind_group_provider.BindGroupProvider
	maxFrameInstances int

	meshProviders     map[*model.Mesh]bind_group_provider.BindGroupProvider
	materialProviders map[material.Material]bind_group_provider.BindGroupProvider

	// Frame state for batched rendering across multiple draw calls
	frameEncoder   *wgpu.CommandEncoder
	framePass      *wgpu.RenderPassEncoder
	frameSurface   *wgpu.Texture
	frameView      *wgpu.TextureView
	frameCursor    int
	frameCamera    camera.Camera
	activePipeline string
}

type wgpuRendererBackend interface {
	// ConfigureSurface (re)creates the swapchain, MSAA and depth attachments for a surface size.
	ConfigureSurface(width, height int)

	// SetPresentMode sets the present mode used by the next ConfigureSurface.
	SetPresentMode(mode PresentMode)

	// RegisterPipelines creates the mesh render pipelines. Requires a configured surface.
	RegisterPipelines() error

	// BeginFrame acquires the swapchain texture and opens the main render pass.
	BeginFrame() error

	// Draw encodes one indexed draw of mesh with one instance per transform.
	Draw(mesh *model.Mesh, mat material.Material, transforms []mgl32.Mat4, cam camera.Camera) error

	// EndFrame closes the render pass and submits it.
	EndFrame()

	// Present presents the acquired surface texture.
	Present()

	// ReleaseMesh releases the GPU buffers cached for mesh.
	ReleaseMesh(mesh *model.Mesh)

	// Release releases every GPU resource held by the backend.
	Release()
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool, sampleCount MSAASampleCount, maxFrameInstances int) (wgpuRendererBackend, error) {
	runtime.LockOSThread()
	b := &wgpuRendererBackendImpl{
		mu:                &sync.Mutex{},
		instance:          wgpu.CreateInstance(nil),
		presentMode:       wgpu.PresentModeImmediate,
		sampleCount:       sampleCount,
		pipelines:         make(map[string]pipeline.Pipeline),
		maxFrameInstances: maxFrameInstances,
		meshProviders:     make(map[*model.Mesh]bind_group_provider.BindGroupProvider),
		materialProviders: make(map[material.Material]bind_group_provider.BindGroupProvider),
	}
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	b.device = d
	b.queue = d.GetQueue()

	if err := b.createFrameResources(); err != nil {
		return nil, err
	}
	return b, nil
}

// createFrameResources creates the two bind group layouts and the per-frame camera and
// instance buffers shared by every draw.
func (b *wgpuRendererBackendImpl) createFrameResources() error {
	var err error
	b.frameLayout, err = b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Frame Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			func() wgpu.BindGroupLayoutEntry {
				e := wgpu.BindGroupLayoutEntry{Binding: frameBindingCamera, Visibility: wgpu.ShaderStageVertex}
				e.Buffer.Type = wgpu.BufferBindingTypeUniform
				return e
			}(),
			func() wgpu.BindGroupLayoutEntry {
				e := wgpu.BindGroupLayoutEntry{Binding: frameBindingInstances, Visibility: wgpu.ShaderStageVertex}
				e.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
				return e
			}(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create frame bind group layout: %w", err)
	}

	b.materialLayout, err = b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Material Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			func() wgpu.BindGroupLayoutEntry {
				e := wgpu.BindGroupLayoutEntry{Binding: materialBindingParams, Visibility: wgpu.ShaderStageFragment}
				e.Buffer.Type = wgpu.BufferBindingTypeUniform
				return e
			}(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create material bind group layout: %w", err)
	}

	var cu camera.GPUCameraUniform
	cameraBuf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Camera Uniform Buffer",
		Size:  uint64(cu.Size()),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return err
	}
	var md model.GPUModelData
	instanceBuf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Instance Transform Buffer",
		Size:  uint64(md.Size() * b.maxFrameInstances),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		cameraBuf.Release()
		return err
	}

	b.frameProvider = bind_group_provider.NewBindGroupProvider("frame",
		bind_group_provider.WithBuffer(frameBindingCamera, cameraBuf),
		bind_group_provider.WithBuffer(frameBindingInstances, instanceBuf),
	)
	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Frame Bind Group",
		Layout: b.frameLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: frameBindingCamera, Buffer: cameraBuf, Offset: 0, Size: wgpu.WholeSize},
			{Binding: frameBindingInstances, Buffer: instanceBuf, Offset: 0, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		b.frameProvider.Release()
		return fmt.Errorf("failed to create frame bind group: %w", err)
	}
	b.frameProvider.SetBindGroup(bg)
	return nil
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = &capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
		b.msaaTextureView = nil
	}
	if b.depthTextureView != nil {
		b.depthTextureView.Release()
	}

	msaaEnabled := b.sampleCount > 1
	if msaaEnabled {
		// The pass draws into the MSAA texture and resolves into the swapchain view.
		b.msaaTextureView = b.createAttachment("MSAA Texture", width, height, *b.surfaceFormat)
	}
	b.depthTextureView = b.createAttachment("Depth Texture", width, height, wgpu.TextureFormatDepth24Plus)

	storeOp := wgpu.StoreOpStore
	if msaaEnabled {
		storeOp = wgpu.StoreOpDiscard
	}
	b.renderPassDescriptor = &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    b.msaaTextureView, // nil when MSAA is off; set in BeginFrame
				LoadOp:  wgpu.LoadOpClear,
				StoreOp: storeOp,
				ClearValue: wgpu.Color{
					R: 0.05, G: 0.05, B: 0.08, A: 1.0,
				},
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.depthTextureView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	}
}

// createAttachment creates a render attachment texture matching the pass sample count.
// Caller must hold the mutex.
func (b *wgpuRendererBackendImpl) createAttachment(label string, width, height int, format wgpu.TextureFormat) *wgpu.TextureView {
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   uint32(b.sampleCount),
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		panic(err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		panic(err)
	}
	return view
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuRendererBackendImpl) RegisterPipelines() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	source := meshShaderSource()
	for _, p := range []pipeline.Pipeline{
		pipeline.NewPipeline(pipelineKeyDoubleSided,
			pipeline.WithShaderSource(source, "vs_main", "fs_main"),
			pipeline.WithCullMode(wgpu.CullModeNone),
			pipeline.WithBlendEnabled(true),
		),
		pipeline.NewPipeline(pipelineKeyCullBack,
			pipeline.WithShaderSource(source, "vs_main", "fs_main"),
			pipeline.WithCullMode(wgpu.CullModeBack),
			pipeline.WithBlendEnabled(true),
		),
	} {
		if _, exists := b.pipelines[p.PipelineKey()]; exists {
			continue
		}
		if err := b.registerRenderPipeline(p); err != nil {
			return fmt.Errorf("pipeline %q: %w", p.PipelineKey(), err)
		}
		b.pipelines[p.PipelineKey()] = p
	}
	return nil
}

// registerRenderPipeline compiles p's shader module and creates its GPU pipeline.
// Caller must hold the mutex.
func (b *wgpuRendererBackendImpl) registerRenderPipeline(p pipeline.Pipeline) error {
	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: p.PipelineKey() + " Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: p.Source(),
		},
	})
	if err != nil {
		return err
	}
	defer module.Release()

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: []*wgpu.BindGroupLayout{b.frameLayout, b.materialLayout},
	})
	if err != nil {
		return err
	}

	var v model.GPUVertex
	colorTarget := wgpu.ColorTargetState{
		Format:    *b.surfaceFormat,
		WriteMask: wgpu.ColorWriteMaskAll,
	}
	if p.BlendEnabled() {
		colorTarget.Blend = p.BlendState()
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: p.VertexEntryPoint(),
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: uint64(v.Size()),
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
					{Format: wgpu.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: p.FragmentEntryPoint(),
			Targets:    []wgpu.ColorTargetState{colorTarget},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: uint32(b.sampleCount),
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: p.DepthWriteEnabled(),
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	if err != nil {
		return err
	}
	p.SetRenderPipeline(created)
	return nil
}

func (b *wgpuRendererBackendImpl) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface != nil {
		return errors.New("previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	if b.sampleCount > 1 {
		b.renderPassDescriptor.ColorAttachments[0].ResolveTarget = view
	} else {
		b.renderPassDescriptor.ColorAttachments[0].View = view
	}

	b.frameEncoder = encoder
	b.framePass = encoder.BeginRenderPass(b.renderPassDescriptor)
	b.frameSurface = surfaceTexture
	b.frameView = view
	b.frameCursor = 0
	b.frameCamera = nil
	b.activePipeline = ""
	return nil
}

func (b *wgpuRendererBackendImpl) Draw(mesh *model.Mesh, mat material.Material, transforms []mgl32.Mat4, cam camera.Camera) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return ErrNoFrame
	}
	if b.frameCursor+len(transforms) > b.maxFrameInstances {
		return fmt.Errorf("%w: %d + %d > %d", ErrFrameCapacity, b.frameCursor, len(transforms), b.maxFrameInstances)
	}

	meshProvider, err := b.meshProvider(mesh)
	if err != nil {
		return err
	}
	if meshProvider.IndexCount() == 0 {
		return nil
	}
	materialProvider, err := b.materialProvider(mat)
	if err != nil {
		return err
	}

	if cam != b.frameCamera {
		u := cam.Uniform()
		b.queue.WriteBuffer(b.frameProvider.Buffer(frameBindingCamera), 0, u.Marshal())
		b.frameCamera = cam
	}
	params := mat.GPUParams()
	b.queue.WriteBuffer(materialProvider.Buffer(materialBindingParams), 0, params.Marshal())

	var md model.GPUModelData
	offset := uint64(b.frameCursor * md.Size())
	b.queue.WriteBuffer(b.frameProvider.Buffer(frameBindingInstances), offset, model.MarshalTransforms(transforms))

	key := pipelineKeyCullBack
	if mat.DoubleSided() {
		key = pipelineKeyDoubleSided
	}
	if key != b.activePipeline {
		b.framePass.SetPipeline(b.pipelines[key].RenderPipeline())
		b.framePass.SetBindGroup(0, b.frameProvider.BindGroup(), nil)
		b.activePipeline = key
	}
	b.framePass.SetBindGroup(1, materialProvider.BindGroup(), nil)
	b.framePass.SetVertexBuffer(0, meshProvider.VertexBuffer(), 0, wgpu.WholeSize)
	b.framePass.SetIndexBuffer(meshProvider.IndexBuffer(), wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	b.framePass.DrawIndexed(uint32(meshProvider.IndexCount()), uint32(len(transforms)), 0, 0, uint32(b.frameCursor))

	b.frameCursor += len(transforms)
	return nil
}

// meshProvider returns the cached GPU buffers for mesh, uploading them on first use.
// Caller must hold the mutex.
func (b *wgpuRendererBackendImpl) meshProvider(mesh *model.Mesh) (bind_group_provider.BindGroupProvider, error) {
	if p, ok := b.meshProviders[mesh]; ok {
		return p, nil
	}
	p := bind_group_provider.NewBindGroupProvider(fmt.Sprintf("mesh_%p", mesh))
	b.meshProviders[mesh] = p
	if len(mesh.Indices) == 0 {
		return p, nil
	}

	vertexData, indexData := model.MarshalMesh(mesh)
	vbuf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: p.Label() + " Vertex Buffer",
		Size:  uint64(len(vertexData)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		delete(b.meshProviders, mesh)
		return nil, err
	}
	b.queue.WriteBuffer(vbuf, 0, vertexData)

	ibuf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: p.Label() + " Index Buffer",
		Size:  uint64(len(indexData)),
		Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		vbuf.Release()
		delete(b.meshProviders, mesh)
		return nil, err
	}
	b.queue.WriteBuffer(ibuf, 0, indexData)

	p.SetMeshBuffers(vbuf, ibuf, len(mesh.Indices))
	return p, nil
}

// materialProvider returns the cached parameter uniform and bind group for mat.
// Caller must hold the mutex.
func (b *wgpuRendererBackendImpl) materialProvider(mat material.Material) (bind_group_provider.BindGroupProvider, error) {
	if p, ok := b.materialProviders[mat]; ok {
		return p, nil
	}
	var params material.GPUMaterialParams
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Material " + mat.Name() + " Buffer",
		Size:  uint64(params.Size()),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	p := bind_group_provider.NewBindGroupProvider("material_"+mat.Name(),
		bind_group_provider.WithBuffer(materialBindingParams, buf),
	)
	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  p.Label() + " Bind Group",
		Layout: b.materialLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: materialBindingParams, Buffer: buf, Offset: 0, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		p.Release()
		return nil, err
	}
	p.SetBindGroup(bg)
	b.materialProviders[mat] = p
	return p, nil
}

func (b *wgpuRendererBackendImpl) EndFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return
	}
	b.framePass.End()
	b.framePass = nil

	commandBuffer, err := b.frameEncoder.Finish(nil)
	if err != nil {
		b.frameEncoder.Release()
		b.frameView.Release()
		b.frameSurface.Release()
		b.frameEncoder = nil
		b.frameSurface = nil
		b.frameView = nil
		return
	}

	b.queue.Submit(commandBuffer)

	commandBuffer.Release()
	b.frameEncoder.Release()
	b.frameEncoder = nil
}

func (b *wgpuRendererBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}
	b.surface.Present()

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	b.frameSurface.Release()
	b.frameSurface = nil
}

func (b *wgpuRendererBackendImpl) ReleaseMesh(mesh *model.Mesh) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p, ok := b.meshProviders[mesh]; ok {
		p.Release()
		delete(b.meshProviders, mesh)
	}
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for mesh, p := range b.meshProviders {
		p.Release()
		delete(b.meshProviders, mesh)
	}
	for mat, p := range b.materialProviders {
		p.Release()
		delete(b.materialProviders, mat)
	}
	for key, p := range b.pipelines {
		if rp := p.RenderPipeline(); rp != nil {
			rp.Release()
		}
		delete(b.pipelines, key)
	}
	if b.frameProvider != nil {
		b.frameProvider.Release()
	}
	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
	}
	if b.depthTextureView != nil {
		b.depthTextureView.Release()
	}
	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	b.surface.Release()
	b.instance.Release()
}
