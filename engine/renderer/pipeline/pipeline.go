package pipeline

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	pipelineKey string

	source             string
	vertexEntryPoint   string
	fragmentEntryPoint string

	// renderPipeline is set by the renderer backend once the GPU object exists.
	renderPipeline *wgpu.RenderPipeline

	depthWriteEnabled bool
	blendEnabled      bool
	cullMode          wgpu.CullMode
	frontFace         wgpu.FrontFace
	blendState        *wgpu.BlendState
}

// Pipeline describes one render pipeline: the WGSL module it is compiled from and the
// raster state it is created with. The renderer keeps one per cull mode so double-sided
// fragment triangles and closed source meshes can share a frame.
type Pipeline interface {
	// PipelineKey returns the unique identifier for this pipeline.
	//
	// Returns:
	//   - string: the cache key
	PipelineKey() string

	// Source returns the WGSL source holding both entry points.
	//
	// Returns:
	//   - string: the shader source
	Source() string

	// VertexEntryPoint returns the vertex stage entry point name.
	VertexEntryPoint() string

	// FragmentEntryPoint returns the fragment stage entry point name.
	FragmentEntryPoint() string

	// DepthWriteEnabled reports whether the pipeline writes depth.
	DepthWriteEnabled() bool

	// BlendEnabled reports whether BlendState is applied to the color target.
	BlendEnabled() bool

	// CullMode returns the face culling mode.
	CullMode() wgpu.CullMode

	// FrontFace returns the winding treated as front facing.
	FrontFace() wgpu.FrontFace

	// BlendState returns the color/alpha blend configuration.
	BlendState() *wgpu.BlendState

	// RenderPipeline returns the created GPU pipeline, or nil before registration.
	//
	// Returns:
	//   - *wgpu.RenderPipeline: the GPU pipeline
	RenderPipeline() *wgpu.RenderPipeline

	// SetRenderPipeline stores the created GPU pipeline.
	//
	// Parameters:
	//   - rp: the GPU pipeline
	SetRenderPipeline(rp *wgpu.RenderPipeline)
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a new render Pipeline description. Depth writes are on, blending is
// off and no faces are culled unless options say otherwise.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: the configured pipeline
func NewPipeline(pipelineKey string, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:        pipelineKey,
		vertexEntryPoint:   "vs_main",
		fragmentEntryPoint: "fs_main",
		depthWriteEnabled:  true,
		cullMode:           wgpu.CullModeNone,
		frontFace:          wgpu.FrontFaceCCW,
		blendState: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Source() string {
	return p.source
}

func (p *pipeline) VertexEntryPoint() string {
	return p.vertexEntryPoint
}

func (p *pipeline) FragmentEntryPoint() string {
	return p.fragmentEntryPoint
}

func (p *pipeline) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendEnabled
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	return p.blendState
}

func (p *pipeline) RenderPipeline() *wgpu.RenderPipeline {
	return p.renderPipeline
}

func (p *pipeline) SetRenderPipeline(rp *wgpu.RenderPipeline) {
	p.renderPipeline = rp
}
