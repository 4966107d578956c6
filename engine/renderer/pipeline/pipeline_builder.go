package pipeline

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineBuilderOption is a functional option applied to a pipeline during NewPipeline.
type PipelineBuilderOption func(*pipeline)

// WithShaderSource sets the WGSL module and the names of its vertex and fragment entry points.
//
// Parameters:
//   - source: the WGSL source
//   - vertexEntryPoint: vertex stage function name
//   - fragmentEntryPoint: fragment stage function name
//
// Returns:
//   - PipelineBuilderOption: a function that sets the shader source
func WithShaderSource(source, vertexEntryPoint, fragmentEntryPoint string) PipelineBuilderOption {
	return func(p *pipeline) {
		p.source = source
		p.vertexEntryPoint = vertexEntryPoint
		p.fragmentEntryPoint = fragmentEntryPoint
	}
}

// WithDepthWriteEnabled sets whether depth writing is enabled for this pipeline.
//
// Parameters:
//   - enabled: true to write depth
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth write flag
func WithDepthWriteEnabled(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthWriteEnabled = enabled
	}
}

// WithBlendEnabled sets whether alpha blending is enabled for this pipeline.
//
// Parameters:
//   - enabled: true to blend
//
// Returns:
//   - PipelineBuilderOption: a function that sets the blend flag
func WithBlendEnabled(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.blendEnabled = enabled
	}
}

// WithCullMode sets the face culling mode.
//
// Parameters:
//   - mode: the cull mode (e.g., wgpu.CullModeBack)
//
// Returns:
//   - PipelineBuilderOption: a function that sets the cull mode
func WithCullMode(mode wgpu.CullMode) PipelineBuilderOption {
	return func(p *pipeline) {
		p.cullMode = mode
	}
}

// WithFrontFace sets the winding order treated as front facing.
//
// Parameters:
//   - frontFace: the winding (e.g., wgpu.FrontFaceCCW)
//
// Returns:
//   - PipelineBuilderOption: a function that sets the front face
func WithFrontFace(frontFace wgpu.FrontFace) PipelineBuilderOption {
	return func(p *pipeline) {
		p.frontFace = frontFace
	}
}
