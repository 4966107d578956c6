package renderer

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPresentMode = &mode
	}
}

// WithMSAA sets the multisample anti-aliasing sample count for the renderer.
// When not specified, the default is MSAA4x.
//
// Parameters:
//   - count: the MSAASampleCount to use
//
// Returns:
//   - RendererBuilderOption: a function that applies the MSAA option to a renderer
func WithMSAA(count MSAASampleCount) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingMSAA = &count
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system.
//
// Parameters:
//   - force: true to force the software fallback adapter
//
// Returns:
//   - RendererBuilderOption: a function that applies the option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithMaxInstancesPerCall sets the per-call cap enforced by DrawMeshInstanced.
//
// Parameters:
//   - n: the cap; must be positive
//
// Returns:
//   - RendererBuilderOption: a function that applies the cap to a renderer
func WithMaxInstancesPerCall(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.maxInstancesPerCall = n
	}
}

// WithMaxInstancesPerFrame sets the capacity of the per-frame instance transform buffer.
// Every draw, single or instanced, consumes one slot per transform.
//
// Parameters:
//   - n: the capacity in transforms
//
// Returns:
//   - RendererBuilderOption: a function that applies the capacity to a renderer
func WithMaxInstancesPerFrame(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.maxInstancesPerFrame = n
	}
}
