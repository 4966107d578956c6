package bind_group_provider

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// BindGroupProviderOption is a functional option for configuring a BindGroupProvider.
type BindGroupProviderOption func(*bindGroupProvider)

// WithBuffer sets a buffer at a specific binding index.
//
// Parameters:
//   - binding: the binding index
//   - buf: the buffer to set
//
// Returns:
//   - BindGroupProviderOption: a function that applies the buffer option
func WithBuffer(binding int, buf *wgpu.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.buffers[binding] = buf
	}
}
