package model

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// GPUVertexSource is the canonical WGSL definition of the VertexInput struct for mesh pipelines.
// Matches GPUVertex layout exactly (32 bytes).
//
//go:embed assets/vertex.wgsl
var GPUVertexSource string

// GPUVertex is the GPU-aligned representation of a single mesh vertex.
// Matches the WGSL VertexInput struct layout exactly (see GPUVertexSource).
// Size: 32 bytes (no padding required).
type GPUVertex struct {
	Position [3]float32 // offset  0: vertex position in model space (12 bytes)
	Normal   [3]float32 // offset 12: vertex normal (12 bytes)
	TexCoord [2]float32 // offset 24: UV texture coordinate (8 bytes)
}

// Size returns the size of the GPUVertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUVertex struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload.
func (g *GPUVertex) Marshal() []byte {
	buf := make([]byte, 32)
	putFloats(buf, g.Position[:], g.Normal[:], g.TexCoord[:])
	return buf
}

// GPUModelDataSource is the canonical WGSL definition of the ModelData struct for per-instance model matrices.
// Matches GPUModelData layout exactly (64 bytes, std430 aligned).
//
//go:embed assets/model_data.wgsl
var GPUModelDataSource string

// GPUModelData is the GPU-aligned representation of a single per-instance model matrix.
// Matches the WGSL ModelData struct layout exactly (see GPUModelDataSource).
// Size: 64 bytes (mat4x4<f32> = 16 × float32, std430 aligned, no padding required).
type GPUModelData struct {
	Model [16]float32 // offset 0: 4×4 model-to-world transform matrix (64 bytes)
}

// Size returns the size of the GPUModelData struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUModelData) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUModelData struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload.
func (g *GPUModelData) Marshal() []byte {
	buf := make([]byte, 64)
	putFloats(buf, g.Model[:])
	return buf
}

// MarshalTransforms packs a run of model matrices back to back as GPUModelData records,
// the layout the instanced pipeline reads from its storage buffer.
//
// Parameters:
//   - transforms: the per-instance model matrices
//
// Returns:
//   - []byte: len(transforms) * 64 bytes
func MarshalTransforms(transforms []mgl32.Mat4) []byte {
	buf := make([]byte, len(transforms)*64)
	for i, t := range transforms {
		putFloats(buf[i*64:(i+1)*64], t[:])
	}
	return buf
}

// MarshalMesh converts a Mesh into interleaved GPUVertex bytes and little-endian uint32 index bytes.
// Missing UVs or normals are written as zeros.
//
// Parameters:
//   - m: the mesh to serialize
//
// Returns:
//   - []byte: vertex buffer contents
//   - []byte: index buffer contents
func MarshalMesh(m *Mesh) ([]byte, []byte) {
	vertexData := make([]byte, 0, len(m.Positions)*32)
	for i, p := range m.Positions {
		v := GPUVertex{
			Position: p,
			Normal:   m.Normal(uint32(i)),
			TexCoord: m.UV(uint32(i)),
		}
		vertexData = append(vertexData, v.Marshal()...)
	}
	indexData := make([]byte, len(m.Indices)*4)
	for i, idx := range m.Indices {
		binary.LittleEndian.PutUint32(indexData[i*4:(i+1)*4], idx)
	}
	return vertexData, indexData
}

func putFloats(buf []byte, parts ...[]float32) {
	off := 0
	for _, part := range parts {
		for _, f := range part {
			binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(f))
			off += 4
		}
	}
}
