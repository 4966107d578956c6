package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// docBuilder assembles a glTF document whose single buffer holds every accessor back to back.
type docBuilder struct {
	bin         bytes.Buffer
	accessors   []map[string]any
	bufferViews []map[string]any
	primitives  []map[string]any
	version     string
}

func newDocBuilder() *docBuilder {
	return &docBuilder{version: "2.0"}
}

func (b *docBuilder) add(accessorType string, componentType, count int, data any) int {
	for b.bin.Len()%4 != 0 {
		b.bin.WriteByte(0)
	}
	offset := b.bin.Len()
	_ = binary.Write(&b.bin, binary.LittleEndian, data)
	b.bufferViews = append(b.bufferViews, map[string]any{
		"buffer":     0,
		"byteOffset": offset,
		"byteLength": b.bin.Len() - offset,
	})
	b.accessors = append(b.accessors, map[string]any{
		"bufferView":    len(b.bufferViews) - 1,
		"componentType": componentType,
		"count":         count,
		"type":          accessorType,
	})
	return len(b.accessors) - 1
}

func (b *docBuilder) vec3(v ...[3]float32) int {
	return b.add(gltfAccessorTypeVec3, gltfComponentTypeFloat, len(v), v)
}

func (b *docBuilder) vec2(v ...[2]float32) int {
	return b.add(gltfAccessorTypeVec2, gltfComponentTypeFloat, len(v), v)
}

func (b *docBuilder) u16(v ...uint16) int {
	return b.add(gltfAccessorTypeScalar, gltfComponentTypeUnsignedShort, len(v), v)
}

func (b *docBuilder) primitive(attrs map[string]int, indices *int, mode *int) {
	p := map[string]any{"attributes": attrs}
	if indices != nil {
		p["indices"] = *indices
	}
	if mode != nil {
		p["mode"] = *mode
	}
	b.primitives = append(b.primitives, p)
}

func (b *docBuilder) document(buffer map[string]any) []byte {
	doc := map[string]any{
		"asset":       map[string]any{"version": b.version},
		"meshes":      []any{map[string]any{"primitives": b.primitives}},
		"accessors":   b.accessors,
		"bufferViews": b.bufferViews,
		"buffers":     []any{buffer},
	}
	out, _ := json.Marshal(doc)
	return out
}

func (b *docBuilder) gltf() []byte {
	return b.document(map[string]any{
		"uri":        "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(b.bin.Bytes()),
		"byteLength": b.bin.Len(),
	})
}

func (b *docBuilder) glb() []byte {
	jsonChunk := b.document(map[string]any{"byteLength": b.bin.Len()})
	for len(jsonChunk)%4 != 0 {
		jsonChunk = append(jsonChunk, ' ')
	}
	binChunk := append([]byte(nil), b.bin.Bytes()...)
	for len(binChunk)%4 != 0 {
		binChunk = append(binChunk, 0)
	}

	var out bytes.Buffer
	total := 12 + 8 + len(jsonChunk) + 8 + len(binChunk)
	_ = binary.Write(&out, binary.LittleEndian, gltfGLBHeader{Magic: gltfGLBMagic, Version: gltfGLBVersion, Length: uint32(total)})
	_ = binary.Write(&out, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(jsonChunk)), ChunkType: gltfGLBChunkJSON})
	out.Write(jsonChunk)
	_ = binary.Write(&out, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(binChunk)), ChunkType: gltfGLBChunkBIN})
	out.Write(binChunk)
	return out.Bytes()
}

func intPtr(v int) *int { return &v }

var triangle = [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}

func TestLoadMeshReader_IndexedTriangle(t *testing.T) {
	b := newDocBuilder()
	pos := b.vec3(triangle...)
	idx := b.u16(0, 1, 2)
	b.primitive(map[string]int{"POSITION": pos}, &idx, nil)

	m, err := NewLoader().LoadMeshReader("tri", bytes.NewReader(b.gltf()), false)
	require.NoError(t, err)

	assert.Equal(t, []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}, m.Positions)
	assert.Equal(t, []uint32{0, 1, 2}, m.Indices)
	assert.Empty(t, m.Normals)
	assert.Empty(t, m.UVs)
	assert.NotPanics(t, m.Validate)
}

func TestLoadMeshReader_MergesPrimitives(t *testing.T) {
	b := newDocBuilder()
	pos0 := b.vec3(triangle...)
	nrm0 := b.vec3([3]float32{0, 0, 1}, [3]float32{0, 0, 1}, [3]float32{0, 0, 1})
	uv0 := b.vec2([2]float32{0, 0}, [2]float32{1, 0}, [2]float32{0, 1})
	b.primitive(map[string]int{"POSITION": pos0, "NORMAL": nrm0, "TEXCOORD_0": uv0}, nil, nil)

	pos1 := b.vec3([3]float32{2, 0, 0}, [3]float32{3, 0, 0}, [3]float32{2, 1, 0})
	idx1 := b.u16(2, 1, 0)
	b.primitive(map[string]int{"POSITION": pos1}, &idx1, intPtr(gltfPrimitiveModeTriangles))

	m, err := NewLoader().LoadMeshReader("merged", bytes.NewReader(b.gltf()), false)
	require.NoError(t, err)

	assert.Len(t, m.Positions, 6)
	assert.Equal(t, []uint32{0, 1, 2, 5, 4, 3}, m.Indices)
	require.Len(t, m.Normals, 6)
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, m.Normals[0])
	assert.Equal(t, mgl32.Vec3{}, m.Normals[4])
	require.Len(t, m.UVs, 6)
	assert.Equal(t, mgl32.Vec2{1, 0}, m.UVs[1])
	assert.Equal(t, mgl32.Vec2{}, m.UVs[5])
	assert.NotPanics(t, m.Validate)
}

func TestLoadMeshReader_BackfillsLaterAttributes(t *testing.T) {
	b := newDocBuilder()
	pos0 := b.vec3(triangle...)
	b.primitive(map[string]int{"POSITION": pos0}, nil, nil)
	pos1 := b.vec3(triangle...)
	nrm1 := b.vec3([3]float32{1, 0, 0}, [3]float32{1, 0, 0}, [3]float32{1, 0, 0})
	b.primitive(map[string]int{"POSITION": pos1, "NORMAL": nrm1}, nil, nil)

	m, err := NewLoader().LoadMeshReader("backfill", bytes.NewReader(b.gltf()), false)
	require.NoError(t, err)

	require.Len(t, m.Normals, 6)
	assert.Equal(t, mgl32.Vec3{}, m.Normals[2])
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, m.Normals[3])
}

func TestLoadMeshReader_GLB(t *testing.T) {
	b := newDocBuilder()
	pos := b.vec3(triangle...)
	idx := b.u16(0, 2, 1)
	b.primitive(map[string]int{"POSITION": pos}, &idx, nil)

	m, err := NewLoader().LoadMeshReader("tri.glb", bytes.NewReader(b.glb()), true)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 2, 1}, m.Indices)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, m.Positions[2])
}

func TestLoadMeshReader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		build   func() []byte
		options []LoaderBuilderOption
		isGLB   bool
		target  error
		message string
	}{
		{
			name: "wrong version",
			build: func() []byte {
				b := newDocBuilder()
				b.version = "1.0"
				pos := b.vec3(triangle...)
				b.primitive(map[string]int{"POSITION": pos}, nil, nil)
				return b.gltf()
			},
			target: errInvalidGLTFVersion,
		},
		{
			name: "mesh index out of range",
			build: func() []byte {
				b := newDocBuilder()
				pos := b.vec3(triangle...)
				b.primitive(map[string]int{"POSITION": pos}, nil, nil)
				return b.gltf()
			},
			options: []LoaderBuilderOption{WithMeshIndex(3)},
			target:  ErrMeshIndex,
		},
		{
			name: "only points",
			build: func() []byte {
				b := newDocBuilder()
				pos := b.vec3(triangle...)
				b.primitive(map[string]int{"POSITION": pos}, nil, intPtr(0))
				return b.gltf()
			},
			target: ErrNoTriangles,
		},
		{
			name: "index past vertex count",
			build: func() []byte {
				b := newDocBuilder()
				pos := b.vec3(triangle...)
				idx := b.u16(0, 1, 7)
				b.primitive(map[string]int{"POSITION": pos}, &idx, nil)
				return b.gltf()
			},
			message: "exceeds vertex count",
		},
		{
			name: "missing position",
			build: func() []byte {
				b := newDocBuilder()
				nrm := b.vec3(triangle...)
				b.primitive(map[string]int{"NORMAL": nrm}, nil, nil)
				return b.gltf()
			},
			message: "missing POSITION",
		},
		{
			name: "accessor past buffer end",
			build: func() []byte {
				b := newDocBuilder()
				pos := b.vec3(triangle...)
				b.accessors[pos]["count"] = 30
				b.primitive(map[string]int{"POSITION": pos}, nil, nil)
				return b.gltf()
			},
			target: errAccessorBounds,
		},
		{
			name: "bad GLB magic",
			build: func() []byte {
				b := newDocBuilder()
				pos := b.vec3(triangle...)
				b.primitive(map[string]int{"POSITION": pos}, nil, nil)
				data := b.glb()
				data[0] = 'x'
				return data
			},
			isGLB:  true,
			target: errInvalidGLBMagic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(tt.options...).LoadMeshReader(tt.name, bytes.NewReader(tt.build()), tt.isGLB)
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			if tt.message != "" {
				assert.True(t, strings.Contains(err.Error(), tt.message), err.Error())
			}
		})
	}
}

func TestLoadMesh_FileAndCache(t *testing.T) {
	b := newDocBuilder()
	pos := b.vec3(triangle...)
	b.primitive(map[string]int{"POSITION": pos}, nil, nil)

	path := filepath.Join(t.TempDir(), "tri.gltf")
	require.NoError(t, os.WriteFile(path, b.gltf(), 0o644))

	l := NewLoader()
	first, err := l.LoadMesh(path)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2}, first.Indices)

	require.NoError(t, os.Remove(path))
	second, err := l.LoadMesh(path)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Same(t, first, l.Get(path))
	assert.Len(t, l.Meshes(), 1)
}

func TestLoadMesh_MissingFile(t *testing.T) {
	_, err := NewLoader().LoadMesh(filepath.Join(t.TempDir(), "absent.glb"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
