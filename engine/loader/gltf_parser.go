package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	errInvalidGLTFVersion = errors.New("invalid glTF version: must be 2.0")
	errInvalidGLBMagic    = errors.New("invalid GLB magic number")
	errInvalidGLBVersion  = errors.New("invalid GLB version: must be 2")
	errMissingJSONChunk   = errors.New("GLB file missing JSON chunk")
	errInvalidBufferURI   = errors.New("invalid buffer URI")
	errBufferSizeMismatch = errors.New("buffer size mismatch")
	errAccessorBounds     = errors.New("accessor reads past the end of its buffer")
)

// gltfParser decodes a glTF or GLB document and reads typed accessor data out of its buffers.
type gltfParser struct {
	// baseDir resolves relative buffer URIs. Empty disables external buffers.
	baseDir  string
	document *gltfDocument
	glbChunk []byte
}

// parseFile reads path and detects glTF JSON vs GLB from the extension or the magic number.
func (p *gltfParser) parseFile(path string) error {
	p.baseDir = filepath.Dir(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".glb" || (len(data) >= 4 && binary.LittleEndian.Uint32(data[:4]) == gltfGLBMagic) {
		return p.parseGLB(data)
	}
	return p.parseGLTF(data)
}

func (p *gltfParser) parseReader(r io.Reader, isGLB bool) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}
	if isGLB {
		return p.parseGLB(data)
	}
	return p.parseGLTF(data)
}

func (p *gltfParser) parseGLTF(data []byte) error {
	var doc gltfDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse glTF JSON: %w", err)
	}
	return p.finish(&doc)
}

// parseGLB splits a GLB container into its JSON and BIN chunks.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#glb-file-format-specification
func (p *gltfParser) parseGLB(data []byte) error {
	if len(data) < 12 {
		return errors.New("GLB file too small")
	}

	r := bytes.NewReader(data)

	var header gltfGLBHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("failed to read GLB header: %w", err)
	}
	if header.Magic != gltfGLBMagic {
		return errInvalidGLBMagic
	}
	if header.Version != gltfGLBVersion {
		return errInvalidGLBVersion
	}

	var jsonData []byte
	for {
		var chunk gltfGLBChunkHeader
		if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("failed to read chunk header: %w", err)
		}
		if int64(chunk.ChunkLength) > int64(r.Len()) {
			return fmt.Errorf("chunk length %d exceeds remaining %d bytes", chunk.ChunkLength, r.Len())
		}

		payload := make([]byte, chunk.ChunkLength)
		if _, err := io.ReadFull(r, payload); err != nil {
			return fmt.Errorf("failed to read chunk data: %w", err)
		}

		switch chunk.ChunkType {
		case gltfGLBChunkJSON:
			jsonData = payload
		case gltfGLBChunkBIN:
			p.glbChunk = payload
		}
	}

	if jsonData == nil {
		return errMissingJSONChunk
	}
	return p.parseGLTF(jsonData)
}

func (p *gltfParser) finish(doc *gltfDocument) error {
	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return errInvalidGLTFVersion
	}
	if err := p.loadBuffers(doc); err != nil {
		return fmt.Errorf("failed to load buffers: %w", err)
	}
	p.document = doc
	return nil
}

// loadBuffers fills each buffer from a data URI, an external file or the GLB BIN chunk.
func (p *gltfParser) loadBuffers(doc *gltfDocument) error {
	for i := range doc.Buffers {
		buf := &doc.Buffers[i]

		switch {
		case buf.URI == "" && i == 0 && p.glbChunk != nil:
			buf.Data = p.glbChunk
		case buf.URI == "":
			return fmt.Errorf("buffer %d has no URI and no GLB binary chunk", i)
		default:
			data, err := p.loadBufferURI(buf.URI)
			if err != nil {
				return fmt.Errorf("buffer %d: %w", i, err)
			}
			buf.Data = data
		}

		if len(buf.Data) < buf.ByteLength {
			return fmt.Errorf("buffer %d: %w", i, errBufferSizeMismatch)
		}
	}
	return nil
}

func (p *gltfParser) loadBufferURI(uri string) ([]byte, error) {
	if strings.HasPrefix(uri, "data:") {
		return decodeDataURI(uri)
	}
	if p.baseDir == "" {
		return nil, fmt.Errorf("external buffer %q needs a file path to resolve against", uri)
	}

	data, err := os.ReadFile(filepath.Join(p.baseDir, uri))
	if err != nil {
		return nil, fmt.Errorf("failed to load buffer file %q: %w", uri, err)
	}
	return data, nil
}

// decodeDataURI decodes data:[<mediatype>];base64,<data>.
func decodeDataURI(uri string) ([]byte, error) {
	comma := strings.Index(uri, ",")
	if comma < 0 {
		return nil, errInvalidBufferURI
	}
	if !strings.Contains(uri[5:comma], "base64") {
		return nil, fmt.Errorf("unsupported data URI encoding: %s", uri[5:comma])
	}

	data, err := base64.StdEncoding.DecodeString(uri[comma+1:])
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	return data, nil
}

// readElements returns the tightly packed bytes of every element of an accessor, honoring
// the buffer view's stride.
func (p *gltfParser) readElements(index int, elementSize int) ([]byte, *gltfAccessor, error) {
	if index < 0 || index >= len(p.document.Accessors) {
		return nil, nil, fmt.Errorf("accessor index %d out of range", index)
	}
	acc := &p.document.Accessors[index]
	if acc.Sparse != nil {
		return nil, nil, errors.New("sparse accessors are not supported")
	}
	if acc.BufferView == nil {
		return nil, nil, errors.New("accessor has no bufferView")
	}
	if *acc.BufferView < 0 || *acc.BufferView >= len(p.document.BufferViews) {
		return nil, nil, fmt.Errorf("bufferView index %d out of range", *acc.BufferView)
	}
	bv := &p.document.BufferViews[*acc.BufferView]
	if bv.Buffer < 0 || bv.Buffer >= len(p.document.Buffers) {
		return nil, nil, fmt.Errorf("buffer index %d out of range", bv.Buffer)
	}
	data := p.document.Buffers[bv.Buffer].Data

	stride := elementSize
	if bv.ByteStride != nil && *bv.ByteStride > 0 {
		stride = *bv.ByteStride
	}
	start := bv.ByteOffset + acc.ByteOffset
	if acc.Count > 0 && start+(acc.Count-1)*stride+elementSize > len(data) {
		return nil, nil, fmt.Errorf("accessor %d: %w", index, errAccessorBounds)
	}

	out := make([]byte, acc.Count*elementSize)
	for i := 0; i < acc.Count; i++ {
		src := start + i*stride
		copy(out[i*elementSize:(i+1)*elementSize], data[src:src+elementSize])
	}
	return out, acc, nil
}

func (p *gltfParser) checkFloatAccessor(index int, accessorType string) error {
	if index < 0 || index >= len(p.document.Accessors) {
		return fmt.Errorf("accessor index %d out of range", index)
	}
	acc := &p.document.Accessors[index]
	if acc.Type != accessorType || acc.ComponentType != gltfComponentTypeFloat {
		return fmt.Errorf("accessor %d is not %s FLOAT: type=%s, componentType=%d", index, accessorType, acc.Type, acc.ComponentType)
	}
	return nil
}

func (p *gltfParser) readVec3(index int) ([]mgl32.Vec3, error) {
	if err := p.checkFloatAccessor(index, gltfAccessorTypeVec3); err != nil {
		return nil, err
	}
	data, acc, err := p.readElements(index, 12)
	if err != nil {
		return nil, err
	}

	out := make([]mgl32.Vec3, acc.Count)
	for i := range out {
		for c := 0; c < 3; c++ {
			out[i][c] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*12+c*4:]))
		}
	}
	return out, nil
}

func (p *gltfParser) readVec2(index int) ([]mgl32.Vec2, error) {
	if err := p.checkFloatAccessor(index, gltfAccessorTypeVec2); err != nil {
		return nil, err
	}
	data, acc, err := p.readElements(index, 8)
	if err != nil {
		return nil, err
	}

	out := make([]mgl32.Vec2, acc.Count)
	for i := range out {
		out[i][0] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*8:]))
		out[i][1] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*8+4:]))
	}
	return out, nil
}

func (p *gltfParser) readIndices(index int) ([]uint32, error) {
	if index < 0 || index >= len(p.document.Accessors) {
		return nil, fmt.Errorf("accessor index %d out of range", index)
	}
	acc := &p.document.Accessors[index]
	if acc.Type != gltfAccessorTypeScalar {
		return nil, fmt.Errorf("index accessor is not SCALAR: type=%s", acc.Type)
	}

	var size int
	switch acc.ComponentType {
	case gltfComponentTypeUnsignedByte:
		size = 1
	case gltfComponentTypeUnsignedShort:
		size = 2
	case gltfComponentTypeUnsignedInt:
		size = 4
	default:
		return nil, fmt.Errorf("unsupported index component type: %d", acc.ComponentType)
	}

	data, _, err := p.readElements(index, size)
	if err != nil {
		return nil, err
	}

	out := make([]uint32, acc.Count)
	for i := range out {
		switch size {
		case 1:
			out[i] = uint32(data[i])
		case 2:
			out[i] = uint32(binary.LittleEndian.Uint16(data[i*2:]))
		case 4:
			out[i] = binary.LittleEndian.Uint32(data[i*4:])
		}
	}
	return out, nil
}
