package batcher

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/disintegrate/engine/camera"
	"github.com/Carmen-Shannon/disintegrate/engine/model"
	"github.com/Carmen-Shannon/disintegrate/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	instanced  bool
	mesh       *model.Mesh
	transforms []mgl32.Mat4
}

type recordingDrawer struct {
	calls        []recordedCall
	failSingle   bool
	failInstance bool
}

func (d *recordingDrawer) DrawMesh(mesh *model.Mesh, _ material.Material, transform mgl32.Mat4, _ camera.Camera) error {
	if d.failSingle {
		return errors.New("boom")
	}
	d.calls = append(d.calls, recordedCall{mesh: mesh, transforms: []mgl32.Mat4{transform}})
	return nil
}

func (d *recordingDrawer) DrawMeshInstanced(mesh *model.Mesh, _ material.Material, transforms []mgl32.Mat4, _ camera.Camera) error {
	if d.failInstance {
		return errors.New("boom")
	}
	// Copy: the batcher reuses its buffer on the next tick.
	cp := append([]mgl32.Mat4(nil), transforms...)
	d.calls = append(d.calls, recordedCall{instanced: true, mesh: mesh, transforms: cp})
	return nil
}

func translation(i int) mgl32.Mat4 {
	return mgl32.Translate3D(float32(i), 0, 0)
}

func TestChunks(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		size  int
		sizes []int
	}{
		{name: "empty", n: 0, size: 1023, sizes: nil},
		{name: "single", n: 1, size: 1023, sizes: []int{1}},
		{name: "exact cap", n: 1023, size: 1023, sizes: []int{1023}},
		{name: "one over cap", n: 1024, size: 1023, sizes: []int{1023, 1}},
		{name: "2500 at 1023", n: 2500, size: 1023, sizes: []int{1023, 1023, 454}},
		{name: "cap of one", n: 3, size: 1, sizes: []int{1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transforms := make([]mgl32.Mat4, tt.n)
			for i := range transforms {
				transforms[i] = translation(i)
			}
			chunks := Chunks(transforms, tt.size)

			var sizes []int
			next := 0
			for _, c := range chunks {
				sizes = append(sizes, len(c))
				for _, m := range c {
					assert.Equal(t, translation(next), m)
					next++
				}
			}
			assert.Equal(t, tt.sizes, sizes)
			assert.Equal(t, tt.n, next)
		})
	}
}

func TestChunksPanicsOnNonPositiveSize(t *testing.T) {
	assert.Panics(t, func() { Chunks(nil, 0) })
	assert.Panics(t, func() { Chunks(nil, -1) })
}

func TestSubmitChunksInstances(t *testing.T) {
	b := NewBatcher()
	for i := 0; i < 2500; i++ {
		b.AddInstance(translation(i))
	}
	d := &recordingDrawer{}

	stats, err := b.Submit(d, nil)
	require.NoError(t, err)

	require.Len(t, d.calls, 3)
	assert.Equal(t, Stats{InstancedDraws: 3, Instances: 2500}, stats)

	next := 0
	for i, want := range []int{1023, 1023, 454} {
		call := d.calls[i]
		assert.True(t, call.instanced)
		assert.Same(t, b.ParticleMesh(), call.mesh)
		require.Len(t, call.transforms, want)
		for _, m := range call.transforms {
			assert.Equal(t, translation(next), m)
			next++
		}
	}
}

func TestSubmitSinglesBeforeInstances(t *testing.T) {
	b := NewBatcher(WithMaxInstances(2))
	meshA := model.NewQuad(1)
	meshB := model.NewQuad(2)
	mat := material.NewMaterial()

	b.AddInstance(translation(10))
	b.DrawSingle(meshA, mat, translation(1))
	b.AddInstance(translation(11))
	b.AddInstance(translation(12))
	b.DrawSingle(meshB, mat, translation(2))

	d := &recordingDrawer{}
	stats, err := b.Submit(d, nil)
	require.NoError(t, err)
	assert.Equal(t, Stats{SingleDraws: 2, InstancedDraws: 2, Instances: 3}, stats)
	assert.Equal(t, 4, stats.DrawCalls())

	require.Len(t, d.calls, 4)
	assert.False(t, d.calls[0].instanced)
	assert.Same(t, meshA, d.calls[0].mesh)
	assert.False(t, d.calls[1].instanced)
	assert.Same(t, meshB, d.calls[1].mesh)
	assert.Equal(t, []mgl32.Mat4{translation(10), translation(11)}, d.calls[2].transforms)
	assert.Equal(t, []mgl32.Mat4{translation(12)}, d.calls[3].transforms)
}

func TestSubmitClearsBuffers(t *testing.T) {
	tests := []struct {
		name   string
		drawer *recordingDrawer
		errors bool
	}{
		{name: "success", drawer: &recordingDrawer{}},
		{name: "single draw fails", drawer: &recordingDrawer{failSingle: true}, errors: true},
		{name: "instanced draw fails", drawer: &recordingDrawer{failInstance: true}, errors: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBatcher()
			b.DrawSingle(model.NewQuad(1), material.NewMaterial(), mgl32.Ident4())
			b.AddInstance(mgl32.Ident4())

			_, err := b.Submit(tt.drawer, nil)
			if tt.errors {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			singles, instances := b.Pending()
			assert.Zero(t, singles)
			assert.Zero(t, instances)
		})
	}
}

func TestSubmitEmptyIssuesNothing(t *testing.T) {
	b := NewBatcher()
	d := &recordingDrawer{}

	stats, err := b.Submit(d, nil)
	require.NoError(t, err)
	assert.Empty(t, d.calls)
	assert.Equal(t, Stats{}, stats)
}

func TestNewBatcherDefaults(t *testing.T) {
	b := NewBatcher()
	assert.Equal(t, DefaultMaxInstances, b.MaxInstances())
	require.NotNil(t, b.ParticleMesh())
	assert.Equal(t, 2, b.ParticleMesh().TriangleCount())
	assert.True(t, b.ParticleMaterial().DoubleSided())

	assert.Panics(t, func() { NewBatcher(WithMaxInstances(0)) })
}

func TestStatsAdd(t *testing.T) {
	a := Stats{SingleDraws: 1, InstancedDraws: 2, Instances: 3}
	b := Stats{SingleDraws: 4, InstancedDraws: 5, Instances: 6}
	assert.Equal(t, Stats{SingleDraws: 5, InstancedDraws: 7, Instances: 9}, a.Add(b))
}
