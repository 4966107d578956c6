package scene

import (
	"bytes"
	"errors"
	"log"
	"os"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/disintegrate/engine/camera"
	"github.com/Carmen-Shannon/disintegrate/engine/config"
	"github.com/Carmen-Shannon/disintegrate/engine/effect"
	"github.com/Carmen-Shannon/disintegrate/engine/fragment"
	"github.com/Carmen-Shannon/disintegrate/engine/game_object"
	"github.com/Carmen-Shannon/disintegrate/engine/model"
	"github.com/Carmen-Shannon/disintegrate/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	mu           sync.Mutex
	maxInstances int
	singles      int
	instanced    []int
	failSingles  bool
}

func (r *fakeRenderer) MaxInstancesPerCall() int {
	return r.maxInstances
}

func (r *fakeRenderer) DrawMesh(*model.Mesh, material.Material, mgl32.Mat4, camera.Camera) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSingles {
		return errors.New("device lost")
	}
	r.singles++
	return nil
}

func (r *fakeRenderer) DrawMeshInstanced(_ *model.Mesh, _ material.Material, transforms []mgl32.Mat4, _ camera.Camera) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(transforms) > r.maxInstances {
		return errors.New("over cap")
	}
	r.instanced = append(r.instanced, len(transforms))
	return nil
}

func (r *fakeRenderer) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.singles = 0
	r.instanced = nil
}

func newTestScene(t *testing.T, r *fakeRenderer) Scene {
	t.Helper()
	s := NewScene("test", camera.NewCamera(), r, WithSimulateWorkers(2))
	t.Cleanup(s.Release)
	return s
}

// newSphere returns a 20-triangle object whose fragments all live exactly one second.
func newSphere() game_object.GameObject {
	return game_object.NewGameObject(
		game_object.WithModel(model.NewModel(model.WithName("sphere"), model.WithMesh(model.NewIcosphere(1, 0)))),
		game_object.WithFragmentOptions(fragment.WithLifetime(1, 1)),
	)
}

// instantConfig releases every fragment as soon as its age passes zero.
func instantConfig() *config.EffectConfig {
	cfg := config.DefaultEffectConfig()
	cfg.DelayFactor = 0
	cfg.DelayVariance = config.Range{}
	cfg.Seed = 1
	return cfg
}

func TestNewScenePanicsOnNilDependencies(t *testing.T) {
	assert.Panics(t, func() { NewScene("x", nil, &fakeRenderer{maxInstances: 1}) })
	assert.Panics(t, func() { NewScene("x", camera.NewCamera(), nil) })
}

func TestDisintegrateLifecycle(t *testing.T) {
	r := &fakeRenderer{maxInstances: 1023}
	s := newTestScene(t, r)
	obj := newSphere()
	completions := 0

	e := s.Disintegrate(obj, mgl32.Vec3{0, 0, 5}, instantConfig(), func() { completions++ })
	require.NotNil(t, e)
	assert.False(t, obj.Enabled(), "intact mesh hidden while fragments play")
	assert.Equal(t, 1, s.Count())
	assert.Equal(t, 1, s.ObjectCount())

	s.Update(0)
	stats, err := s.DrawCalls()
	require.NoError(t, err)
	assert.Equal(t, 20, stats.SingleDraws, "every fragment is dormant on the first frame")
	assert.Zero(t, stats.InstancedDraws)

	s.Update(0.5)
	_, err = s.DrawCalls()
	require.NoError(t, err)

	r.reset()
	s.Update(0.6)
	assert.Equal(t, 1, completions)
	assert.True(t, obj.Enabled(), "intact mesh restored on completion")
	assert.Equal(t, 1, s.Count(), "finished effects are dropped after their last submit")

	stats, err = s.DrawCalls()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.InstancedDraws)
	assert.Equal(t, 20, stats.Instances)
	assert.Equal(t, 1, stats.SingleDraws, "the restored object is drawn")
	assert.Equal(t, stats, s.Stats())
	assert.Zero(t, s.Count())
	assert.Equal(t, 1, completions)
}

func TestDisintegrateChunksToRendererCap(t *testing.T) {
	r := &fakeRenderer{maxInstances: 7}
	s := newTestScene(t, r)

	s.Disintegrate(newSphere(), mgl32.Vec3{}, instantConfig(), nil)
	s.Update(0.1)
	_, err := s.DrawCalls()
	require.NoError(t, err)

	r.reset()
	s.Update(0.1)
	stats, err := s.DrawCalls()
	require.NoError(t, err)
	assert.Equal(t, []int{7, 7, 6}, r.instanced)
	assert.Equal(t, 3, stats.InstancedDraws)
}

func TestConcurrentEffectsRestoreAfterLast(t *testing.T) {
	r := &fakeRenderer{maxInstances: 1023}
	s := newTestScene(t, r)
	obj := newSphere()

	first := s.Disintegrate(obj, mgl32.Vec3{1, 0, 0}, instantConfig(), nil)
	second := s.Disintegrate(obj, mgl32.Vec3{-1, 0, 0}, instantConfig(), nil)
	assert.Same(t, first.Instance().Set(), second.Instance().Set(), "one decomposition per object")
	assert.Equal(t, 2, s.Count())

	require.True(t, s.Stop(first))
	assert.False(t, obj.Enabled())
	assert.False(t, s.Stop(first), "already stopped")

	require.True(t, s.Stop(second))
	assert.True(t, obj.Enabled())
	assert.Zero(t, s.Count())
}

func TestRestoreRendererDisabled(t *testing.T) {
	s := newTestScene(t, &fakeRenderer{maxInstances: 1023})
	obj := newSphere()
	cfg := instantConfig()
	cfg.RestoreRenderer = false

	e := s.Disintegrate(obj, mgl32.Vec3{}, cfg, nil)
	s.Stop(e)
	assert.True(t, e.Done())
	assert.False(t, obj.Enabled())
}

func TestRemoveStopsEffects(t *testing.T) {
	s := newTestScene(t, &fakeRenderer{maxInstances: 1023})
	obj := newSphere()
	other := newSphere()
	id := s.Add(obj)
	s.Add(other)

	stopped := 0
	s.Disintegrate(obj, mgl32.Vec3{}, nil, func() { stopped++ })
	keep := s.Disintegrate(other, mgl32.Vec3{}, nil, nil)

	s.Remove(id)
	assert.Equal(t, 1, stopped)
	assert.Nil(t, s.Get(id))
	assert.Equal(t, []effect.Effect{keep}, s.Effects())
}

func TestClear(t *testing.T) {
	s := newTestScene(t, &fakeRenderer{maxInstances: 1023})
	stopped := 0
	for i := 0; i < 3; i++ {
		s.Disintegrate(newSphere(), mgl32.Vec3{}, nil, func() { stopped++ })
	}

	s.Clear()
	assert.Equal(t, 3, stopped)
	assert.Zero(t, s.Count())
	assert.Zero(t, s.ObjectCount())
}

func TestDrawCallsJoinsRendererErrors(t *testing.T) {
	r := &fakeRenderer{maxInstances: 1023, failSingles: true}
	s := newTestScene(t, r)
	s.Add(newSphere())
	s.Disintegrate(newSphere(), mgl32.Vec3{}, instantConfig(), nil)

	s.Update(0)
	stats, err := s.DrawCalls()
	require.Error(t, err)
	assert.Zero(t, stats.SingleDraws)
	assert.Equal(t, 1, s.Count(), "draw errors never drop a playing effect")
}

func TestAddAssignsIDs(t *testing.T) {
	s := newTestScene(t, &fakeRenderer{maxInstances: 1023})
	a := s.Add(newSphere())
	b := s.Add(newSphere())
	assert.NotEqual(t, a, b)
	assert.NotZero(t, a)
	assert.Panics(t, func() { s.Add(game_object.NewGameObject()) })
}

func TestDiscardDrawsKeepsOneTickPerFrame(t *testing.T) {
	r := &fakeRenderer{maxInstances: 1023}
	s := newTestScene(t, r)
	obj := newSphere()
	s.Disintegrate(obj, mgl32.Vec3{0, 0, 5}, instantConfig(), nil)

	for i := 0; i < 3; i++ {
		s.Update(0)
		s.DiscardDraws()
	}
	assert.Zero(t, r.singles)
	assert.Zero(t, s.Stats())

	s.Update(0)
	stats, err := s.DrawCalls()
	require.NoError(t, err)
	assert.Equal(t, 20, stats.SingleDraws, "only the current tick is drawn")
}

func TestDiscardDrawsDropsFinishedEffects(t *testing.T) {
	r := &fakeRenderer{maxInstances: 1023}
	s := newTestScene(t, r)
	obj := newSphere()
	completions := 0
	s.Disintegrate(obj, mgl32.Vec3{0, 0, 5}, instantConfig(), func() { completions++ })

	s.Update(0)
	s.DiscardDraws()
	s.Update(1.5)
	s.DiscardDraws()

	assert.Equal(t, 1, completions)
	assert.Zero(t, s.Count())
	assert.True(t, obj.Enabled())
	assert.Zero(t, r.singles)
	assert.Empty(t, r.instanced)
}

func TestLifetimesWithin(t *testing.T) {
	set := newSphere().Fragments()
	tests := []struct {
		name string
		r    config.Range
		want bool
	}{
		{name: "exact", r: config.Range{Min: 1, Max: 1}, want: true},
		{name: "covering", r: config.Range{Min: 0.5, Max: 2}, want: true},
		{name: "above", r: config.Range{Min: 3, Max: 4}, want: false},
		{name: "below", r: config.Range{Min: 0.1, Max: 0.5}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LifetimesWithin(set, tt.r))
		})
	}
}

func TestDisintegrateUsesObjectLifetimes(t *testing.T) {
	var out bytes.Buffer
	log.SetOutput(&out)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	r := &fakeRenderer{maxInstances: 1023}
	s := newTestScene(t, r)
	cfg := instantConfig()
	cfg.Lifetime = config.Range{Min: 3, Max: 4}

	e := s.Disintegrate(newSphere(), mgl32.Vec3{0, 0, 5}, cfg, nil)
	assert.InDelta(t, 1.0, e.Instance().LoopTime(), 1e-5, "the object's one-second lifetimes win")
	assert.Contains(t, out.String(), "lifetime range [3, 4]")
}
