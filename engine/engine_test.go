package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/disintegrate/engine/camera"
	"github.com/Carmen-Shannon/disintegrate/engine/game_object"
	"github.com/Carmen-Shannon/disintegrate/engine/model"
	"github.com/Carmen-Shannon/disintegrate/engine/renderer/material"
	"github.com/Carmen-Shannon/disintegrate/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	mu       sync.Mutex
	events   []string
	beginErr error
	draws    int
	width    int
	height   int
}

func (r *fakeRenderer) record(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *fakeRenderer) BeginFrame() error {
	r.record("begin")
	return r.beginErr
}

func (r *fakeRenderer) EndFrame() { r.record("end") }
func (r *fakeRenderer) Present()  { r.record("present") }

func (r *fakeRenderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.width, r.height = width, height
}

func (r *fakeRenderer) MaxInstancesPerCall() int { return 1023 }

func (r *fakeRenderer) DrawMesh(*model.Mesh, material.Material, mgl32.Mat4, camera.Camera) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draws++
	return nil
}

func (r *fakeRenderer) DrawMeshInstanced(*model.Mesh, material.Material, []mgl32.Mat4, camera.Camera) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draws++
	return nil
}

func (r *fakeRenderer) frameEvents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeHost struct {
	onResize func(width, height int)
	run      func()
}

func (h *fakeHost) Run() {
	if h.run != nil {
		h.run()
	}
}

func (h *fakeHost) SetResizeCallback(callback func(width, height int)) {
	h.onResize = callback
}

func newScene(t *testing.T, r *fakeRenderer) scene.Scene {
	t.Helper()
	s := scene.NewScene("main", camera.NewCamera(), r, scene.WithSimulateWorkers(1))
	t.Cleanup(s.Release)
	return s
}

func newObject() game_object.GameObject {
	return game_object.NewGameObject(
		game_object.WithModel(model.NewModel(model.WithMesh(model.NewIcosphere(1, 0)))),
	)
}

func TestStepRunsOneFrame(t *testing.T) {
	r := &fakeRenderer{}
	s := newScene(t, r)
	s.Add(newObject())

	var ticks []float32
	e := NewEngine(r, WithScene(0, s))
	e.SetTickCallback(func(dt float32) { ticks = append(ticks, dt) })

	stats, err := e.Step(0.016)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.016}, ticks)
	assert.Equal(t, []string{"begin", "end", "present"}, r.frameEvents())
	assert.Equal(t, 1, stats.SingleDraws)
}

func TestStepSkipsDrawsWhenFrameUnavailable(t *testing.T) {
	r := &fakeRenderer{beginErr: errors.New("surface lost")}
	s := newScene(t, r)
	s.Add(newObject())
	e := NewEngine(r, WithScene(0, s))

	_, err := e.Step(0.016)
	require.Error(t, err)
	assert.Equal(t, []string{"begin"}, r.frameEvents())
	assert.Zero(t, r.draws)
}

func TestFailedFramesDoNotLeakDrawsIntoNextFrame(t *testing.T) {
	r := &fakeRenderer{beginErr: errors.New("surface lost")}
	s := newScene(t, r)
	obj := newObject()
	s.Disintegrate(obj, mgl32.Vec3{0, 0, 3}, nil, nil)
	fragments := obj.Fragments().Len()
	e := NewEngine(r, WithScene(0, s))

	for i := 0; i < 3; i++ {
		_, err := e.Step(0.1)
		require.Error(t, err)
	}
	assert.Zero(t, r.draws)
	assert.Zero(t, s.Stats())

	r.beginErr = nil
	stats, err := e.Step(0.1)
	require.NoError(t, err)
	assert.LessOrEqual(t, stats.SingleDraws+stats.Instances, fragments, "a frame carries at most one tick of fragment draws")
	assert.Equal(t, 1, s.Count())
}

func TestFailedFramesDropFinishedEffects(t *testing.T) {
	r := &fakeRenderer{beginErr: errors.New("surface lost")}
	s := newScene(t, r)
	obj := newObject()
	done := make(chan struct{})
	s.Disintegrate(obj, mgl32.Vec3{0, 0, 3}, nil, func() { close(done) })
	e := NewEngine(r, WithScene(0, s))

	for i := 0; i < 200 && s.Count() > 0; i++ {
		_, err := e.Step(0.05)
		require.Error(t, err)
	}

	select {
	case <-done:
	default:
		t.Fatal("effect never completed")
	}
	assert.Zero(t, s.Count())
	assert.Zero(t, r.draws)
}

func TestStepSkipsInactiveScenes(t *testing.T) {
	r := &fakeRenderer{}
	active := newScene(t, r)
	active.Add(newObject())
	inactive := newScene(t, r)
	inactive.Add(newObject())
	inactive.SetActive(false)

	e := NewEngine(r, WithScene(1, active), WithScene(0, inactive))
	stats, err := e.Step(0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SingleDraws)
	assert.Same(t, inactive, e.Scene(0))

	e.RemoveScene(0)
	assert.Nil(t, e.Scene(0))
}

func TestStepDrivesEffectsToCompletion(t *testing.T) {
	r := &fakeRenderer{}
	s := newScene(t, r)
	obj := newObject()
	done := make(chan struct{})
	s.Disintegrate(obj, mgl32.Vec3{0, 0, 3}, nil, func() { close(done) })

	e := NewEngine(r, WithScene(0, s), WithProfiling(true))
	for i := 0; i < 200 && s.Count() > 0; i++ {
		_, err := e.Step(0.05)
		require.NoError(t, err)
	}

	select {
	case <-done:
	default:
		t.Fatal("effect never completed")
	}
	assert.Zero(t, s.Count())
	assert.True(t, obj.Enabled())
}

func TestRunTicksUntilHostCloses(t *testing.T) {
	r := &fakeRenderer{}
	host := &fakeHost{}
	e := NewEngine(r, WithHost(host), WithTickRate(500))
	host.run = func() {
		assert.Eventually(t, func() bool {
			return len(r.frameEvents()) >= 9
		}, 2*time.Second, time.Millisecond)
	}

	finished := make(chan struct{})
	go func() {
		e.Run()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the host closed")
	}
	e.Quit()
}

func TestResizeUpdatesRendererAndCameras(t *testing.T) {
	r := &fakeRenderer{}
	host := &fakeHost{}
	s := newScene(t, r)
	NewEngine(r, WithHost(host), WithScene(0, s))
	require.NotNil(t, host.onResize)

	host.onResize(800, 400)
	assert.Equal(t, 800, r.width)
	assert.Equal(t, 400, r.height)
	assert.InDelta(t, 2, s.Camera().Aspect(), 1e-6)

	host.onResize(0, 0)
	assert.Equal(t, 800, r.width, "minimized windows are ignored")
}

func TestNewEnginePanicsWithoutRenderer(t *testing.T) {
	assert.Panics(t, func() { NewEngine(nil) })
	assert.Panics(t, func() { NewEngine(&fakeRenderer{}).Run() })
}
