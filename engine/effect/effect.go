package effect

import (
	"sync"

	"github.com/Carmen-Shannon/disintegrate/common"
	"github.com/Carmen-Shannon/disintegrate/engine/camera"
	"github.com/Carmen-Shannon/disintegrate/engine/fragment"
	"github.com/Carmen-Shannon/disintegrate/engine/renderer/batcher"
	"github.com/Carmen-Shannon/disintegrate/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
)

// Transform is the live world transform of the object being disintegrated.
// It is read once per Simulate so the effect follows the object.
type Transform interface {
	Position() mgl32.Vec3
	Rotation() mgl32.Quat
}

// effect is the implementation of the Effect interface.
type effect struct {
	mu *sync.Mutex

	instance  *Instance
	batcher   batcher.Batcher
	transform Transform
	material  material.Material
	camera    camera.Camera

	params TriggerParams
	random common.Random

	onComplete func()
	done       bool
	stats      batcher.Stats
}

// Effect is one playing disintegration: an Instance driven each tick, with its draws
// collected by a Batcher and submitted to a renderer.
//
// Simulate and Submit are split so a scene can simulate many effects in parallel and then
// submit them serially from the render goroutine. Tick does both.
type Effect interface {
	// Simulate advances the effect by dt seconds and records this tick's draws.
	// When the active set empties the effect becomes done and the completion callback fires.
	//
	// Parameters:
	//   - dt: seconds since the previous tick
	Simulate(dt float32)

	// Submit issues the draws recorded by the last Simulate and clears them.
	//
	// Parameters:
	//   - d: the renderer to draw through
	//
	// Returns:
	//   - batcher.Stats: the draw calls issued
	//   - error: any renderer error
	Submit(d batcher.Drawer) (batcher.Stats, error)

	// Tick runs Simulate then Submit.
	//
	// Parameters:
	//   - dt: seconds since the previous tick
	//   - d: the renderer to draw through
	//
	// Returns:
	//   - error: any renderer error
	Tick(dt float32, d batcher.Drawer) error

	// Discard drops the draws recorded by the last Simulate without issuing them.
	// Used when a frame cannot be acquired so a later Submit only carries one tick.
	Discard()

	// Done reports whether the effect has completed or been stopped.
	Done() bool

	// ActiveCount returns the number of fragments still in flight.
	ActiveCount() int

	// Stop ends the effect immediately, discarding pending draws. The completion callback
	// fires if it has not already. Stopping a done effect does nothing.
	Stop()

	// SetOnComplete sets the callback fired exactly once when the effect finishes.
	//
	// Parameters:
	//   - fn: the callback (or nil to disable)
	SetOnComplete(fn func())

	// Instance returns the simulation state. It is not synchronized with Simulate; read it
	// only between ticks, or use ActiveCount.
	Instance() *Instance

	// Stats returns the draw calls issued by the last Submit.
	Stats() batcher.Stats
}

var _ Effect = &effect{}

// NewEffect triggers set from originLocal and wraps the result as an Effect.
// It panics if set is nil.
//
// Parameters:
//   - set: the decomposed fragments of the source object
//   - originLocal: the trigger point in the object's local space
//   - options: variadic list of EffectBuilderOption functions
//
// Returns:
//   - Effect: the playing effect
func NewEffect(set *fragment.Set, originLocal mgl32.Vec3, options ...EffectBuilderOption) Effect {
	if set == nil {
		panic("effect: NewEffect requires a fragment set")
	}
	e := &effect{
		mu:     &sync.Mutex{},
		params: DefaultTriggerParams(),
	}
	for _, opt := range options {
		opt(e)
	}
	if e.batcher == nil {
		e.batcher = batcher.NewBatcher()
	}
	if e.material == nil {
		e.material = material.NewMaterial(material.WithDoubleSided(true))
	}
	e.instance = Trigger(set, originLocal, e.params, e.random)
	return e
}

func (e *effect) Simulate(dt float32) {
	e.mu.Lock()
	if e.done {
		e.mu.Unlock()
		return
	}
	var callback func()
	if e.instance.Step(dt, e.frame(), e.batcher) {
		callback = e.finish()
	}
	e.mu.Unlock()

	if callback != nil {
		callback()
	}
}

func (e *effect) Submit(d batcher.Drawer) (batcher.Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats, err := e.batcher.Submit(d, e.camera)
	e.stats = stats
	return stats, err
}

func (e *effect) Tick(dt float32, d batcher.Drawer) error {
	e.Simulate(dt)
	_, err := e.Submit(d)
	return err
}

func (e *effect) Discard() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batcher.Reset()
	e.stats = batcher.Stats{}
}

func (e *effect) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.instance.ActiveCount()
}

func (e *effect) Done() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

func (e *effect) Stop() {
	e.mu.Lock()
	if e.done {
		e.mu.Unlock()
		return
	}
	e.batcher.Reset()
	callback := e.finish()
	e.mu.Unlock()

	if callback != nil {
		callback()
	}
}

func (e *effect) SetOnComplete(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onComplete = fn
}

func (e *effect) Instance() *Instance {
	return e.instance
}

func (e *effect) Stats() batcher.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// finish marks the effect done and hands back the completion callback for the caller to run
// after releasing the lock. Callers must hold e.mu.
func (e *effect) finish() func() {
	e.done = true
	callback := e.onComplete
	e.onComplete = nil
	return callback
}

// frame snapshots the object and camera for one Step. Callers must hold e.mu.
func (e *effect) frame() Frame {
	f := Frame{
		ObjectRotation: mgl32.QuatIdent(),
		CameraRotation: mgl32.QuatIdent(),
		Material:       e.material,
	}
	if e.transform != nil {
		f.ObjectPosition = e.transform.Position()
		f.ObjectRotation = e.transform.Rotation()
	}
	if e.camera != nil {
		f.CameraRotation = e.camera.Rotation()
	}
	return f
}
