package scene

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/disintegrate/engine/camera"
	"github.com/Carmen-Shannon/disintegrate/engine/config"
	"github.com/Carmen-Shannon/disintegrate/engine/effect"
	"github.com/Carmen-Shannon/disintegrate/engine/fragment"
	"github.com/Carmen-Shannon/disintegrate/engine/game_object"
	"github.com/Carmen-Shannon/disintegrate/engine/model"
	"github.com/Carmen-Shannon/disintegrate/engine/renderer/batcher"
	"github.com/Carmen-Shannon/disintegrate/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
)

// Renderer is the part of renderer.Renderer a Scene draws through.
type Renderer interface {
	batcher.Drawer

	// MaxInstancesPerCall returns the largest transform slice DrawMeshInstanced accepts.
	MaxInstancesPerCall() int
}

// Scene holds disintegratable GameObjects and the effects playing on them.
//
// A frame is split in two. Update advances every object and simulates every live effect in
// parallel on a worker pool; effects share no mutable state, so no ordering is needed.
// DrawCalls then runs on the render goroutine, drawing intact objects and submitting each
// effect's recorded draws serially. Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// SetName sets the scene's identifier.
	SetName(name string)

	// Active returns whether this scene is currently active for rendering.
	Active() bool

	// SetActive sets whether this scene is active for rendering.
	SetActive(active bool)

	// Camera returns the scene's camera.
	Camera() camera.Camera

	// Renderer returns the scene's renderer.
	Renderer() Renderer

	// Add registers obj with the scene, assigning an ID if it has none.
	// Panics if the object has no Model.
	//
	// Parameters:
	//   - obj: the GameObject to add
	//
	// Returns:
	//   - uint64: the object's ID
	Add(obj game_object.GameObject) uint64

	// Get retrieves a GameObject by ID, or nil if not found.
	//
	// Parameters:
	//   - id: the object's ID
	//
	// Returns:
	//   - game_object.GameObject: the object or nil
	Get(id uint64) game_object.GameObject

	// Remove unregisters the object with the given ID and stops any effect playing on it.
	//
	// Parameters:
	//   - id: the object's ID
	Remove(id uint64)

	// ObjectCount returns the number of registered objects.
	ObjectCount() int

	// Disintegrate hides obj and starts an effect bursting from worldOrigin.
	//
	// The origin is converted into the object's local space and the object's cached
	// decomposition is reused, so repeated calls on one object only pay for triggering.
	// Fragment lifetimes therefore come from the object's own decomposition (its
	// WithFragmentOptions), not from cfg.Lifetime; a mismatch is logged.
	// When cfg.RestoreRenderer is set the object is shown again once its last playing effect
	// completes. onComplete, if non-nil, runs after that.
	//
	// Parameters:
	//   - obj: the object to disintegrate; added to the scene if not already present
	//   - worldOrigin: the burst origin in world space
	//   - cfg: the effect tunables; nil uses config.DefaultEffectConfig
	//   - onComplete: optional callback fired once when the effect finishes
	//
	// Returns:
	//   - effect.Effect: the playing effect
	Disintegrate(obj game_object.GameObject, worldOrigin mgl32.Vec3, cfg *config.EffectConfig, onComplete func()) effect.Effect

	// Stop ends a playing effect. Its completion callback fires if it has not already.
	//
	// Parameters:
	//   - e: the effect to stop
	//
	// Returns:
	//   - bool: false if the effect is not playing in this scene
	Stop(e effect.Effect) bool

	// Count returns the number of live effects.
	Count() int

	// Effects returns a snapshot of the live effects.
	Effects() []effect.Effect

	// Clear stops every effect and removes every object.
	Clear()

	// Update advances object spin, the camera controller and every live effect by deltaTime.
	//
	// Parameters:
	//   - deltaTime: elapsed time since the last update in seconds
	Update(deltaTime float32)

	// DrawCalls draws every enabled object and submits every effect's recorded draws, then
	// drops effects that finished. Must be called between the renderer's BeginFrame and
	// EndFrame. Renderer errors are logged and returned joined; they never stop the frame.
	//
	// Returns:
	//   - batcher.Stats: the draw calls issued this frame
	//   - error: every draw error joined, or nil
	DrawCalls() (batcher.Stats, error)

	// DiscardDraws drops every effect's recorded draws without issuing them and removes
	// effects that finished. Called instead of DrawCalls when no frame could be acquired,
	// so draw buffers never carry more than one tick.
	DiscardDraws()

	// Stats returns the draw calls issued by the last DrawCalls.
	Stats() batcher.Stats

	// Release stops the scene's worker pool. The scene must not be used afterwards.
	Release()
}

type scene struct {
	mu *sync.RWMutex

	name   string
	active bool

	registry map[uint64]game_object.GameObject
	nextID   uint64

	cam camera.Camera
	r   Renderer

	particleMesh     *model.Mesh
	particleMaterial material.Material
	defaultConfig    *config.EffectConfig

	effects []effect.Effect
	// owners maps each live effect to the ID of the object it plays on.
	owners map[effect.Effect]uint64
	// playing counts live effects per object so the intact mesh is restored only after the last one.
	playing map[uint64]int

	stats batcher.Stats

	// simulatePool runs Effect.Simulate for every live effect in parallel during Update.
	// Workers persist across frames.
	simulatePool    worker.DynamicWorkerPool
	simulateWorkers int
}

var _ Scene = &scene{}

// NewScene creates a new Scene drawing through r from cam's viewpoint.
// Both are required and NewScene panics if either is nil.
//
// Parameters:
//   - name: the name of the scene
//   - cam: the camera to attach (must not be nil)
//   - r: the renderer to attach (must not be nil)
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, cam camera.Camera, r Renderer, options ...SceneBuilderOption) Scene {
	if cam == nil {
		panic("scene: NewScene requires a non-nil Camera")
	}
	if r == nil {
		panic("scene: NewScene requires a non-nil Renderer")
	}

	s := &scene{
		mu:              &sync.RWMutex{},
		name:            name,
		active:          true,
		cam:             cam,
		r:               r,
		registry:        make(map[uint64]game_object.GameObject),
		nextID:          1,
		owners:          make(map[effect.Effect]uint64),
		playing:         make(map[uint64]int),
		defaultConfig:   config.DefaultEffectConfig(),
		simulateWorkers: max(runtime.NumCPU()-1, 1),
	}

	for _, option := range options {
		option(s)
	}

	if s.particleMesh == nil {
		s.particleMesh = model.NewQuad(0.08)
	}
	if s.particleMaterial == nil {
		s.particleMaterial = material.NewMaterial(
			material.WithName("particle"),
			material.WithDoubleSided(true),
		)
	}

	// Queue size of 256 absorbs bursts of effects without blocking Update.
	s.simulatePool = worker.NewDynamicWorkerPool(s.simulateWorkers, 256, 1*time.Second)

	return s
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Camera() camera.Camera {
	return s.cam
}

func (s *scene) Renderer() Renderer {
	return s.r
}

func (s *scene) Add(obj game_object.GameObject) uint64 {
	if obj.Model() == nil {
		panic("scene: Add requires an object with a Model")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(obj)
}

func (s *scene) addLocked(obj game_object.GameObject) uint64 {
	if obj.ID() == 0 {
		obj.SetID(s.nextID)
		s.nextID++
	}
	s.registry[obj.ID()] = obj
	return obj.ID()
}

func (s *scene) Get(id uint64) game_object.GameObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry[id]
}

func (s *scene) Remove(id uint64) {
	s.mu.Lock()
	delete(s.registry, id)
	var stopping []effect.Effect
	for _, e := range s.effects {
		if s.owners[e] == id {
			stopping = append(stopping, e)
		}
	}
	s.mu.Unlock()

	for _, e := range stopping {
		s.Stop(e)
	}
}

func (s *scene) ObjectCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registry)
}

func (s *scene) Disintegrate(obj game_object.GameObject, worldOrigin mgl32.Vec3, cfg *config.EffectConfig, onComplete func()) effect.Effect {
	mdl := obj.Model()
	if mdl == nil {
		panic("scene: Disintegrate requires an object with a Model")
	}
	if cfg == nil {
		cfg = s.defaultConfig
	}

	set := obj.Fragments()
	origin := obj.WorldToLocal(worldOrigin)
	if !LifetimesWithin(set, cfg.Lifetime) {
		log.Printf("[Scene] %s: object %d was decomposed outside lifetime range [%v, %v]; using its own lifetimes",
			s.Name(), obj.ID(), cfg.Lifetime.Min, cfg.Lifetime.Max)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.addLocked(obj)
	s.playing[id]++
	obj.SetEnabled(false)

	b := batcher.NewBatcher(
		batcher.WithMaxInstances(min(cfg.MaxInstancesPerCall, s.r.MaxInstancesPerCall())),
		batcher.WithParticleMesh(s.particleMesh),
		batcher.WithParticleMaterial(s.particleMaterial),
	)
	restore := cfg.RestoreRenderer
	e := effect.NewEffect(set, origin,
		effect.WithTriggerParams(cfg.TriggerParams()),
		effect.WithRandom(cfg.TriggerRandom()),
		effect.WithTransform(obj),
		effect.WithSourceMaterial(mdl.Material()),
		effect.WithCamera(s.cam),
		effect.WithBatcher(b),
		effect.WithOnComplete(func() {
			s.mu.Lock()
			s.playing[id]--
			last := s.playing[id] <= 0
			if last {
				delete(s.playing, id)
			}
			s.mu.Unlock()

			if last && restore {
				obj.SetEnabled(true)
			}
			if onComplete != nil {
				onComplete()
			}
		}),
	)
	s.effects = append(s.effects, e)
	s.owners[e] = id
	return e
}

func (s *scene) Stop(e effect.Effect) bool {
	s.mu.Lock()
	idx := -1
	for i, live := range s.effects {
		if live == e {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.effects = append(s.effects[:idx], s.effects[idx+1:]...)
	delete(s.owners, e)
	s.mu.Unlock()

	// Completion callbacks take the scene lock.
	e.Stop()
	return true
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.effects)
}

func (s *scene) Effects() []effect.Effect {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]effect.Effect, len(s.effects))
	copy(out, s.effects)
	return out
}

func (s *scene) Clear() {
	s.mu.Lock()
	stopping := s.effects
	s.effects = nil
	s.owners = make(map[effect.Effect]uint64)
	s.registry = make(map[uint64]game_object.GameObject)
	s.mu.Unlock()

	for _, e := range stopping {
		e.Stop()
	}
}

func (s *scene) Update(deltaTime float32) {
	s.mu.RLock()
	objects := make([]game_object.GameObject, 0, len(s.registry))
	for _, obj := range s.registry {
		objects = append(objects, obj)
	}
	live := make([]effect.Effect, len(s.effects))
	copy(live, s.effects)
	s.mu.RUnlock()

	s.cam.Update()
	for _, obj := range objects {
		obj.Update(deltaTime)
	}

	// A WaitGroup gives a per-frame barrier; pool.Wait only returns once workers go idle.
	var wg sync.WaitGroup
	for i, e := range live {
		wg.Add(1)
		eCap := e
		s.simulatePool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				eCap.Simulate(deltaTime)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

func (s *scene) DrawCalls() (batcher.Stats, error) {
	s.mu.RLock()
	objects := make([]game_object.GameObject, 0, len(s.registry))
	for _, obj := range s.registry {
		objects = append(objects, obj)
	}
	live := make([]effect.Effect, len(s.effects))
	copy(live, s.effects)
	name := s.name
	s.mu.RUnlock()

	var stats batcher.Stats
	var errs []error
	for _, obj := range objects {
		if !obj.Enabled() {
			continue
		}
		mdl := obj.Model()
		if err := s.r.DrawMesh(mdl.Mesh(), mdl.Material(), obj.Transform(), s.cam); err != nil {
			errs = append(errs, fmt.Errorf("object %d: %w", obj.ID(), err))
			continue
		}
		stats.SingleDraws++
	}

	var finished []effect.Effect
	for _, e := range live {
		st, err := e.Submit(s.r)
		stats = stats.Add(st)
		if err != nil {
			errs = append(errs, fmt.Errorf("effect: %w", err))
		}
		if e.Done() {
			finished = append(finished, e)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		log.Printf("[Scene] %s: draw errors: %v", name, err)
	}

	s.mu.Lock()
	s.stats = stats
	s.dropLocked(finished)
	s.mu.Unlock()

	return stats, err
}

func (s *scene) DiscardDraws() {
	var finished []effect.Effect
	for _, e := range s.Effects() {
		e.Discard()
		if e.Done() {
			finished = append(finished, e)
		}
	}

	s.mu.Lock()
	s.stats = batcher.Stats{}
	s.dropLocked(finished)
	s.mu.Unlock()
}

// LifetimesWithin reports whether every fragment lifetime in set lies inside r.
//
// Parameters:
//   - set: the decomposed fragments
//   - r: the configured lifetime range
//
// Returns:
//   - bool: false if any fragment falls outside r
func LifetimesWithin(set *fragment.Set, r config.Range) bool {
	for i := 0; i < set.Len(); i++ {
		if l := set.At(i).Lifetime; l < r.Min || l > r.Max {
			return false
		}
	}
	return true
}

// dropLocked removes finished effects. Callers must hold s.mu.
func (s *scene) dropLocked(finished []effect.Effect) {
	s.effects = removeEffects(s.effects, finished)
	for _, e := range finished {
		delete(s.owners, e)
	}
}

func (s *scene) Stats() batcher.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *scene) Release() {
	s.simulatePool.Stop()
}

func removeEffects(effects, drop []effect.Effect) []effect.Effect {
	if len(drop) == 0 {
		return effects
	}
	kept := effects[:0]
	for _, e := range effects {
		dropped := false
		for _, d := range drop {
			if e == d {
				dropped = true
				break
			}
		}
		if !dropped {
			kept = append(kept, e)
		}
	}
	clear(effects[len(kept):])
	return kept
}
