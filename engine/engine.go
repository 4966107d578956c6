package engine

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/disintegrate/engine/profiler"
	"github.com/Carmen-Shannon/disintegrate/engine/renderer/batcher"
	"github.com/Carmen-Shannon/disintegrate/engine/scene"
)

// FrameRenderer is the frame lifecycle of renderer.Renderer the engine drives.
type FrameRenderer interface {
	BeginFrame() error
	EndFrame()
	Present()
	Resize(width, height int)
}

// Host is the window the engine runs inside. window.Window satisfies it.
type Host interface {
	// Run pumps window events until the window closes.
	Run()
	SetResizeCallback(callback func(width, height int))
}

// engine implements the Engine interface.
type engine struct {
	mu *sync.Mutex

	tickRateChannel chan time.Duration

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	host     Host
	renderer FrameRenderer

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)

	scenes map[int]scene.Scene
}

// Engine drives the disintegration scenes at a fixed tick rate.
//
// Each tick runs entirely on one goroutine: the tick callback, every active scene's Update,
// then one renderer frame in which every active scene submits its draws. Simulation and
// submission of a tick therefore never overlap.
type Engine interface {
	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in ticks per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called at the start of each tick, before scenes
	// update. Use it for input handling and triggering effects.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// AddScene registers a scene at the given z-index key.
	// Scenes update and draw in ascending key order.
	//
	// Parameters:
	//   - key: the z-index
	//   - s: the Scene to register
	AddScene(key int, s scene.Scene)

	// RemoveScene removes the scene at the given z-index key.
	//
	// Parameters:
	//   - key: the z-index of the scene to remove
	RemoveScene(key int)

	// Scene retrieves the scene registered at key, or nil.
	//
	// Parameters:
	//   - key: the z-index of the scene to retrieve
	//
	// Returns:
	//   - scene.Scene: the scene at the key, or nil if not found
	Scene(key int) scene.Scene

	// Step runs one tick synchronously with the given delta time.
	//
	// Parameters:
	//   - deltaTime: seconds since the previous tick
	//
	// Returns:
	//   - batcher.Stats: the draw calls issued across all scenes
	//   - error: a frame acquisition error, or joined scene draw errors
	Step(deltaTime float32) (batcher.Stats, error)

	// Start launches the tick goroutine and returns immediately.
	Start()

	// Run starts the engine and pumps the host window until it closes, then shuts down.
	// Panics if the engine has no host.
	Run()

	// Quit signals the tick goroutine to stop. Safe to call multiple times.
	Quit()

	// Wait blocks until the tick goroutine has exited.
	Wait()
}

// NewEngine creates a new Engine that draws through r.
// NewEngine panics if r is nil.
//
// Parameters:
//   - r: the renderer owning the frame lifecycle
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(r FrameRenderer, options ...EngineBuilderOption) Engine {
	if r == nil {
		panic("engine: NewEngine requires a non-nil renderer")
	}
	e := &engine{
		mu:              &sync.Mutex{},
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		scenes:          make(map[int]scene.Scene),
		renderer:        r,
		profiler:        profiler.NewProfiler(time.Second),
		engineTickRate:  time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}

	if e.host != nil {
		e.host.SetResizeCallback(func(width, height int) {
			if width == 0 || height == 0 {
				return
			}
			e.mu.Lock()
			defer e.mu.Unlock()
			e.renderer.Resize(width, height)
			for _, s := range e.scenes {
				s.Camera().SetAspect(float32(width) / float32(height))
			}
		})
	}

	return e
}

func (e *engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true
	e.wg.Add(1)
	go e.handleEngine()
}

func (e *engine) Run() {
	if e.host == nil {
		panic("engine: Run requires a host window")
	}
	e.Start()
	e.host.Run()
	e.Quit()
	e.Wait()
}

// Quit closes the quit channel once, signalling the tick goroutine to exit.
func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) Wait() {
	e.wg.Wait()
}

// handleEngine runs the fixed-rate tick loop. It exits when the quit channel is closed and
// recovers from panics so a bad frame shuts the engine down instead of the process.
func (e *engine) handleEngine() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("tick goroutine recovered from panic: %v", r)
			e.Quit()
		}
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if _, err := e.Step(dt); err != nil {
				log.Printf("tick: %v", err)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.mu.Lock()
			e.engineTickRate = newRate
			e.mu.Unlock()
		}
	}
}

func (e *engine) Step(deltaTime float32) (batcher.Stats, error) {
	if e.tickCallback != nil {
		e.tickCallback(deltaTime)
	}

	active := e.activeScenes()
	for _, s := range active {
		s.Update(deltaTime)
	}

	var stats batcher.Stats
	e.mu.Lock()
	err := e.renderer.BeginFrame()
	if err != nil {
		e.mu.Unlock()
		for _, s := range active {
			s.DiscardDraws()
		}
		return stats, fmt.Errorf("begin frame: %w", err)
	}
	var drawErr error
	for _, s := range active {
		st, err := s.DrawCalls()
		stats = stats.Add(st)
		if err != nil && drawErr == nil {
			drawErr = fmt.Errorf("scene %s: %w", s.Name(), err)
		}
	}
	e.renderer.EndFrame()
	e.renderer.Present()
	e.mu.Unlock()

	if e.profilingEnabled.Load() {
		sample := profiler.Sample{Draws: stats}
		for _, s := range active {
			for _, fx := range s.Effects() {
				sample.Effects++
				sample.Fragments += fx.ActiveCount()
			}
		}
		e.profiler.Tick(sample)
	}

	return stats, drawErr
}

// activeScenes returns the active scenes in ascending key order.
func (e *engine) activeScenes() []scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := make([]int, 0, len(e.scenes))
	for k := range e.scenes {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	active := make([]scene.Scene, 0, len(keys))
	for _, k := range keys {
		if s := e.scenes[k]; s.Active() {
			active = append(active, s)
		}
	}
	return active
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate sets the engine tick rate in ticks per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	e.mu.Lock()
	running := e.running
	if !running {
		e.engineTickRate = newRate
	}
	e.mu.Unlock()
	if !running {
		return
	}

	// Replace any pending rate change with the newest one.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) AddScene(key int, s scene.Scene) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scenes[key] = s
}

func (e *engine) RemoveScene(key int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.scenes, key)
}

func (e *engine) Scene(key int) scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scenes[key]
}
