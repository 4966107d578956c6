package main

import (
	"flag"
	"fmt"
	"log"
	"sync"

	"github.com/Carmen-Shannon/disintegrate/common"
	"github.com/Carmen-Shannon/disintegrate/engine"
	"github.com/Carmen-Shannon/disintegrate/engine/camera"
	"github.com/Carmen-Shannon/disintegrate/engine/config"
	"github.com/Carmen-Shannon/disintegrate/engine/game_object"
	"github.com/Carmen-Shannon/disintegrate/engine/loader"
	"github.com/Carmen-Shannon/disintegrate/engine/model"
	"github.com/Carmen-Shannon/disintegrate/engine/renderer"
	"github.com/Carmen-Shannon/disintegrate/engine/renderer/material"
	"github.com/Carmen-Shannon/disintegrate/engine/scene"
	"github.com/Carmen-Shannon/disintegrate/engine/window"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/profile"
)

func main() {
	configPath := flag.String("config", "", "path to an effect config YAML file")
	cpuProfile := flag.Bool("cpuprofile", false, "write a CPU profile to the working directory")
	memProfile := flag.Bool("memprofile", false, "write a heap profile to the working directory")
	modelPath := flag.String("model", "", "glTF or GLB file to disintegrate instead of the icosphere")
	meshIndex := flag.Int("mesh", 0, "mesh index inside -model")
	subdivisions := flag.Int("subdivisions", 3, "icosphere subdivision level (20*4^n triangles)")
	flag.Parse()

	cfg := config.DefaultEffectConfig()
	if *configPath != "" {
		loaded, err := config.LoadEffectConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	switch {
	case *cpuProfile:
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case *memProfile:
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	}

	// ── Window + Renderer ───────────────────────────────────────────────
	win := window.NewWindow(
		window.WithTitle("disintegrate"),
		window.WithSize(1280, 720),
	)
	defer win.Close()

	r, err := renderer.NewRenderer(
		renderer.BackendTypeWGPU,
		win,
		renderer.WithPresentMode(renderer.PresentModeVSync),
		renderer.WithMaxInstancesPerCall(cfg.MaxInstancesPerCall),
	)
	if err != nil {
		log.Fatalf("create renderer: %v", err)
	}
	defer r.Release()

	// ── Camera ──────────────────────────────────────────────────────────
	orbit := camera.NewOrbitController(
		camera.WithRadius(6),
		camera.WithElevation(0.3),
		camera.WithRadiusBounds(2, 40),
	)
	cam := camera.NewCamera(
		camera.WithAspect(float32(win.Width())/float32(win.Height())),
		camera.WithController(orbit),
	)

	// ── Scene ───────────────────────────────────────────────────────────
	sc := scene.NewScene("disintegrate", cam, r, scene.WithDefaultEffectConfig(cfg))
	defer sc.Release()

	name, mesh := "icosphere", model.NewIcosphere(1.5, *subdivisions)
	if *modelPath != "" {
		loaded, err := loader.NewLoader(loader.WithMeshIndex(*meshIndex)).LoadMesh(*modelPath)
		if err != nil {
			log.Fatalf("load model: %v", err)
		}
		name, mesh = *modelPath, loaded
	}

	target := game_object.NewGameObject(
		game_object.WithModel(model.NewModel(
			model.WithName(name),
			model.WithMesh(mesh),
			model.WithMaterial(material.NewMaterial(
				material.WithName(name),
				material.WithBaseColor([4]float32{0.85, 0.55, 0.3, 1}),
				material.WithDoubleSided(true),
			)),
		)),
		game_object.WithSpin(mgl32.Vec3{0, 1, 0}, 0.4),
		game_object.WithFragmentOptions(cfg.FragmentOptions()...),
	)
	sc.Add(target)

	eng := engine.NewEngine(r,
		engine.WithHost(win),
		engine.WithScene(0, sc),
		engine.WithTickRate(60),
		engine.WithProfiling(true),
	)

	setupInput(eng, win, orbit, sc, target, cfg)

	fmt.Println("disintegrate")
	fmt.Println("  SPACE  disintegrate from the camera side")
	fmt.Println("  L      toggle looping for the next trigger")
	fmt.Println("  R      stop every effect")
	fmt.Println("  arrows orbit, scroll zoom, ESC quit")

	log.Printf("Starting disintegrate: %s, %d triangles", name, target.Fragments().Len())
	eng.Run()
}

// setupInput wires keyboard and scroll input. Triggers are queued from the window thread
// and applied on the engine tick so effects start between frames.
//
// Parameters:
//   - eng: the engine whose tick applies queued actions
//   - win: the window delivering input events
//   - orbit: the camera controller moved by arrows and scroll
//   - sc: the scene effects are started in
//   - obj: the object to disintegrate
//   - cfg: the base effect config
func setupInput(eng engine.Engine, win window.Window, orbit camera.OrbitController, sc scene.Scene, obj game_object.GameObject, cfg *config.EffectConfig) {
	var mu sync.Mutex
	held := make(map[uint32]bool)
	var pending []uint32
	loop := cfg.Loop

	win.SetKeyDownCallback(func(keyCode uint32) {
		mu.Lock()
		defer mu.Unlock()
		if !held[keyCode] {
			pending = append(pending, keyCode)
		}
		held[keyCode] = true
	})
	win.SetKeyUpCallback(func(keyCode uint32) {
		mu.Lock()
		defer mu.Unlock()
		held[keyCode] = false
	})
	win.SetScrollCallback(func(delta float32) {
		orbit.Zoom(delta)
	})

	eng.SetTickCallback(func(_ float32) {
		mu.Lock()
		keys := pending
		pending = nil
		left, right := held[common.KeyLeft], held[common.KeyRight]
		up, down := held[common.KeyUp], held[common.KeyDown]
		mu.Unlock()

		switch {
		case left:
			orbit.OrbitLeft()
		case right:
			orbit.OrbitRight()
		}
		switch {
		case up:
			orbit.OrbitUp()
		case down:
			orbit.OrbitDown()
		}

		for _, key := range keys {
			switch key {
			case common.KeySpace:
				c := *cfg
				c.Loop = loop
				toCamera := common.SafeNormalize(orbit.Position().Sub(obj.Position()))
				origin := obj.Position().Add(toCamera.Mul(obj.Model().BoundingRadius()))
				sc.Disintegrate(obj, origin, &c, func() {
					log.Printf("[Demo] effect complete")
				})
			case common.KeyL:
				loop = !loop
				log.Printf("[Demo] looping: %v", loop)
			case common.KeyR:
				for _, e := range sc.Effects() {
					sc.Stop(e)
				}
			}
		}
	})
}
