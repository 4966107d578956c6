package game_object

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/disintegrate/common"
	"github.com/Carmen-Shannon/disintegrate/engine/fragment"
	"github.com/Carmen-Shannon/disintegrate/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

type gameObject struct {
	id      uint64
	enabled atomic.Bool
	mdl     model.Model

	mu       *sync.RWMutex
	position mgl32.Vec3
	rotation mgl32.Quat

	// spinAxis and spinRate rotate the object in Update, in radians per second.
	spinAxis mgl32.Vec3
	spinRate float32

	fragmentOptions []fragment.DecomposeOption
	fragments       *fragment.Set
}

// GameObject is a scene entity that can be disintegrated.
//
// It owns a Model, a world transform and an enabled flag controlling whether the intact
// mesh is drawn. Its fragment decomposition is computed on first use and cached until the
// model changes, so every effect played on the object shares one fragment.Set.
type GameObject interface {
	// ID returns the object's identifier.
	ID() uint64

	// SetID sets the object's identifier.
	//
	// Parameters:
	//   - id: the ID to assign
	SetID(id uint64)

	// Enabled reports whether the intact mesh is drawn.
	Enabled() bool

	// SetEnabled shows or hides the intact mesh. A disintegrating object is hidden while its
	// fragments play.
	//
	// Parameters:
	//   - enabled: true to draw the intact mesh
	SetEnabled(enabled bool)

	// Model returns the object's model, or nil if none is set.
	Model() model.Model

	// SetModel replaces the model and drops any cached decomposition.
	//
	// Parameters:
	//   - m: the new model
	SetModel(m model.Model)

	// Position returns the world-space position.
	Position() mgl32.Vec3

	// SetPosition sets the world-space position.
	//
	// Parameters:
	//   - pos: the new position
	SetPosition(pos mgl32.Vec3)

	// Rotation returns the world-space orientation.
	Rotation() mgl32.Quat

	// SetRotation sets the world-space orientation. The quaternion is normalized.
	//
	// Parameters:
	//   - rot: the new orientation
	SetRotation(rot mgl32.Quat)

	// SetSpin makes Update rotate the object continuously about axis.
	//
	// Parameters:
	//   - axis: the rotation axis in world space
	//   - radiansPerSecond: the angular rate; 0 stops spinning
	SetSpin(axis mgl32.Vec3, radiansPerSecond float32)

	// Update advances the object's spin by dt seconds.
	//
	// Parameters:
	//   - dt: seconds since the previous update
	Update(dt float32)

	// Transform returns the model-to-world matrix of the intact mesh.
	Transform() mgl32.Mat4

	// WorldToLocal converts a world-space point into the object's local space.
	//
	// Parameters:
	//   - point: the world-space point
	//
	// Returns:
	//   - mgl32.Vec3: the point in local space
	WorldToLocal(point mgl32.Vec3) mgl32.Vec3

	// Fragments returns the decomposition of the model's mesh, computing it on first call.
	// It panics if the object has no model.
	//
	// Returns:
	//   - *fragment.Set: the shared, immutable fragments
	Fragments() *fragment.Set
}

var _ GameObject = &gameObject{}

// NewGameObject creates a new GameObject configured with the given options.
// The object starts enabled at the origin with no rotation.
//
// Parameters:
//   - options: functional options to configure the object
//
// Returns:
//   - GameObject: the newly created object
func NewGameObject(options ...GameObjectBuilderOption) GameObject {
	obj := &gameObject{
		mu:       &sync.RWMutex{},
		rotation: mgl32.QuatIdent(),
	}
	obj.enabled.Store(true)
	for _, option := range options {
		option(obj)
	}
	return obj
}

func (g *gameObject) ID() uint64 {
	return g.id
}

func (g *gameObject) SetID(id uint64) {
	g.id = id
}

func (g *gameObject) Enabled() bool {
	return g.enabled.Load()
}

func (g *gameObject) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
}

func (g *gameObject) Model() model.Model {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mdl
}

func (g *gameObject) SetModel(m model.Model) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mdl = m
	g.fragments = nil
}

func (g *gameObject) Position() mgl32.Vec3 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.position
}

func (g *gameObject) SetPosition(pos mgl32.Vec3) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.position = pos
}

func (g *gameObject) Rotation() mgl32.Quat {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rotation
}

func (g *gameObject) SetRotation(rot mgl32.Quat) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rotation = rot.Normalize()
}

func (g *gameObject) SetSpin(axis mgl32.Vec3, radiansPerSecond float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.spinAxis = common.SafeNormalize(axis)
	g.spinRate = radiansPerSecond
}

func (g *gameObject) Update(dt float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.spinRate == 0 || g.spinAxis.Len() == 0 {
		return
	}
	step := mgl32.QuatRotate(g.spinRate*dt, g.spinAxis)
	g.rotation = step.Mul(g.rotation).Normalize()
}

func (g *gameObject) Transform() mgl32.Mat4 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return common.TRS(g.position, g.rotation, 1)
}

func (g *gameObject) WorldToLocal(point mgl32.Vec3) mgl32.Vec3 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rotation.Inverse().Rotate(point.Sub(g.position))
}

func (g *gameObject) Fragments() *fragment.Set {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fragments != nil {
		return g.fragments
	}
	if g.mdl == nil {
		panic("game_object: Fragments requires a model")
	}
	g.fragments = fragment.Decompose(g.mdl.Mesh(), g.fragmentOptions...)
	return g.fragments
}
