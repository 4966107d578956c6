package effect

import (
	"fmt"
	"time"

	"github.com/Carmen-Shannon/disintegrate/common"
	"github.com/Carmen-Shannon/disintegrate/engine/fragment"
	"github.com/Carmen-Shannon/disintegrate/engine/model"
	"github.com/Carmen-Shannon/disintegrate/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
)

// TriggerParams are the tunables read once when an effect is triggered.
type TriggerParams struct {
	// Speed scales the outward direction from the trigger origin.
	Speed float32
	// Spread scales each fragment's averaged normal.
	Spread float32
	// Drift is added unchanged to every fragment velocity.
	Drift mgl32.Vec3
	// DelayFactor converts distance from the origin into seconds of delay. Negative values
	// release distant fragments first.
	DelayFactor float32
	// DelayVarianceMin and DelayVarianceMax bound the random delay added per fragment.
	DelayVarianceMin float32
	DelayVarianceMax float32
	// Looped plays the effect forward then in reverse instead of expiring fragments.
	Looped bool
	// LoopDelay pads the forward pass; half of it is added to the loop period.
	LoopDelay float32
}

// DefaultTriggerParams returns the tunables used when none are configured.
func DefaultTriggerParams() TriggerParams {
	return TriggerParams{
		Speed:            1.5,
		Spread:           0.5,
		Drift:            mgl32.Vec3{0, 0.4, 0},
		DelayFactor:      0.6,
		DelayVarianceMin: 0,
		DelayVarianceMax: 0.25,
		LoopDelay:        1,
	}
}

// Frame carries the per-tick inputs an Instance reads. The object transform and camera
// orientation are supplied fresh every tick so a moving object drags its fragments along.
type Frame struct {
	ObjectPosition mgl32.Vec3
	ObjectRotation mgl32.Quat
	// CameraRotation orients active fragments toward the viewer.
	CameraRotation mgl32.Quat
	// Material is the source material dormant fragments are drawn with.
	Material material.Material
}

// Sink receives the draws an Instance emits during Step. batcher.Batcher satisfies it.
type Sink interface {
	DrawSingle(mesh *model.Mesh, mat material.Material, transform mgl32.Mat4)
	AddInstance(transform mgl32.Mat4)
}

// Instance is the mutable simulation state of one playing effect.
//
// It borrows the immutable fragment.Set it was triggered from and owns its velocity, delay,
// age and active-set slices exclusively, so any number of Instances may share one Set.
// An Instance is not safe for concurrent use.
type Instance struct {
	set *fragment.Set

	velocity []mgl32.Vec3
	delay    []float32
	age      []float32

	// active holds fragment indices still simulated. Removal swaps with the last entry.
	active []int

	looped     bool
	loopTime   float32
	loopPeriod float32
	direction  float32
	elapsed    float32
	terminal   bool
}

// Trigger creates a fresh Instance for set, bursting away from originLocal.
//
// Each fragment i gets:
//
//	velocity = normalize(position - origin)*Speed + normal*Spread + Drift
//	delay    = |position - origin|*DelayFactor + rand(DelayVarianceMin, DelayVarianceMax)
//
// A fragment sitting exactly on the origin has no outward direction and only receives the
// spread and drift terms. Trigger panics on a nil set. A nil rng uses a time-seeded source.
//
// Parameters:
//   - set: the decomposed fragments
//   - originLocal: the trigger point in the source object's local space
//   - params: the trigger tunables
//   - rng: the random source for delay variance
//
// Returns:
//   - *Instance: the new instance with every fragment active and dormant
func Trigger(set *fragment.Set, originLocal mgl32.Vec3, params TriggerParams, rng common.Random) *Instance {
	if set == nil {
		panic("effect: Trigger requires a fragment set")
	}
	if rng == nil {
		rng = common.NewRandom(uint64(time.Now().UnixNano()))
	}

	n := set.Len()
	in := &Instance{
		set:       set,
		velocity:  make([]mgl32.Vec3, n),
		delay:     make([]float32, n),
		age:       make([]float32, n),
		active:    make([]int, n),
		looped:    params.Looped,
		direction: 1,
	}
	for i := 0; i < n; i++ {
		f := set.At(i)
		offset := f.Position.Sub(originLocal)
		in.velocity[i] = common.SafeNormalize(offset).Mul(params.Speed).
			Add(f.Normal.Mul(params.Spread)).
			Add(params.Drift)
		in.delay[i] = offset.Len()*params.DelayFactor + rng.Range(params.DelayVarianceMin, params.DelayVarianceMax)
		in.active[i] = i
		if end := in.delay[i] + f.Lifetime; i == 0 || end > in.loopTime {
			in.loopTime = end
		}
	}
	in.loopPeriod = in.loopTime + params.LoopDelay/2
	return in
}

// Step advances the instance by dt seconds and emits one draw per active fragment into sink.
//
// Fragments whose age has not passed their delay are drawn as their own triangle with the
// object's orientation. The rest are drawn as particles facing the camera, shrinking from
// full size to nothing over their lifetime. Step is a no-op once the instance is terminal.
//
// Parameters:
//   - dt: seconds since the previous step
//   - frame: the current object transform, camera orientation and source material
//   - sink: where draws are recorded
//
// Returns:
//   - bool: true exactly once, on the step that emptied the active set
func (in *Instance) Step(dt float32, frame Frame, sink Sink) bool {
	if in.terminal {
		return false
	}

	for k := len(in.active) - 1; k >= 0; k-- {
		i := in.active[k]
		f := in.set.At(i)
		age := in.age[i]

		if age <= in.delay[i] {
			pos := frame.ObjectRotation.Rotate(f.Position).Add(frame.ObjectPosition)
			sink.DrawSingle(f.Mesh, frame.Material, common.TRS(pos, frame.ObjectRotation, 1))
		} else {
			effective := age - in.delay[i]
			progress := common.Clamp01(effective / f.Lifetime)
			local := f.Position.Add(in.velocity[i].Mul(effective))
			pos := frame.ObjectRotation.Rotate(local).Add(frame.ObjectPosition)
			sink.AddInstance(common.TRS(pos, frame.CameraRotation, 1-progress))
		}

		in.age[i] = age + dt*in.direction
		if in.expired(i, f.Lifetime) {
			last := len(in.active) - 1
			in.active[k] = in.active[last]
			in.active = in.active[:last]
		}
	}

	in.elapsed += dt
	if in.looped && in.direction > 0 && in.elapsed > in.loopPeriod {
		in.direction = -1
	}

	if len(in.active) == 0 {
		in.terminal = true
		return true
	}
	return false
}

func (in *Instance) expired(i int, lifetime float32) bool {
	if !in.looped {
		return in.age[i]-in.delay[i] >= lifetime
	}
	return in.direction < 0 && in.age[i] < 0
}

// Set returns the fragment set this instance borrows.
func (in *Instance) Set() *fragment.Set {
	return in.set
}

// Age returns fragment i's age in seconds. Panics on an index outside the set.
func (in *Instance) Age(i int) float32 {
	in.check(i)
	return in.age[i]
}

// Velocity returns fragment i's local-space velocity. Panics on an index outside the set.
func (in *Instance) Velocity(i int) mgl32.Vec3 {
	in.check(i)
	return in.velocity[i]
}

// Delay returns fragment i's delay in seconds. Panics on an index outside the set.
func (in *Instance) Delay(i int) float32 {
	in.check(i)
	return in.delay[i]
}

// Active returns a copy of the active set in its current internal order.
func (in *Instance) Active() []int {
	out := make([]int, len(in.active))
	copy(out, in.active)
	return out
}

// ActiveCount returns the number of fragments still simulated.
func (in *Instance) ActiveCount() int {
	return len(in.active)
}

// TimeDirection returns +1 while playing forward and -1 once a looped instance reverses.
func (in *Instance) TimeDirection() float32 {
	return in.direction
}

// ElapsedTime returns the sum of every dt passed to Step.
func (in *Instance) ElapsedTime() float32 {
	return in.elapsed
}

// LoopTime returns the largest delay+lifetime over all fragments, or 0 for an empty set.
func (in *Instance) LoopTime() float32 {
	return in.loopTime
}

// LoopPeriod returns the elapsed time after which a looped instance reverses.
func (in *Instance) LoopPeriod() float32 {
	return in.loopPeriod
}

// Looped reports whether the instance reverses instead of expiring fragments.
func (in *Instance) Looped() bool {
	return in.looped
}

// Terminal reports whether the active set has emptied.
func (in *Instance) Terminal() bool {
	return in.terminal
}

func (in *Instance) check(i int) {
	if i < 0 || i >= len(in.age) {
		panic(fmt.Sprintf("effect: fragment index %d out of range [0, %d)", i, len(in.age)))
	}
}
