package common

import (
	"github.com/go-gl/mathgl/mgl32"
)

// SafeNormalize returns the unit-length direction of v.
// A zero-length vector has no direction, so the zero vector is returned instead of the
// NaN components mgl32.Vec3.Normalize would produce.
//
// Parameters:
//   - v: the vector to normalize
//
// Returns:
//   - mgl32.Vec3: the normalized vector, or the zero vector when v has zero length
func SafeNormalize(v mgl32.Vec3) mgl32.Vec3 {
	l := v.Len()
	if l == 0 {
		return mgl32.Vec3{}
	}
	return v.Mul(1 / l)
}

// TRS builds a column-major model matrix from a translation, rotation and uniform scale.
// Result: T * R * S.
//
// Parameters:
//   - pos: translation in world space
//   - rot: orientation quaternion
//   - scale: uniform scale factor applied on all three axes
//
// Returns:
//   - mgl32.Mat4: the composed model matrix
func TRS(pos mgl32.Vec3, rot mgl32.Quat, scale float32) mgl32.Mat4 {
	m := rot.Mat4()
	for col := 0; col < 3; col++ {
		m[col*4+0] *= scale
		m[col*4+1] *= scale
		m[col*4+2] *= scale
	}
	m[12] = pos[0]
	m[13] = pos[1]
	m[14] = pos[2]
	return m
}

// Clamp01 clamps v into the closed interval [0, 1].
//
// Parameters:
//   - v: the value to clamp
//
// Returns:
//   - float32: v limited to [0, 1]
func Clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Translation extracts the translation column of a column-major model matrix.
//
// Parameters:
//   - m: the model matrix
//
// Returns:
//   - mgl32.Vec3: the translation component
func Translation(m mgl32.Mat4) mgl32.Vec3 {
	return mgl32.Vec3{m[12], m[13], m[14]}
}
