package utils

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// result in radians
func QuatToEuler(q mgl32.Quat) (e mgl32.Vec3) {
	sinr_cosp := float64(2 * (q.W*q.X() + q.Y()*q.Z()))
	cosr_cosp := float64(1 - 2*(q.X()*q.X()+q.Y()*q.Y()))

	e[0] = float32(math.Atan2(sinr_cosp, cosr_cosp))

	sinp := float64(2 * (q.W*q.Y() - q.Z()*q.X()))
	if math.Abs(sinp) >= 1 {
		e[1] = math.Pi / 2
		if sinp < 0 {
			e[1] *= -1
		}
	} else {
		e[1] = float32(math.Asin(sinp))
	}

	siny_cosp := float64(2 * (q.W*q.Z() + q.X()*q.Y()))
	cosy_cosp := float64(1 - 2*(q.Y()*q.Y()+q.Z()*q.Z()))
	e[2] = float32(math.Atan2(siny_cosp, cosy_cosp))

	return e
}

func RadiansToDegreesV3(v mgl32.Vec3) mgl32.Vec3 {
	return v.Mul(180.0 / math.Pi)
}

// QuatValid reports whether q has finite components and a length
// usable as a rotation. Zero-length and NaN rest rotations are treated
// as missing data by the transfer engines.
func QuatValid(q mgl32.Quat) bool {
	for i := 0; i < 3; i++ {
		if f := float64(q.V[i]); math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	if f := float64(q.W); math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	return q.Len() > 1e-6
}

// ClampMagnitude caps v to the given length, leaving shorter vectors
// untouched.
func ClampMagnitude(v mgl32.Vec3, max float32) mgl32.Vec3 {
	if max <= 0 {
		return v
	}
	l := v.Len()
	if l <= max || l == 0 {
		return v
	}
	return v.Mul(max / l)
}

// AlignQuat flips the sign of q when it sits on the far cover relative
// to prev, keeping keyframe sequences interpolable.
func AlignQuat(prev, q mgl32.Quat) mgl32.Quat {
	if prev.Dot(q) < 0 {
		return mgl32.Quat{W: -q.W, V: mgl32.Vec3{-q.V[0], -q.V[1], -q.V[2]}}
	}
	return q
}
