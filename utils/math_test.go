package utils

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestQuatToEuler(t *testing.T) {
	for _, test := range []struct {
		q    mgl32.Quat
		axis int
		want float32
	}{
		{mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{1, 0, 0}), 0, math.Pi / 2},
		{mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 0, 1}), 2, math.Pi / 2},
		{mgl32.QuatIdent(), 0, 0},
	} {
		e := QuatToEuler(test.q)
		if diff := math.Abs(float64(e[test.axis] - test.want)); diff > 1e-5 {
			t.Errorf("QuatToEuler(%v)[%d] = %v, expected %v", test.q, test.axis, e[test.axis], test.want)
		}
	}
}

func TestQuatValid(t *testing.T) {
	nan := float32(math.NaN())
	for _, test := range []struct {
		q   mgl32.Quat
		out bool
	}{
		{mgl32.QuatIdent(), true},
		{mgl32.QuatRotate(1.2, mgl32.Vec3{0, 1, 0}), true},
		{mgl32.Quat{}, false},
		{mgl32.Quat{W: nan, V: mgl32.Vec3{0, 0, 0}}, false},
		{mgl32.Quat{W: 0, V: mgl32.Vec3{nan, 0, 0}}, false},
	} {
		if v := QuatValid(test.q); v != test.out {
			t.Errorf("QuatValid(%v) = %v, expected %v", test.q, v, test.out)
		}
	}
}

func TestClampMagnitude(t *testing.T) {
	for _, test := range []struct {
		in  mgl32.Vec3
		max float32
		out mgl32.Vec3
	}{
		{mgl32.Vec3{2, 0, 0}, 1, mgl32.Vec3{1, 0, 0}},
		{mgl32.Vec3{0.5, 0, 0}, 1, mgl32.Vec3{0.5, 0, 0}},
		{mgl32.Vec3{0, 0, 0}, 1, mgl32.Vec3{0, 0, 0}},
		{mgl32.Vec3{3, 4, 0}, 5, mgl32.Vec3{3, 4, 0}},
	} {
		if out := ClampMagnitude(test.in, test.max); !out.ApproxEqualThreshold(test.out, 1e-6) {
			t.Errorf("ClampMagnitude(%v, %v) = %v, expected %v", test.in, test.max, out, test.out)
		}
	}
}

func TestAlignQuat(t *testing.T) {
	q := mgl32.QuatRotate(0.7, mgl32.Vec3{0, 1, 0})
	neg := mgl32.Quat{W: -q.W, V: mgl32.Vec3{-q.V[0], -q.V[1], -q.V[2]}}

	if got := AlignQuat(q, neg); got.Dot(q) < 0 {
		t.Errorf("AlignQuat did not flip far-cover quaternion: %v", got)
	}
	if got := AlignQuat(q, q); got != q {
		t.Errorf("AlignQuat changed an aligned quaternion: %v", got)
	}
}
