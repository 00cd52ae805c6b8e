package rig

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestNewClipValidatesRange(t *testing.T) {
	for _, test := range []struct {
		start, end int
		fps        float32
		ok         bool
	}{
		{0, 60, 30, true},
		{10, 10, 30, true},
		{10, 9, 30, false},
		{0, 60, 0, false},
		{0, 60, -24, false},
	} {
		_, err := NewClip("clip", test.start, test.end, test.fps)
		if (err == nil) != test.ok {
			t.Errorf("NewClip(%d, %d, %v) error = %v, expected ok=%v",
				test.start, test.end, test.fps, err, test.ok)
		}
	}
}

func TestClipFrameAccess(t *testing.T) {
	c, err := NewClip("wave", 5, 7, 30)
	if err != nil {
		t.Fatalf("NewClip: %v", err)
	}
	if n := c.FrameCount(); n != 3 {
		t.Fatalf("FrameCount = %d, expected 3", n)
	}

	q := mgl32.QuatRotate(0.5, mgl32.Vec3{0, 1, 0})
	c.At(6).Set("Arm", q)
	if got := c.Frames[1].Rotation("Arm"); got != q {
		t.Errorf("At(6) pose lost the rotation: %v", got)
	}
	if got := c.At(5).Rotation("Arm"); got != mgl32.QuatIdent() {
		t.Errorf("untouched frame should read identity, got %v", got)
	}

	times := c.Times()
	if times[0] != 0 {
		t.Errorf("first frame time = %v, expected 0", times[0])
	}
	if d := times[2] - float32(2.0/30.0); d > 1e-6 || d < -1e-6 {
		t.Errorf("last frame time = %v, expected %v", times[2], 2.0/30.0)
	}

	names := c.BoneNames()
	if len(names) != 1 || names[0] != "Arm" {
		t.Errorf("BoneNames = %v, expected [Arm]", names)
	}
}
