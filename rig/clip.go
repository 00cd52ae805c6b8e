package rig

import (
	"sort"

	"github.com/pkg/errors"
)

// Clip is a fixed-rate pose sequence over the frame range
// [FrameStart, FrameEnd], one Pose per frame.
type Clip struct {
	Name       string
	FrameStart int
	FrameEnd   int
	FPS        float32
	Frames     []Pose
}

func NewClip(name string, frameStart, frameEnd int, fps float32) (*Clip, error) {
	if frameEnd < frameStart {
		return nil, errors.Errorf("Invalid frame range [%d, %d]", frameStart, frameEnd)
	}
	if fps <= 0 {
		return nil, errors.Errorf("Invalid frame rate %v", fps)
	}
	c := &Clip{
		Name:       name,
		FrameStart: frameStart,
		FrameEnd:   frameEnd,
		FPS:        fps,
		Frames:     make([]Pose, frameEnd-frameStart+1),
	}
	for i := range c.Frames {
		c.Frames[i] = NewPose()
	}
	return c, nil
}

func (c *Clip) FrameCount() int { return c.FrameEnd - c.FrameStart + 1 }

// At returns the pose at an absolute frame number.
func (c *Clip) At(frame int) Pose { return c.Frames[frame-c.FrameStart] }

// Times returns each frame's timestamp in seconds, first frame at 0.
func (c *Clip) Times() []float32 {
	times := make([]float32, c.FrameCount())
	for i := range times {
		times[i] = float32(i) / c.FPS
	}
	return times
}

// BoneNames lists every bone that has an entry in at least one frame,
// sorted for deterministic output ordering.
func (c *Clip) BoneNames() []string {
	seen := make(map[string]bool)
	for _, pose := range c.Frames {
		for name := range pose {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
