package rig

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Pose maps bone names to pose-delta rotations relative to each bone's
// rest rotation. A missing entry means the bone sits at rest.
type Pose map[string]mgl32.Quat

func NewPose() Pose { return make(Pose) }

func (p Pose) Rotation(name string) mgl32.Quat {
	if p != nil {
		if q, ok := p[name]; ok {
			return q
		}
	}
	return mgl32.QuatIdent()
}

func (p Pose) Set(name string, q mgl32.Quat) { p[name] = q }

// WorldRotations composes the animated world rotation of every bone
// for one pose: parent world x local rest x pose delta, root-to-leaf.
func WorldRotations(s *Skeleton, p Pose) []mgl32.Quat {
	out := make([]mgl32.Quat, s.Len())
	for _, i := range s.Order() {
		b := s.Bone(i)
		local := b.Rest.Rotation.Mul(p.Rotation(b.Name))
		if b.Parent == NoParent {
			out[i] = local.Normalize()
		} else {
			out[i] = out[b.Parent].Mul(local).Normalize()
		}
	}
	return out
}
