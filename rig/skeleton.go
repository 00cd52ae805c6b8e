package rig

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

const NoParent = -1

// Transform is a bone's rest placement relative to its parent.
type Transform struct {
	Rotation    mgl32.Quat
	Translation mgl32.Vec3
}

type Bone struct {
	Name   string
	Parent int // index into the owning skeleton, NoParent for roots
	Rest   Transform
}

// Skeleton is an immutable index arena of bones. Construction is the
// only place structural input errors are fatal; everything after works
// on validated indices.
type Skeleton struct {
	bones    []Bone
	byName   map[string]int
	children [][]int
	order    []int // root-to-leaf, parents strictly before children
}

func NewSkeleton(bones []Bone) (*Skeleton, error) {
	s := &Skeleton{
		bones:    make([]Bone, len(bones)),
		byName:   make(map[string]int, len(bones)),
		children: make([][]int, len(bones)),
	}
	copy(s.bones, bones)

	for i := range s.bones {
		b := &s.bones[i]
		if b.Name == "" {
			return nil, errors.Errorf("Bone %d has an empty name", i)
		}
		if _, exists := s.byName[b.Name]; exists {
			return nil, errors.Errorf("Duplicate bone name %q", b.Name)
		}
		s.byName[b.Name] = i
		if b.Parent == NoParent {
			continue
		}
		if b.Parent < 0 || b.Parent >= len(s.bones) {
			return nil, errors.Errorf("Bone %q parent index %d out of range", b.Name, b.Parent)
		}
		if b.Parent == i {
			return nil, errors.Errorf("Bone %q is its own parent", b.Name)
		}
	}

	for i := range s.bones {
		if p := s.bones[i].Parent; p != NoParent {
			s.children[p] = append(s.children[p], i)
		}
	}

	// breadth-first from the roots; bones not reached sit on a cycle
	s.order = make([]int, 0, len(s.bones))
	visited := make([]bool, len(s.bones))
	queue := make([]int, 0, len(s.bones))
	for i := range s.bones {
		if s.bones[i].Parent == NoParent {
			queue = append(queue, i)
		}
	}
	for len(queue) != 0 {
		i := queue[0]
		queue = queue[1:]
		visited[i] = true
		s.order = append(s.order, i)
		queue = append(queue, s.children[i]...)
	}
	if len(s.order) != len(s.bones) {
		for i := range s.bones {
			if !visited[i] {
				return nil, errors.Errorf("Bone %q is part of a parent cycle", s.bones[i].Name)
			}
		}
	}

	return s, nil
}

func (s *Skeleton) Len() int { return len(s.bones) }

func (s *Skeleton) Bone(i int) Bone { return s.bones[i] }

func (s *Skeleton) Lookup(name string) (int, bool) {
	i, ok := s.byName[name]
	return i, ok
}

// Children returns the direct child indices of bone i, in arena order.
// The returned slice is shared and must not be modified.
func (s *Skeleton) Children(i int) []int { return s.children[i] }

// Order returns the root-to-leaf traversal order. The returned slice
// is shared and must not be modified.
func (s *Skeleton) Order() []int { return s.order }

// WorldRestRotations composes every bone's rest rotation with its
// ancestors', root-to-leaf.
func (s *Skeleton) WorldRestRotations() []mgl32.Quat {
	out := make([]mgl32.Quat, len(s.bones))
	for _, i := range s.order {
		b := &s.bones[i]
		if b.Parent == NoParent {
			out[i] = b.Rest.Rotation.Normalize()
		} else {
			out[i] = out[b.Parent].Mul(b.Rest.Rotation).Normalize()
		}
	}
	return out
}

// WorldRest composes full rest transforms (rotation and position)
// root-to-leaf.
func (s *Skeleton) WorldRest() []Transform {
	out := make([]Transform, len(s.bones))
	for _, i := range s.order {
		b := &s.bones[i]
		if b.Parent == NoParent {
			out[i] = Transform{
				Rotation:    b.Rest.Rotation.Normalize(),
				Translation: b.Rest.Translation,
			}
			continue
		}
		p := out[b.Parent]
		out[i] = Transform{
			Rotation:    p.Rotation.Mul(b.Rest.Rotation).Normalize(),
			Translation: p.Translation.Add(p.Rotation.Rotate(b.Rest.Translation)),
		}
	}
	return out
}
