package morph

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Field is one named morph target's sparse displacement data: vertex
// index to delta from the mesh's basis shape.
type Field map[int]mgl32.Vec3

func (f Field) MaxMagnitude() float32 {
	max := float32(0)
	for _, d := range f {
		if l := d.Len(); l > max {
			max = l
		}
	}
	return max
}

// Set is an ordered collection of named Fields. Insertion order is
// preserved so transfer output is deterministic.
type Set struct {
	names  []string
	fields map[string]Field
}

func NewSet() *Set {
	return &Set{fields: make(map[string]Field)}
}

// Add registers or replaces a named field. A replaced name keeps its
// original position.
func (s *Set) Add(name string, f Field) {
	if _, exists := s.fields[name]; !exists {
		s.names = append(s.names, name)
	}
	s.fields[name] = f
}

func (s *Set) Len() int { return len(s.names) }

// Names returns the field names in insertion order. The returned
// slice is shared and must not be modified.
func (s *Set) Names() []string { return s.names }

func (s *Set) Field(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}
