package vmap

import (
	"github.com/pkg/errors"
)

type Kind uint8

const (
	Direct Kind = iota
	Barycentric
)

// Entry maps one target-mesh vertex onto the source mesh: either a
// direct vertex alias or a weighted barycentric triple. Weights may be
// negative (extrapolating) but sum to 1 after construction.
type Entry struct {
	Kind Kind
	V    [3]int
	W    [3]float32
}

func DirectEntry(v int) Entry {
	return Entry{Kind: Direct, V: [3]int{v, -1, -1}}
}

func BarycentricEntry(v1, v2, v3 int, w1, w2, w3 float32) Entry {
	return Entry{Kind: Barycentric, V: [3]int{v1, v2, v3}, W: [3]float32{w1, w2, w3}}
}

// Map is an immutable correspondence table with exactly one entry per
// target vertex, parallel to target vertex indices.
type Map struct {
	entries []Entry
}

const weightSumEps = 1e-6

// New validates and normalizes entries: direct aliases need a valid
// source index, barycentric weight sums are rescaled to 1, and sums
// too close to zero are rejected as malformed input.
func New(entries []Entry) (*Map, error) {
	out := make([]Entry, len(entries))
	copy(out, entries)

	for i := range out {
		e := &out[i]
		switch e.Kind {
		case Direct:
			if e.V[0] < 0 {
				return nil, errors.Errorf("Entry %d: negative source vertex %d", i, e.V[0])
			}
		case Barycentric:
			for _, v := range e.V {
				if v < 0 {
					return nil, errors.Errorf("Entry %d: negative source vertex %d", i, v)
				}
			}
			sum := e.W[0] + e.W[1] + e.W[2]
			if sum > -weightSumEps && sum < weightSumEps {
				return nil, errors.Errorf("Entry %d: weight sum %v is degenerate", i, sum)
			}
			if sum != 1 {
				inv := 1 / sum
				e.W[0] *= inv
				e.W[1] *= inv
				e.W[2] *= inv
			}
		default:
			return nil, errors.Errorf("Entry %d: unknown kind %d", i, e.Kind)
		}
	}

	return &Map{entries: out}, nil
}

func (m *Map) Len() int { return len(m.entries) }

func (m *Map) Entry(i int) Entry { return m.entries[i] }
