package skin

import (
	"sort"
)

// Weights is one vertex's sparse bone influence map. A nil map means
// the vertex is unweighted, which is a valid state, not an error.
type Weights map[string]float32

func (w Weights) Sum() float32 {
	sum := float32(0)
	for _, v := range w {
		sum += v
	}
	return sum
}

// Normalize rescales the weights to sum to 1. A sum too close to zero
// cannot be normalized; the vertex becomes unweighted instead.
func (w Weights) Normalize() Weights {
	sum := w.Sum()
	if sum < 1e-9 {
		return nil
	}
	inv := 1 / sum
	for name := range w {
		w[name] *= inv
	}
	return w
}

// Dominant returns the bone carrying the largest weight. Ties resolve
// by name so the result is deterministic.
func (w Weights) Dominant() (string, float32) {
	best := ""
	bestWeight := float32(0)
	for name, v := range w {
		if v > bestWeight || (v == bestWeight && (best == "" || name < best)) {
			best, bestWeight = name, v
		}
	}
	return best, bestWeight
}

// BoneNames lists every bone influencing the vertex, sorted.
func (w Weights) BoneNames() []string {
	names := make([]string, 0, len(w))
	for name := range w {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (w Weights) clone() Weights {
	if w == nil {
		return nil
	}
	out := make(Weights, len(w))
	for name, v := range w {
		out[name] = v
	}
	return out
}

// WeightSet holds one Weights map per mesh vertex, parallel to vertex
// indices.
type WeightSet []Weights

// WeightedCount reports how many vertices carry at least one
// influence.
func (s WeightSet) WeightedCount() int {
	n := 0
	for _, w := range s {
		if len(w) > 0 {
			n++
		}
	}
	return n
}
