package topo

import (
	"reflect"
	"testing"
)

// quadStrip builds a 2-triangle quad:
//
//	3---2
//	| \ |
//	0---1
func quadStrip() *Graph {
	g, err := NewGraph(4, [][3]int{{0, 1, 3}, {1, 2, 3}})
	if err != nil {
		panic(err)
	}
	return g
}

func TestGraphNeighbors(t *testing.T) {
	g := quadStrip()
	for _, test := range []struct {
		v   int
		out []int
	}{
		{0, []int{1, 3}},
		{1, []int{0, 2, 3}},
		{2, []int{1, 3}},
		{3, []int{0, 1, 2}},
	} {
		if got := g.Neighbors(test.v); !reflect.DeepEqual(got, test.out) {
			t.Errorf("Neighbors(%d) = %v, expected %v", test.v, got, test.out)
		}
	}
}

func TestGraphValidation(t *testing.T) {
	if _, err := NewGraph(3, [][3]int{{0, 1, 5}}); err == nil {
		t.Errorf("expected out-of-range vertex error")
	}
	if _, err := NewGraph(3, [][3]int{{0, 1, 1}}); err == nil {
		t.Errorf("expected degenerate face error")
	}
}

func TestGraphBoundary(t *testing.T) {
	// every vertex of an open quad strip touches a single-use edge
	g := quadStrip()
	if got := g.Boundary(); !reflect.DeepEqual(got, []int{0, 1, 2, 3}) {
		t.Errorf("Boundary = %v, expected all four vertices", got)
	}

	// a closed tetrahedron has no boundary at all
	tet, err := NewGraph(4, [][3]int{{0, 1, 2}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	if got := tet.Boundary(); len(got) != 0 {
		t.Errorf("tetrahedron Boundary = %v, expected none", got)
	}
}

func TestExpandRings(t *testing.T) {
	// path graph 0-1-2-3 built from slim triangles with a far apex 4
	g, err := NewGraph(6, [][3]int{{0, 1, 4}, {1, 2, 5}, {2, 3, 5}})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}

	for _, test := range []struct {
		seeds []int
		rings int
		out   []int
	}{
		{[]int{0}, 0, []int{0}},
		{[]int{0}, 1, []int{0, 1, 4}},
		{[]int{0}, 2, []int{0, 1, 2, 4, 5}},
		{[]int{0}, 10, []int{0, 1, 2, 3, 4, 5}},
		{nil, 3, []int{}},
	} {
		if got := g.ExpandRings(test.seeds, test.rings); !reflect.DeepEqual(got, test.out) {
			t.Errorf("ExpandRings(%v, %d) = %v, expected %v", test.seeds, test.rings, got, test.out)
		}
	}
}
