package topo

import (
	"sort"

	"github.com/pkg/errors"
)

// Graph is an immutable vertex adjacency view of a triangle mesh:
// vertices sharing a face are neighbors. It also knows which vertices
// lie on an open boundary (an edge used by exactly one face).
type Graph struct {
	neighbors [][]int
	boundary  []bool
}

func NewGraph(vertexCount int, faces [][3]int) (*Graph, error) {
	g := &Graph{
		neighbors: make([][]int, vertexCount),
		boundary:  make([]bool, vertexCount),
	}

	edgeUses := make(map[[2]int]int)
	for fi, f := range faces {
		for _, v := range f {
			if v < 0 || v >= vertexCount {
				return nil, errors.Errorf("Face %d references vertex %d, graph has %d", fi, v, vertexCount)
			}
		}
		for i := 0; i < 3; i++ {
			a, b := f[i], f[(i+1)%3]
			if a == b {
				return nil, errors.Errorf("Face %d is degenerate: repeated vertex %d", fi, a)
			}
			g.link(a, b)
			g.link(b, a)
			if a > b {
				a, b = b, a
			}
			edgeUses[[2]int{a, b}]++
		}
	}

	for edge, uses := range edgeUses {
		if uses == 1 {
			g.boundary[edge[0]] = true
			g.boundary[edge[1]] = true
		}
	}

	for v := range g.neighbors {
		sort.Ints(g.neighbors[v])
	}
	return g, nil
}

func (g *Graph) link(a, b int) {
	for _, n := range g.neighbors[a] {
		if n == b {
			return
		}
	}
	g.neighbors[a] = append(g.neighbors[a], b)
}

func (g *Graph) VertexCount() int { return len(g.neighbors) }

// Neighbors returns the sorted neighbor indices of v. The returned
// slice is shared and must not be modified.
func (g *Graph) Neighbors(v int) []int { return g.neighbors[v] }

func (g *Graph) IsBoundary(v int) bool { return g.boundary[v] }

// Boundary returns all boundary vertices in ascending order.
func (g *Graph) Boundary() []int {
	verts := make([]int, 0)
	for v, b := range g.boundary {
		if b {
			verts = append(verts, v)
		}
	}
	return verts
}

// ExpandRings grows a vertex set by the given number of adjacency
// rings. The result contains the seeds, is deduplicated and sorted.
func (g *Graph) ExpandRings(seeds []int, rings int) []int {
	in := make([]bool, len(g.neighbors))
	frontier := make([]int, 0, len(seeds))
	for _, v := range seeds {
		if v >= 0 && v < len(in) && !in[v] {
			in[v] = true
			frontier = append(frontier, v)
		}
	}
	for r := 0; r < rings; r++ {
		next := make([]int, 0)
		for _, v := range frontier {
			for _, n := range g.neighbors[v] {
				if !in[n] {
					in[n] = true
					next = append(next, n)
				}
			}
		}
		if len(next) == 0 {
			break
		}
		frontier = next
	}

	out := make([]int, 0)
	for v, ok := range in {
		if ok {
			out = append(out, v)
		}
	}
	return out
}
