package knn

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// point is one indexed vertex position in tree space.
type point struct {
	pos mgl32.Vec3
	idx int
}

func (p point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(point)
	return float64(p.pos[d] - q.pos[d])
}

func (p point) Dims() int { return 3 }

// Distance follows the kdtree convention and returns the squared
// euclidean distance.
func (p point) Distance(c kdtree.Comparable) float64 {
	q := c.(point)
	v := p.pos.Sub(q.pos)
	return float64(v.Dot(v))
}

type points []point

func (p points) Index(i int) kdtree.Comparable         { return p[i] }
func (p points) Len() int                              { return len(p) }
func (p points) Pivot(d kdtree.Dim) int                { return plane{points: p, dim: d}.Pivot() }
func (p points) Slice(start, end int) kdtree.Interface { return p[start:end] }

type plane struct {
	points
	dim kdtree.Dim
}

func (p plane) Less(i, j int) bool { return p.points[i].pos[p.dim] < p.points[j].pos[p.dim] }
func (p plane) Pivot() int         { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}
func (p plane) Swap(i, j int) { p.points[i], p.points[j] = p.points[j], p.points[i] }

// Hit is one query result. Dist2 is the squared distance to the query
// position.
type Hit struct {
	Index int
	Dist2 float32
}

// Index is a static nearest-neighbor structure over mesh vertex
// positions. Build once, query many times; it never changes after
// construction.
type Index struct {
	tree *kdtree.Tree
	n    int
}

func NewIndex(positions []mgl32.Vec3) *Index {
	pts := make(points, len(positions))
	for i, pos := range positions {
		pts[i] = point{pos: pos, idx: i}
	}
	return &Index{tree: kdtree.New(pts, false), n: len(pts)}
}

// NewSubsetIndex indexes only the listed vertices. Hits still report
// original vertex indices.
func NewSubsetIndex(positions []mgl32.Vec3, subset []int) *Index {
	pts := make(points, 0, len(subset))
	for _, i := range subset {
		if i >= 0 && i < len(positions) {
			pts = append(pts, point{pos: positions[i], idx: i})
		}
	}
	return &Index{tree: kdtree.New(pts, false), n: len(pts)}
}

func (x *Index) Len() int { return x.n }

// Nearest returns up to k hits sorted by ascending distance.
func (x *Index) Nearest(pos mgl32.Vec3, k int) []Hit {
	if x.n == 0 || k <= 0 {
		return nil
	}
	keep := kdtree.NewNKeeper(k)
	x.tree.NearestSet(keep, point{pos: pos, idx: -1})
	return collectHits(keep.Heap)
}

// InRadius returns all hits within radius of pos, sorted by ascending
// distance.
func (x *Index) InRadius(pos mgl32.Vec3, radius float32) []Hit {
	if x.n == 0 || radius <= 0 {
		return nil
	}
	keep := kdtree.NewDistKeeper(float64(radius) * float64(radius))
	x.tree.NearestSet(keep, point{pos: pos, idx: -1})
	return collectHits(keep.Heap)
}

func collectHits(heap []kdtree.ComparableDist) []Hit {
	hits := make([]Hit, 0, len(heap))
	for _, cd := range heap {
		if cd.Comparable == nil {
			continue
		}
		hits = append(hits, Hit{Index: cd.Comparable.(point).idx, Dist2: float32(cd.Dist)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Dist2 != hits[j].Dist2 {
			return hits[i].Dist2 < hits[j].Dist2
		}
		return hits[i].Index < hits[j].Index
	})
	return hits
}
