package skin

import (
	"github.com/pkg/errors"

	"github.com/avafab/shapeport/config"
	"github.com/avafab/shapeport/rig"
	"github.com/avafab/shapeport/topo"
	"github.com/avafab/shapeport/vmap"
)

// Report collects per-run outcomes for caller-side logging.
type Report struct {
	Weighted     int
	Unweighted   int
	Shifted      int      // boundary vertices whose dominant weight moved toward a child bone
	MissingBones []string // dominant bones absent from the target skeleton
}

// Transfer interpolates a source mesh's bone weights across the
// correspondence map, smooths them over the target topology and
// corrects the boundary bias fitting maps introduce at cuffs and
// hems. Bone names are shared between the source weights and the
// target skeleton, same as in retargeting.
//
// The correspondence map and adjacency graph must describe the same
// target mesh.
func Transfer(src WeightSet, corr *vmap.Map, graph *topo.Graph, skeleton *rig.Skeleton,
	cfg config.Skin) (WeightSet, *Report, error) {

	if graph.VertexCount() != corr.Len() {
		return nil, nil, errors.Errorf("Adjacency graph covers %d vertices, correspondence map %d",
			graph.VertexCount(), corr.Len())
	}

	report := &Report{}
	out := interpolate(src, corr)
	smooth(out, graph, cfg)
	correctBoundary(out, graph, skeleton, cfg, report)

	for _, w := range out {
		if len(w) > 0 {
			report.Weighted++
		} else {
			report.Unweighted++
		}
	}
	return out, report, nil
}

// interpolate gathers each target vertex's bone contributions from
// its one or three source vertices. Extrapolating barycentric entries
// can drive an accumulated weight negative; such influences have no
// meaning downstream and are dropped before normalization.
func interpolate(src WeightSet, corr *vmap.Map) WeightSet {
	out := make(WeightSet, corr.Len())
	for i := range out {
		e := corr.Entry(i)

		acc := make(Weights)
		switch e.Kind {
		case vmap.Direct:
			if e.V[0] < len(src) {
				for name, w := range src[e.V[0]] {
					acc[name] += w
				}
			}
		case vmap.Barycentric:
			for k := 0; k < 3; k++ {
				if e.V[k] >= len(src) {
					continue
				}
				for name, w := range src[e.V[k]] {
					acc[name] += w * e.W[k]
				}
			}
		}
		for name, w := range acc {
			if w <= 0 {
				delete(acc, name)
			}
		}
		if len(acc) == 0 {
			continue
		}
		out[i] = acc.Normalize()
	}
	return out
}

// smooth blends each weighted vertex toward its neighborhood average,
// renormalizing after every sweep. Unweighted vertices stay
// unweighted; weight must not leak onto vertices the correspondence
// gave no influence at all.
func smooth(set WeightSet, graph *topo.Graph, cfg config.Skin) {
	if cfg.SmoothIterations <= 0 || cfg.SmoothBlend <= 0 {
		return
	}

	prev := make(WeightSet, len(set))
	for it := 0; it < cfg.SmoothIterations; it++ {
		for i := range set {
			prev[i] = set[i].clone()
		}

		for v := range set {
			if len(prev[v]) == 0 {
				continue
			}
			neighbors := graph.Neighbors(v)
			if len(neighbors) == 0 {
				continue
			}

			// union of bones seen at the vertex and around it;
			// absent entries count as zero on both sides
			bones := make(map[string]bool, len(prev[v]))
			for name := range prev[v] {
				bones[name] = true
			}
			for _, n := range neighbors {
				for name := range prev[n] {
					bones[name] = true
				}
			}

			blended := make(Weights, len(bones))
			inv := 1 / float32(len(neighbors))
			for name := range bones {
				var sum float32
				for _, n := range neighbors {
					sum += prev[n][name]
				}
				avg := sum * inv
				cur := prev[v][name]
				w := cur + (avg-cur)*cfg.SmoothBlend
				if w > 0 {
					blended[name] = w
				}
			}

			blended = blended.Normalize()
			for name, w := range blended {
				if w < cfg.MinWeight {
					delete(blended, name)
				}
			}
			if normalized := blended.Normalize(); normalized != nil {
				set[v] = normalized
			}
		}
	}
}

// correctBoundary counters the cuff/hem bias: fitting maps built for
// the body surface alias sleeve-end vertices to a body vertex one
// limb segment up, leaving them rigid when the child bone moves. For
// every vertex near an open edge, part of the dominant bone's weight
// shifts onto the dominant bone's strongest child.
func correctBoundary(set WeightSet, graph *topo.Graph, skeleton *rig.Skeleton,
	cfg config.Skin, report *Report) {

	if skeleton == nil || cfg.BoundaryShift <= 0 {
		return
	}

	missing := make(map[string]bool)
	for _, v := range graph.ExpandRings(graph.Boundary(), cfg.BoundaryRings) {
		w := set[v]
		if len(w) == 0 {
			continue
		}

		dominant, dominantWeight := w.Dominant()
		bi, ok := skeleton.Lookup(dominant)
		if !ok {
			if !missing[dominant] {
				missing[dominant] = true
				report.MissingBones = append(report.MissingBones, dominant)
			}
			continue
		}
		children := skeleton.Children(bi)
		if len(children) == 0 {
			continue
		}

		// the child already carrying the most weight here; the first
		// child in hierarchy order when none does or on a tie
		best := children[0]
		bestWeight := w[skeleton.Bone(best).Name]
		for _, c := range children[1:] {
			if cw := w[skeleton.Bone(c).Name]; cw > bestWeight {
				best, bestWeight = c, cw
			}
		}

		shift := dominantWeight * cfg.BoundaryShift
		w[dominant] -= shift
		w[skeleton.Bone(best).Name] += shift
		report.Shifted++
	}
}
