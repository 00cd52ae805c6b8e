package morph

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/avafab/shapeport/config"
	"github.com/avafab/shapeport/knn"
	"github.com/avafab/shapeport/topo"
	"github.com/avafab/shapeport/utils"
	"github.com/avafab/shapeport/vmap"
)

// Report collects per-run outcomes for caller-side logging.
type Report struct {
	Transferred []string
	Dropped     []string // relevance-filtered names
	Clamped     int
	Fallbacks   int
	SmoothOps   int
}

// Transfer moves every named displacement field across the
// correspondence map onto the target mesh. Fields whose effect on
// this particular target is negligible are omitted from the output,
// which is the expected outcome for morphs living on body parts the
// target does not cover.
//
// The correspondence map, adjacency graph and position slice must all
// describe the same target mesh; the spatial index must cover the
// source mesh the fields are defined on.
func Transfer(fields *Set, corr *vmap.Map, graph *topo.Graph, srcIndex *knn.Index,
	targetPositions []mgl32.Vec3, cfg config.Morph) (*Set, *Report, error) {

	if corr.Len() != len(targetPositions) {
		return nil, nil, errors.Errorf("Correspondence map covers %d vertices, target mesh has %d",
			corr.Len(), len(targetPositions))
	}
	if graph.VertexCount() != len(targetPositions) {
		return nil, nil, errors.Errorf("Adjacency graph covers %d vertices, target mesh has %d",
			graph.VertexCount(), len(targetPositions))
	}

	out := NewSet()
	report := &Report{}
	for _, name := range fields.Names() {
		src, _ := fields.Field(name)
		result := transferField(src, corr, graph, srcIndex, targetPositions, cfg, report)
		if result.MaxMagnitude() < cfg.MinRelevance {
			report.Dropped = append(report.Dropped, name)
			continue
		}
		report.Transferred = append(report.Transferred, name)
		out.Add(name, result)
	}
	return out, report, nil
}

func transferField(src Field, corr *vmap.Map, graph *topo.Graph, srcIndex *knn.Index,
	targetPositions []mgl32.Vec3, cfg config.Morph, report *Report) Field {

	cur := interpolate(src, corr)

	// compensate and clamp in one sweep
	for i, d := range cur {
		if d.Len() < cfg.NoiseFloor {
			continue
		}
		d = d.Mul(cfg.DeltaScale)
		clamped := utils.ClampMagnitude(d, cfg.MaxDelta)
		if clamped != d {
			report.Clamped++
		}
		cur[i] = clamped
	}

	report.Fallbacks += spatialFallback(cur, src, srcIndex, targetPositions, cfg)
	report.SmoothOps += smooth(cur, graph, cfg)

	result := make(Field)
	for i, d := range cur {
		if d.Len() >= cfg.NoiseFloor {
			result[i] = d
		}
	}
	return result
}

// interpolate evaluates every correspondence entry against the source
// field. Missing source displacements count as zero, so a barycentric
// entry straddling the affected region's edge comes out attenuated;
// the compensation sweep pushes it back up.
func interpolate(src Field, corr *vmap.Map) []mgl32.Vec3 {
	cur := make([]mgl32.Vec3, corr.Len())
	for i := range cur {
		e := corr.Entry(i)
		switch e.Kind {
		case vmap.Direct:
			cur[i] = src[e.V[0]]
		case vmap.Barycentric:
			var sum mgl32.Vec3
			for k := 0; k < 3; k++ {
				if d, ok := src[e.V[k]]; ok {
					sum = sum.Add(d.Mul(e.W[k]))
				}
			}
			cur[i] = sum
		}
	}
	return cur
}

// spatialFallback fills target vertices the map left unaffected but
// which sit close to affected source geometry, with an
// inverse-distance-weighted average of the nearest affected source
// displacements. Returns the number of vertices filled.
func spatialFallback(cur []mgl32.Vec3, src Field, srcIndex *knn.Index,
	targetPositions []mgl32.Vec3, cfg config.Morph) int {

	if srcIndex == nil || cfg.FallbackRadius <= 0 || cfg.FallbackNeighbors <= 0 {
		return 0
	}

	filled := 0
	for i := range cur {
		if cur[i].Len() >= cfg.NoiseFloor {
			continue
		}

		var sum mgl32.Vec3
		var weightSum float32
		taken := 0
		for _, hit := range srcIndex.InRadius(targetPositions[i], cfg.FallbackRadius) {
			d, ok := src[hit.Index]
			if !ok || d.Len() < cfg.NoiseFloor {
				continue
			}
			dist := float32(math.Sqrt(float64(hit.Dist2)))
			if dist < 1e-9 {
				dist = 1e-9
			}
			w := 1 / dist
			sum = sum.Add(d.Mul(w))
			weightSum += w
			if taken++; taken >= cfg.FallbackNeighbors {
				break
			}
		}
		if taken == 0 || weightSum == 0 {
			continue
		}
		cur[i] = sum.Mul(1 / weightSum)
		filled++
	}
	return filled
}

// smooth runs bounded propagate/boost sweeps over the adjacency
// graph. Each sweep reads the previous sweep's snapshot; a sweep that
// performs neither operation ends the loop early. Returns the total
// number of vertex updates.
func smooth(cur []mgl32.Vec3, graph *topo.Graph, cfg config.Morph) int {
	ops := 0
	prev := make([]mgl32.Vec3, len(cur))
	for it := 0; it < cfg.SmoothIterations; it++ {
		copy(prev, cur)
		changed := false

		for v := range cur {
			var sum mgl32.Vec3
			displaced := 0
			for _, n := range graph.Neighbors(v) {
				if prev[n].Len() >= cfg.NoiseFloor {
					sum = sum.Add(prev[n])
					displaced++
				}
			}
			if displaced == 0 {
				continue
			}
			avg := sum.Mul(1 / float32(displaced))
			avgLen := avg.Len()

			curLen := prev[v].Len()
			if curLen < cfg.NoiseFloor {
				// propagate into the hole, weakening with distance
				// from the affected region
				adopted := avg.Mul(cfg.SmoothDecay)
				if adopted.Len() >= cfg.NoiseFloor {
					cur[v] = adopted
					changed = true
					ops++
				}
			} else if avgLen >= cfg.NoiseFloor && curLen < cfg.BoostBelow*avgLen {
				// boost a vertex lagging far behind its neighborhood
				cur[v] = prev[v].Add(avg.Sub(prev[v]).Mul(cfg.BoostBlend))
				changed = true
				ops++
			}
		}
		if !changed {
			break
		}
	}
	return ops
}
