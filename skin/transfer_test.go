package skin

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/avafab/shapeport/config"
	"github.com/avafab/shapeport/rig"
	"github.com/avafab/shapeport/topo"
	"github.com/avafab/shapeport/vmap"
)

func mustMap(t *testing.T, entries []vmap.Entry) *vmap.Map {
	t.Helper()
	m, err := vmap.New(entries)
	if err != nil {
		t.Fatalf("vmap.New: %v", err)
	}
	return m
}

func mustGraph(t *testing.T, vertexCount int, faces [][3]int) *topo.Graph {
	t.Helper()
	g, err := topo.NewGraph(vertexCount, faces)
	if err != nil {
		t.Fatalf("topo.NewGraph: %v", err)
	}
	return g
}

func armSkeleton(t *testing.T) *rig.Skeleton {
	t.Helper()
	rest := rig.Transform{Rotation: mgl32.QuatIdent()}
	s, err := rig.NewSkeleton([]rig.Bone{
		{Name: "Arm", Parent: rig.NoParent, Rest: rest},
		{Name: "ForeArm", Parent: 0, Rest: rest},
		{Name: "Hand", Parent: 1, Rest: rest},
	})
	if err != nil {
		t.Fatalf("NewSkeleton: %v", err)
	}
	return s
}

// plainSkin disables smoothing and boundary correction so
// interpolation can be observed alone.
func plainSkin() config.Skin {
	cfg := config.Default().Skin
	cfg.SmoothIterations = 0
	cfg.BoundaryShift = 0
	return cfg
}

func checkSum(t *testing.T, w Weights, vertex int) {
	t.Helper()
	if len(w) == 0 {
		return
	}
	if d := math.Abs(float64(w.Sum() - 1)); d > 1e-5 {
		t.Errorf("vertex %d weights sum to %v", vertex, w.Sum())
	}
	for name, v := range w {
		if v < 0 {
			t.Errorf("vertex %d bone %s has negative weight %v", vertex, name, v)
		}
	}
}

func TestTransferInterpolatesAndNormalizes(t *testing.T) {
	src := WeightSet{
		{"Arm": 1},
		{"Arm": 0.5, "ForeArm": 0.5},
		{"ForeArm": 1},
	}
	corr := mustMap(t, []vmap.Entry{
		vmap.DirectEntry(1),
		vmap.BarycentricEntry(0, 1, 2, 0.5, 0.25, 0.25),
	})
	graph := mustGraph(t, 2, nil)

	out, report, err := Transfer(src, corr, graph, armSkeleton(t), plainSkin())
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	if report.Weighted != 2 {
		t.Errorf("weighted = %d, expected 2", report.Weighted)
	}
	for v, w := range out {
		checkSum(t, w, v)
	}
	// 0.5*Arm(1) + 0.25*(Arm 0.5 + ForeArm 0.5) + 0.25*ForeArm(1)
	if d := math.Abs(float64(out[1]["Arm"] - 0.625)); d > 1e-5 {
		t.Errorf("barycentric Arm weight = %v, expected 0.625", out[1]["Arm"])
	}
}

func TestTransferDropsNegativeAccumulations(t *testing.T) {
	src := WeightSet{
		{"Arm": 1},
		{"Arm": 1},
		{"Hand": 1},
	}
	// extrapolating entry pushes Hand's contribution negative
	corr := mustMap(t, []vmap.Entry{
		vmap.BarycentricEntry(0, 1, 2, 0.75, 0.75, -0.5),
	})
	graph := mustGraph(t, 1, nil)

	out, _, err := Transfer(src, corr, graph, armSkeleton(t), plainSkin())
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if _, ok := out[0]["Hand"]; ok {
		t.Errorf("negative Hand accumulation survived: %v", out[0])
	}
	checkSum(t, out[0], 0)
}

func TestTransferLeavesUnmappedVerticesUnweighted(t *testing.T) {
	src := WeightSet{{"Arm": 1}}
	// both entries point past the source weight data
	corr := mustMap(t, []vmap.Entry{
		vmap.DirectEntry(9),
		vmap.BarycentricEntry(7, 8, 9, 0.3, 0.3, 0.4),
	})
	graph := mustGraph(t, 2, nil)

	out, report, err := Transfer(src, corr, graph, armSkeleton(t), plainSkin())
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if report.Unweighted != 2 {
		t.Errorf("unweighted = %d, expected 2", report.Unweighted)
	}
	for v, w := range out {
		if len(w) != 0 {
			t.Errorf("vertex %d gained weights %v from nothing", v, w)
		}
	}
}

func TestTransferSmoothingKeepsInvariants(t *testing.T) {
	cfg := config.Default().Skin
	cfg.BoundaryShift = 0
	cfg.SmoothIterations = 3

	src := WeightSet{
		{"Arm": 1},
		{"Arm": 0.6, "ForeArm": 0.4},
		{"ForeArm": 1},
		{"ForeArm": 0.2, "Hand": 0.8},
	}
	corr := mustMap(t, []vmap.Entry{
		vmap.DirectEntry(0), vmap.DirectEntry(1), vmap.DirectEntry(2), vmap.DirectEntry(3),
	})
	graph := mustGraph(t, 4, [][3]int{{0, 1, 2}, {1, 2, 3}})

	out, _, err := Transfer(src, corr, graph, armSkeleton(t), cfg)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	for v, w := range out {
		if len(w) == 0 {
			t.Errorf("vertex %d lost all weight to smoothing", v)
		}
		checkSum(t, w, v)
		for name, value := range w {
			if value < cfg.MinWeight {
				t.Errorf("vertex %d keeps negligible weight %s=%v", v, name, value)
			}
		}
	}
	// smoothing pulls the pure-Arm vertex toward its mixed neighbors
	if out[0]["ForeArm"] == 0 {
		t.Errorf("vertex 0 did not blend toward its neighbors: %v", out[0])
	}
}

func TestBoundaryCorrectionShiftsTowardChild(t *testing.T) {
	cfg := plainSkin()
	cfg.BoundaryShift = 0.5
	cfg.BoundaryRings = 0

	// a lone triangle: every vertex lies on an open edge
	src := WeightSet{
		{"Arm": 0.8, "ForeArm": 0.2},
		{"Arm": 0.8, "ForeArm": 0.2},
		{"Arm": 0.8, "ForeArm": 0.2},
	}
	corr := mustMap(t, []vmap.Entry{
		vmap.DirectEntry(0), vmap.DirectEntry(1), vmap.DirectEntry(2),
	})
	graph := mustGraph(t, 3, [][3]int{{0, 1, 2}})

	out, report, err := Transfer(src, corr, graph, armSkeleton(t), cfg)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if report.Shifted != 3 {
		t.Errorf("shifted = %d, expected all 3 boundary vertices", report.Shifted)
	}
	for v, w := range out {
		checkSum(t, w, v)
		if d := math.Abs(float64(w["Arm"] - 0.4)); d > 1e-5 {
			t.Errorf("vertex %d Arm = %v, expected 0.4 after the shift", v, w["Arm"])
		}
		if d := math.Abs(float64(w["ForeArm"] - 0.6)); d > 1e-5 {
			t.Errorf("vertex %d ForeArm = %v, expected 0.6 after the shift", v, w["ForeArm"])
		}
	}
}

func TestBoundaryCorrectionPicksStrongestChild(t *testing.T) {
	rest := rig.Transform{Rotation: mgl32.QuatIdent()}
	skeleton, err := rig.NewSkeleton([]rig.Bone{
		{Name: "Spine", Parent: rig.NoParent, Rest: rest},
		{Name: "LeftArm", Parent: 0, Rest: rest},
		{Name: "RightArm", Parent: 0, Rest: rest},
	})
	if err != nil {
		t.Fatalf("NewSkeleton: %v", err)
	}

	cfg := plainSkin()
	cfg.BoundaryShift = 0.5

	src := WeightSet{
		{"Spine": 0.7, "RightArm": 0.3},
		{"Spine": 0.7, "RightArm": 0.3},
		{"Spine": 0.7, "RightArm": 0.3},
	}
	corr := mustMap(t, []vmap.Entry{
		vmap.DirectEntry(0), vmap.DirectEntry(1), vmap.DirectEntry(2),
	})
	graph := mustGraph(t, 3, [][3]int{{0, 1, 2}})

	out, _, err := Transfer(src, corr, graph, skeleton, cfg)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	for v, w := range out {
		checkSum(t, w, v)
		if w["RightArm"] <= w["LeftArm"] {
			t.Errorf("vertex %d shifted to the wrong child: %v", v, w)
		}
		if _, ok := w["LeftArm"]; ok {
			t.Errorf("vertex %d gained the unweighted sibling: %v", v, w)
		}
	}
}

func TestBoundaryCorrectionSkipsUnknownBones(t *testing.T) {
	cfg := plainSkin()
	cfg.BoundaryShift = 0.5

	src := WeightSet{{"Tail": 1}, {"Tail": 1}, {"Tail": 1}}
	corr := mustMap(t, []vmap.Entry{
		vmap.DirectEntry(0), vmap.DirectEntry(1), vmap.DirectEntry(2),
	})
	graph := mustGraph(t, 3, [][3]int{{0, 1, 2}})

	out, report, err := Transfer(src, corr, graph, armSkeleton(t), cfg)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if len(report.MissingBones) != 1 || report.MissingBones[0] != "Tail" {
		t.Errorf("missing bones = %v, expected [Tail]", report.MissingBones)
	}
	for v, w := range out {
		if d := math.Abs(float64(w["Tail"] - 1)); d > 1e-6 {
			t.Errorf("vertex %d changed despite unknown dominant bone: %v", v, w)
		}
	}
}
