package export

import (
	"bytes"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/qmuntal/gltf"

	"github.com/avafab/shapeport/mesh"
	"github.com/avafab/shapeport/morph"
	"github.com/avafab/shapeport/rig"
	"github.com/avafab/shapeport/skin"
)

func testSkeleton(t *testing.T) *rig.Skeleton {
	t.Helper()
	s, err := rig.NewSkeleton([]rig.Bone{
		{Name: "Root", Parent: rig.NoParent, Rest: rig.Transform{Rotation: mgl32.QuatIdent()}},
		{Name: "Child", Parent: 0, Rest: rig.Transform{
			Rotation:    mgl32.QuatRotate(math.Pi/4, mgl32.Vec3{1, 0, 0}),
			Translation: mgl32.Vec3{0, 1, 0},
		}},
	})
	if err != nil {
		t.Fatalf("NewSkeleton: %v", err)
	}
	return s
}

func testScene(t *testing.T) *Scene {
	t.Helper()
	m, err := mesh.New("tube", []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}, [][3]int{{0, 1, 2}})
	if err != nil {
		t.Fatalf("mesh.New: %v", err)
	}
	clip, err := rig.NewClip("wave", 0, 2, 30)
	if err != nil {
		t.Fatalf("NewClip: %v", err)
	}
	clip.At(1).Set("Child", mgl32.QuatRotate(0.5, mgl32.Vec3{0, 1, 0}))

	morphs := morph.NewSet()
	morphs.Add("smile", morph.Field{0: {0.1, 0, 0}})
	morphs.Add("frown", morph.Field{2: {0, 0.1, 0}})

	return &Scene{
		Name:     "sample",
		Skeleton: testSkeleton(t),
		Mesh:     m,
		Weights: skin.WeightSet{
			{"Root": 1},
			{"Root": 0.5, "Child": 0.5},
			{"Child": 1},
		},
		Morphs: morphs,
		Clip:   clip,
		RunID:  uuid.MustParse("11111111-2222-3333-4444-555555555555"),
	}
}

func TestBakeGLTFWritesBinaryDocument(t *testing.T) {
	var buf bytes.Buffer
	if err := BakeGLTF(&buf, testScene(t)); err != nil {
		t.Fatalf("BakeGLTF: %v", err)
	}
	if buf.Len() < 12 || string(buf.Bytes()[:4]) != "glTF" {
		t.Errorf("output does not start with the glb magic, got %d bytes", buf.Len())
	}
}

func TestBakeSkeletonNodesTree(t *testing.T) {
	doc := gltf.NewDocument()
	nodes := bakeSkeletonNodes(doc, testSkeleton(t))

	if len(doc.Nodes) != 2 {
		t.Fatalf("node count = %d, expected 2", len(doc.Nodes))
	}
	root := doc.Nodes[nodes[0]]
	if len(root.Children) != 1 || root.Children[0] != nodes[1] {
		t.Errorf("root children = %v, expected [%d]", root.Children, nodes[1])
	}
	if len(doc.Scenes[0].Nodes) != 1 || doc.Scenes[0].Nodes[0] != nodes[0] {
		t.Errorf("scene roots = %v, expected only the root bone", doc.Scenes[0].Nodes)
	}
	child := doc.Nodes[nodes[1]]
	if child.Translation != ([3]float32{0, 1, 0}) {
		t.Errorf("child translation = %v", child.Translation)
	}
}

func TestBakeAnimationOneChannelPerBone(t *testing.T) {
	s := testScene(t)
	s.Clip.At(2).Set("Root", mgl32.QuatRotate(0.1, mgl32.Vec3{0, 0, 1}))
	s.Clip.At(1).Set("Ghost", mgl32.QuatIdent()) // not in the skeleton

	doc := gltf.NewDocument()
	nodes := bakeSkeletonNodes(doc, s.Skeleton)
	bakeAnimation(doc, s.Skeleton, nodes, s.Clip)

	if len(doc.Animations) != 1 {
		t.Fatalf("animation count = %d", len(doc.Animations))
	}
	anim := doc.Animations[0]
	if anim.Name != "wave" {
		t.Errorf("animation name = %q", anim.Name)
	}
	if len(anim.Channels) != 2 || len(anim.Samplers) != 2 {
		t.Fatalf("channels/samplers = %d/%d, expected 2/2", len(anim.Channels), len(anim.Samplers))
	}
	for _, ch := range anim.Channels {
		if ch.Target.Path != gltf.TRSRotation {
			t.Errorf("channel path = %v, expected rotation", ch.Target.Path)
		}
	}
	// all samplers share one input accessor with explicit bounds
	input := *anim.Samplers[0].Input
	for _, sampler := range anim.Samplers {
		if *sampler.Input != input {
			t.Errorf("samplers use different time accessors")
		}
	}
	acc := doc.Accessors[input]
	if len(acc.Min) != 1 || len(acc.Max) != 1 || acc.Max[0] <= acc.Min[0] {
		t.Errorf("input accessor bounds = %v..%v", acc.Min, acc.Max)
	}
}

func TestBakeMeshMorphTargetsParallelToNames(t *testing.T) {
	s := testScene(t)
	doc := gltf.NewDocument()
	nodes := bakeSkeletonNodes(doc, s.Skeleton)
	if err := bakeMesh(doc, s, nodes); err != nil {
		t.Fatalf("bakeMesh: %v", err)
	}

	if len(doc.Meshes) != 1 {
		t.Fatalf("mesh count = %d", len(doc.Meshes))
	}
	gm := doc.Meshes[0]
	prim := gm.Primitives[0]
	if len(prim.Targets) != 2 {
		t.Fatalf("morph target count = %d, expected 2", len(prim.Targets))
	}
	extras, ok := gm.Extras.(map[string]interface{})
	if !ok {
		t.Fatalf("mesh extras missing")
	}
	names, ok := extras["targetNames"].([]string)
	if !ok || len(names) != len(prim.Targets) {
		t.Fatalf("targetNames = %v, expected parallel to %d targets", extras["targetNames"], len(prim.Targets))
	}
	if names[0] != "smile" || names[1] != "frown" {
		t.Errorf("targetNames order = %v, expected insertion order", names)
	}
	if len(gm.Weights) != len(names) {
		t.Errorf("default morph weights = %v", gm.Weights)
	}
	if _, ok := prim.Attributes["JOINTS_0"]; !ok {
		t.Errorf("primitive lacks JOINTS_0")
	}
	if len(doc.Skins) != 1 || len(doc.Skins[0].Joints) != 2 {
		t.Errorf("skin joints = %v", doc.Skins)
	}
}

func TestPackWeightsTopFour(t *testing.T) {
	s, err := rig.NewSkeleton([]rig.Bone{
		{Name: "A", Parent: rig.NoParent, Rest: rig.Transform{Rotation: mgl32.QuatIdent()}},
		{Name: "B", Parent: 0, Rest: rig.Transform{Rotation: mgl32.QuatIdent()}},
		{Name: "C", Parent: 0, Rest: rig.Transform{Rotation: mgl32.QuatIdent()}},
		{Name: "D", Parent: 0, Rest: rig.Transform{Rotation: mgl32.QuatIdent()}},
		{Name: "E", Parent: 0, Rest: rig.Transform{Rotation: mgl32.QuatIdent()}},
	})
	if err != nil {
		t.Fatalf("NewSkeleton: %v", err)
	}

	set := skin.WeightSet{
		{"A": 0.4, "B": 0.3, "C": 0.15, "D": 0.1, "E": 0.05},
		{"B": 1},
		nil, // unweighted vertex stays all zero
	}
	joints, weights, err := PackWeights(set, s)
	if err != nil {
		t.Fatalf("PackWeights: %v", err)
	}

	var sum float32
	for _, w := range weights[0] {
		sum += w
	}
	if d := math.Abs(float64(sum - 1)); d > 1e-5 {
		t.Errorf("top-4 weights sum to %v", sum)
	}
	for k, j := range joints[0] {
		if j == 4 { // E, the fifth influence, must be dropped
			t.Errorf("slot %d kept the smallest influence", k)
		}
	}
	// zero-weight slots carry joint 0
	for k := 1; k < 4; k++ {
		if weights[1][k] == 0 && joints[1][k] != 0 {
			t.Errorf("vertex 1 slot %d: zero weight with joint %d", k, joints[1][k])
		}
	}
	if weights[2] != ([4]float32{}) || joints[2] != ([4]uint16{}) {
		t.Errorf("unweighted vertex gained influences: %v %v", joints[2], weights[2])
	}

	if _, _, err := PackWeights(skin.WeightSet{{"Zed": 1}}, s); err == nil {
		t.Error("expected an error for an unknown bone name")
	}
}
