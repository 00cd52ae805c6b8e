package main

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/avafab/shapeport/mesh"
	"github.com/avafab/shapeport/morph"
	"github.com/avafab/shapeport/rig"
	"github.com/avafab/shapeport/skin"
	"github.com/avafab/shapeport/vmap"
)

// Demo is a self-contained sample transfer: a reference armature with
// a wave clip, a variant target armature with rolled rest bones, and
// a low-poly tube fitted around the reference arm.
type Demo struct {
	Source     *rig.Skeleton
	Target     *rig.Skeleton
	Clip       *rig.Clip
	Rename     map[string]string
	Skip       map[string]bool
	SourceMesh *mesh.Mesh
	TargetMesh *mesh.Mesh
	Corr       *vmap.Map
	Morphs     *morph.Set
	Weights    skin.WeightSet
}

const mixamoPrefix = "mixamorig:"

type demoBone struct {
	name   string
	parent string
	head   mgl32.Vec3
	tail   mgl32.Vec3
}

// The reference chain mirrors the simplified standard humanoid the
// animation vendor ships: hips up the spine, head, both arms.
var demoBones = []demoBone{
	{"Hips", "", mgl32.Vec3{0, 0, 1.0}, mgl32.Vec3{0, 0, 1.05}},
	{"Spine", "Hips", mgl32.Vec3{0, 0, 1.05}, mgl32.Vec3{0, 0, 1.15}},
	{"Spine1", "Spine", mgl32.Vec3{0, 0, 1.15}, mgl32.Vec3{0, 0, 1.25}},
	{"Spine2", "Spine1", mgl32.Vec3{0, 0, 1.25}, mgl32.Vec3{0, 0, 1.35}},
	{"Neck", "Spine2", mgl32.Vec3{0, 0, 1.35}, mgl32.Vec3{0, 0, 1.45}},
	{"Head", "Neck", mgl32.Vec3{0, 0, 1.45}, mgl32.Vec3{0, 0, 1.6}},
	{"RightShoulder", "Spine2", mgl32.Vec3{0, 0, 1.35}, mgl32.Vec3{0.1, 0, 1.35}},
	{"RightArm", "RightShoulder", mgl32.Vec3{0.1, 0, 1.35}, mgl32.Vec3{0.3, 0, 1.35}},
	{"RightForeArm", "RightArm", mgl32.Vec3{0.3, 0, 1.35}, mgl32.Vec3{0.5, 0, 1.35}},
	{"RightHand", "RightForeArm", mgl32.Vec3{0.5, 0, 1.35}, mgl32.Vec3{0.6, 0, 1.35}},
	{"LeftShoulder", "Spine2", mgl32.Vec3{0, 0, 1.35}, mgl32.Vec3{-0.1, 0, 1.35}},
	{"LeftArm", "LeftShoulder", mgl32.Vec3{-0.1, 0, 1.35}, mgl32.Vec3{-0.3, 0, 1.35}},
	{"LeftForeArm", "LeftArm", mgl32.Vec3{-0.3, 0, 1.35}, mgl32.Vec3{-0.5, 0, 1.35}},
	{"LeftHand", "LeftForeArm", mgl32.Vec3{-0.5, 0, 1.35}, mgl32.Vec3{-0.6, 0, 1.35}},
}

// demoSkeleton places each bone at its head offset from the parent's
// head. prefix decorates bone names; roll twists every right-arm bone
// about X so the two rigs disagree in local convention.
func demoSkeleton(prefix string, roll float32) (*rig.Skeleton, error) {
	heads := make(map[string]mgl32.Vec3, len(demoBones))
	index := make(map[string]int, len(demoBones))
	bones := make([]rig.Bone, 0, len(demoBones))

	for i, db := range demoBones {
		heads[db.name] = db.head
		index[db.name] = i

		parent := rig.NoParent
		offset := db.head
		if db.parent != "" {
			parent = index[db.parent]
			offset = db.head.Sub(heads[db.parent])
		}

		rotation := mgl32.QuatIdent()
		if roll != 0 && (db.name == "RightArm" || db.name == "RightForeArm" || db.name == "RightHand") {
			rotation = mgl32.QuatRotate(roll, mgl32.Vec3{1, 0, 0})
		}

		bones = append(bones, rig.Bone{
			Name:   prefix + db.name,
			Parent: parent,
			Rest:   rig.Transform{Rotation: rotation, Translation: offset},
		})
	}
	return rig.NewSkeleton(bones)
}

type demoKey struct {
	frame int
	euler mgl32.Vec3 // degrees
}

func keyedTrack(keys []demoKey, frameCount int) []mgl32.Quat {
	track := make([]mgl32.Quat, frameCount)
	for i := range track {
		track[i] = mgl32.QuatIdent()
	}
	toQuat := func(e mgl32.Vec3) mgl32.Quat {
		rad := e.Mul(math.Pi / 180)
		return mgl32.AnglesToQuat(rad[0], rad[1], rad[2], mgl32.XYZ)
	}
	for k := 0; k+1 < len(keys); k++ {
		a, b := keys[k], keys[k+1]
		qa, qb := toQuat(a.euler), toQuat(b.euler)
		for f := a.frame; f <= b.frame && f < frameCount; f++ {
			t := float32(f-a.frame) / float32(b.frame-a.frame)
			track[f] = mgl32.QuatSlerp(qa, qb, t)
		}
	}
	if last := keys[len(keys)-1]; last.frame < frameCount {
		q := toQuat(last.euler)
		for f := last.frame; f < frameCount; f++ {
			track[f] = q
		}
	}
	return track
}

// demoClip is the arm-wave take: the right arm raises, the forearm
// waves side to side, everything settles back by the last frame.
func demoClip() (*rig.Clip, error) {
	clip, err := rig.NewClip("", 0, 60, 30)
	if err != nil {
		return nil, err
	}

	arm := keyedTrack([]demoKey{
		{0, mgl32.Vec3{}},
		{10, mgl32.Vec3{0, 0, -150}},
		{50, mgl32.Vec3{0, 0, -150}},
		{60, mgl32.Vec3{}},
	}, clip.FrameCount())
	forearm := keyedTrack([]demoKey{
		{0, mgl32.Vec3{}},
		{10, mgl32.Vec3{0, 0, -30}},
		{20, mgl32.Vec3{0, 30, -30}},
		{30, mgl32.Vec3{0, -30, -30}},
		{40, mgl32.Vec3{0, 30, -30}},
		{50, mgl32.Vec3{0, 0, -30}},
		{60, mgl32.Vec3{}},
	}, clip.FrameCount())

	for f := 0; f < clip.FrameCount(); f++ {
		clip.Frames[f].Set(mixamoPrefix+"RightArm", arm[f])
		clip.Frames[f].Set(mixamoPrefix+"RightForeArm", forearm[f])
	}
	return clip, nil
}

// demoSourceMesh is a thin two-row strip running along the right arm,
// standing in for the body surface the fitting map was built against.
func demoSourceMesh() (*mesh.Mesh, error) {
	const segments = 6
	positions := make([]mgl32.Vec3, 0, (segments+1)*2)
	faces := make([][3]int, 0, segments*2)
	for i := 0; i <= segments; i++ {
		x := 0.1 + 0.5*float32(i)/segments
		positions = append(positions,
			mgl32.Vec3{x, -0.02, 1.35},
			mgl32.Vec3{x, 0.02, 1.35},
		)
		if i > 0 {
			a := (i - 1) * 2
			faces = append(faces,
				[3]int{a, a + 1, a + 2},
				[3]int{a + 1, a + 3, a + 2},
			)
		}
	}
	return mesh.New("arm_strip", positions, faces)
}

// demoTargetMesh is an open-ended tube around the arm, jittered a
// little so the fit is never exact.
func demoTargetMesh(seed int64) (*mesh.Mesh, *vmap.Map, error) {
	const (
		rings    = 5
		sides    = 4
		radius   = 0.035
		firstX   = 0.15
		lastX    = 0.55
		segments = 6 // matches demoSourceMesh
	)
	rng := rand.New(rand.NewSource(seed))

	positions := make([]mgl32.Vec3, 0, rings*sides)
	entries := make([]vmap.Entry, 0, rings*sides)
	for r := 0; r < rings; r++ {
		x := firstX + (lastX-firstX)*float32(r)/(rings-1)
		for s := 0; s < sides; s++ {
			angle := 2 * math.Pi * float64(s) / sides
			jitter := (rng.Float32() - 0.5) * 0.004
			positions = append(positions, mgl32.Vec3{
				x + jitter,
				float32(math.Cos(angle)) * radius,
				1.35 + float32(math.Sin(angle))*radius,
			})

			// alias each ring vertex onto the strip columns next to it
			column := (x - 0.1) / 0.5 * segments
			left := int(column)
			if left >= segments {
				left = segments - 1
			}
			frac := column - float32(left)
			side := s % 2 // alternate strip rows around the ring
			v1 := left*2 + side
			v2 := (left+1)*2 + side
			v3 := left*2 + (1 - side)
			entries = append(entries, vmap.BarycentricEntry(v1, v2, v3, (1-frac)*0.9, frac*0.9, 0.1))
		}
	}

	faces := make([][3]int, 0, (rings-1)*sides*2)
	for r := 0; r+1 < rings; r++ {
		for s := 0; s < sides; s++ {
			a := r*sides + s
			b := r*sides + (s+1)%sides
			c := (r+1)*sides + s
			d := (r+1)*sides + (s+1)%sides
			faces = append(faces, [3]int{a, b, c}, [3]int{b, d, c})
		}
	}

	m, err := mesh.New("arm_tube", positions, faces)
	if err != nil {
		return nil, nil, err
	}
	corr, err := vmap.New(entries)
	if err != nil {
		return nil, nil, err
	}
	return m, corr, nil
}

// demoMorphs carries one field on the strip and one entirely off it,
// so the run shows both a transfer and a relevance drop.
func demoMorphs(src *mesh.Mesh) *morph.Set {
	set := morph.NewSet()

	bulge := make(morph.Field)
	for v, p := range src.Positions {
		if p[0] > 0.25 && p[0] < 0.45 {
			bulge[v] = mgl32.Vec3{0, 0, 0.02}
		}
	}
	set.Add("ArmBulge", bulge)
	set.Add("JawOpen", morph.Field{}) // lives on body vertices the strip never covers

	return set
}

// demoWeights splits the strip between the arm bones by distance
// along the limb, the same data a body generator would provide.
func demoWeights(src *mesh.Mesh) skin.WeightSet {
	set := make(skin.WeightSet, len(src.Positions))
	for v, p := range src.Positions {
		switch {
		case p[0] < 0.28:
			set[v] = skin.Weights{"RightArm": 1}
		case p[0] < 0.34:
			set[v] = skin.Weights{"RightArm": 0.5, "RightForeArm": 0.5}
		case p[0] < 0.48:
			set[v] = skin.Weights{"RightForeArm": 1}
		default:
			set[v] = skin.Weights{"RightForeArm": 0.5, "RightHand": 0.5}
		}
	}
	return set
}

func NewDemo(seed int64) (*Demo, error) {
	source, err := demoSkeleton(mixamoPrefix, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to build source armature")
	}
	target, err := demoSkeleton("", math.Pi/4)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to build target armature")
	}
	clip, err := demoClip()
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to build demo clip")
	}
	srcMesh, err := demoSourceMesh()
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to build source mesh")
	}
	dstMesh, corr, err := demoTargetMesh(seed)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to build target mesh")
	}

	rename := make(map[string]string, len(demoBones))
	for _, db := range demoBones {
		rename[db.name] = mixamoPrefix + db.name
	}

	return &Demo{
		Source:     source,
		Target:     target,
		Clip:       clip,
		Rename:     rename,
		Skip:       map[string]bool{"LeftHand": true, "RightHand": true},
		SourceMesh: srcMesh,
		TargetMesh: dstMesh,
		Corr:       corr,
		Morphs:     demoMorphs(srcMesh),
		Weights:    demoWeights(srcMesh),
	}, nil
}
