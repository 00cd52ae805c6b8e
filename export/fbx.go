package export

import (
	"io"
	"math"

	"github.com/mogaika/fbx"
	"github.com/mogaika/fbx/builders/bfbx73"

	"github.com/avafab/shapeport/rig"
	"github.com/avafab/shapeport/utils"
)

// FBX time runs in KTime ticks.
const ktimePerSecond = int64(46186158000)

// BakeFBX writes the scene's skeleton and clip as a binary FBX 7.4
// document: a LimbNode model per bone and one animation stack with a
// rotation curve node per animated bone. Mesh data goes through the
// glTF baker; the FBX output exists for pipelines that take their
// animation takes separately.
func BakeFBX(w io.Writer, s *Scene) error {
	doc := NewFBXDocument(s.Name)

	var modelIds []int64
	if s.Skeleton != nil {
		modelIds = bakeLimbs(doc, s.Skeleton)
	}
	if s.Clip != nil && s.Skeleton != nil {
		bakeTake(doc, s.Skeleton, modelIds, s.Clip)
	}

	return doc.Write(w)
}

// bakeLimbs emits one LimbNode model per bone, placed at its local
// rest transform, and parents the models to each other the way the
// skeleton chains its bones. Returns bone-index-parallel model ids.
func bakeLimbs(doc *FBXDocument, skeleton *rig.Skeleton) []int64 {
	modelIds := make([]int64, skeleton.Len())

	for i := 0; i < skeleton.Len(); i++ {
		b := skeleton.Bone(i)
		modelIds[i] = doc.GenerateId()

		rotation := utils.RadiansToDegreesV3(utils.QuatToEuler(b.Rest.Rotation.Normalize()))
		model := bfbx73.Model(modelIds[i], b.Name+"\x00\x01Model", "LimbNode").AddNodes(
			bfbx73.Version(232),
			bfbx73.Properties70().AddNodes(
				bfbx73.P("Lcl Translation", "Lcl Translation", "", "A+",
					float64(b.Rest.Translation[0]), float64(b.Rest.Translation[1]), float64(b.Rest.Translation[2])),
				bfbx73.P("Lcl Rotation", "Lcl Rotation", "", "A+",
					float64(rotation[0]), float64(rotation[1]), float64(rotation[2])),
				bfbx73.P("Lcl Scaling", "Lcl Scaling", "", "A+",
					float64(1), float64(1), float64(1)),
			),
			bfbx73.Shading(true),
			bfbx73.Culling("CullingOff"),
		)

		nodeAttribute := bfbx73.NodeAttribute(doc.GenerateId(),
			b.Name+"\x00\x01NodeAttribute", "LimbNode").AddNodes(
			bfbx73.TypeFlags("Skeleton"),
		)

		doc.AddObjects(model, nodeAttribute)
		doc.AddConnections(bfbx73.C("OO", nodeAttribute.Properties[0].(int64), modelIds[i]))
	}

	for i := 0; i < skeleton.Len(); i++ {
		parent := int64(0) // scene root
		if p := skeleton.Bone(i).Parent; p != rig.NoParent {
			parent = modelIds[p]
		}
		doc.AddConnections(bfbx73.C("OO", modelIds[i], parent))
	}
	return modelIds
}

func bakeTake(doc *FBXDocument, skeleton *rig.Skeleton, modelIds []int64, clip *rig.Clip) {
	stop := frameKTime(clip, clip.FrameEnd)

	stackId := doc.GenerateId()
	stack := bfbx73.AnimationStack(stackId, clip.Name+"\x00\x01AnimStack", "").AddNodes(
		bfbx73.Properties70().AddNodes(
			bfbx73.P("LocalStop", "KTime", "Time", "", stop),
			bfbx73.P("ReferenceStop", "KTime", "Time", "", stop),
		),
	)

	layerId := doc.GenerateId()
	layer := bfbx73.AnimationLayer(layerId, "BaseLayer\x00\x01AnimLayer", "")

	doc.AddObjects(stack, layer)
	doc.AddConnections(bfbx73.C("OO", layerId, stackId))

	times := make([]int64, clip.FrameCount())
	for fi := range times {
		times[fi] = frameKTime(clip, clip.FrameStart+fi)
	}

	for _, name := range clip.BoneNames() {
		bi, ok := skeleton.Lookup(name)
		if !ok {
			continue
		}
		rest := skeleton.Bone(bi).Rest.Rotation.Normalize()

		// per-frame local euler angles in degrees, the take's Lcl
		// Rotation values
		var curves [3][]float32
		for axis := 0; axis < 3; axis++ {
			curves[axis] = make([]float32, clip.FrameCount())
		}
		prev := rest
		for fi, pose := range clip.Frames {
			q := rest.Mul(pose.Rotation(name)).Normalize()
			q = utils.AlignQuat(prev, q)
			prev = q
			angles := utils.RadiansToDegreesV3(utils.QuatToEuler(q))
			for axis := 0; axis < 3; axis++ {
				curves[axis][fi] = angles[axis]
			}
		}

		curveNodeId := doc.GenerateId()
		curveNode := bfbx73.AnimationCurveNode(curveNodeId, "R\x00\x01AnimCurveNode", "").AddNodes(
			bfbx73.Properties70().AddNodes(
				bfbx73.P("d|X", "Number", "", "A", float64(curves[0][0])),
				bfbx73.P("d|Y", "Number", "", "A", float64(curves[1][0])),
				bfbx73.P("d|Z", "Number", "", "A", float64(curves[2][0])),
			),
		)
		doc.AddObjects(curveNode)
		doc.AddConnections(
			bfbx73.C("OO", curveNodeId, layerId),
			connectProp(curveNodeId, modelIds[bi], "Lcl Rotation"),
		)

		for axis, channel := range []string{"d|X", "d|Y", "d|Z"} {
			curveId := doc.GenerateId()
			doc.AddObjects(bakeCurve(curveId, times, curves[axis]))
			doc.AddConnections(connectProp(curveId, curveNodeId, channel))
		}
	}
}

func bakeCurve(id int64, times []int64, values []float32) *fbx.Node {
	flags := make([]int32, len(values))
	refCounts := make([]int32, len(values))
	for i := range values {
		flags[i] = 24840 // linear interpolation, constant weights/velocities
		refCounts[i] = 1
	}
	return bfbx73.AnimationCurve(id, "\x00\x01AnimCurve", "").AddNodes(
		bfbx73.Default(float64(values[0])),
		bfbx73.KeyVer(4008),
		bfbx73.KeyTime(times),
		bfbx73.KeyValueFloat(values),
		bfbx73.KeyAttrFlags(flags),
		bfbx73.KeyAttrDataFloat(make([]float32, len(values)*4)),
		bfbx73.KeyAttrRefCount(refCounts),
	)
}

// connectProp links a source object to one animatable property of the
// destination, the "OP" connection form the C builder has no arity
// for.
func connectProp(src, dst int64, property string) *fbx.Node {
	return &fbx.Node{Name: "C", Properties: []interface{}{"OP", src, dst, property}}
}

func frameKTime(clip *rig.Clip, frame int) int64 {
	seconds := float64(frame-clip.FrameStart) / float64(clip.FPS)
	return int64(math.Round(seconds * float64(ktimePerSecond)))
}
