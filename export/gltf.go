package export

import (
	"encoding/binary"
	"io"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/avafab/shapeport/rig"
	"github.com/avafab/shapeport/skin"
	"github.com/avafab/shapeport/utils"
)

// BakeGLTF writes the scene as a binary glTF 2.0 document: the
// skeleton as a node tree, the mesh as a skinned primitive with morph
// targets, and the clip as rotation animation channels.
func BakeGLTF(w io.Writer, s *Scene) error {
	doc := gltf.NewDocument()
	doc.Asset.Generator = "shapeport"
	doc.Asset.Extras = map[string]interface{}{"runId": s.RunID.String()}

	var boneNodes []uint32
	if s.Skeleton != nil {
		boneNodes = bakeSkeletonNodes(doc, s.Skeleton)
	}

	if s.Mesh != nil {
		if err := bakeMesh(doc, s, boneNodes); err != nil {
			return err
		}
	}

	if s.Clip != nil && s.Skeleton != nil {
		bakeAnimation(doc, s.Skeleton, boneNodes, s.Clip)
	}

	encoder := gltf.NewEncoder(w)
	encoder.AsBinary = true
	return errors.Wrapf(encoder.Encode(doc), "Failed to encode gltf document")
}

// bakeSkeletonNodes appends one node per bone, wires the parent/child
// tree and adds the roots to the scene. Returns bone-index-parallel
// node indices.
func bakeSkeletonNodes(doc *gltf.Document, skeleton *rig.Skeleton) []uint32 {
	nodes := make([]uint32, skeleton.Len())
	for i := 0; i < skeleton.Len(); i++ {
		b := skeleton.Bone(i)
		q := b.Rest.Rotation.Normalize()
		nodes[i] = uint32(len(doc.Nodes))
		doc.Nodes = append(doc.Nodes, &gltf.Node{
			Name:        b.Name,
			Translation: b.Rest.Translation,
			Rotation:    q.V.Vec4(q.W),
			Scale:       mgl32.Vec3{1, 1, 1},
		})
	}
	for i := 0; i < skeleton.Len(); i++ {
		b := skeleton.Bone(i)
		if b.Parent == rig.NoParent {
			doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, nodes[i])
		} else {
			parent := doc.Nodes[nodes[b.Parent]]
			parent.Children = append(parent.Children, nodes[i])
		}
	}
	return nodes
}

func bakeMesh(doc *gltf.Document, s *Scene, boneNodes []uint32) error {
	m := s.Mesh

	positions := make([][3]float32, m.VertexCount())
	for i, p := range m.Positions {
		positions[i] = p
	}
	indices := make([]uint32, 0, len(m.Faces)*3)
	for _, f := range m.Faces {
		indices = append(indices, uint32(f[0]), uint32(f[1]), uint32(f[2]))
	}

	attributes := map[string]uint32{
		"POSITION": modeler.WritePosition(doc, positions),
	}
	indicesAccessor := modeler.WriteIndices(doc, indices)

	primitive := &gltf.Primitive{
		Indices:    &indicesAccessor,
		Attributes: attributes,
	}
	gltfMesh := &gltf.Mesh{
		Name:       m.Name,
		Primitives: []*gltf.Primitive{primitive},
	}

	meshNode := &gltf.Node{
		Name: m.Name,
		Mesh: gltf.Index(uint32(len(doc.Meshes))),
	}
	doc.Meshes = append(doc.Meshes, gltfMesh)

	if s.Weights != nil && s.Skeleton != nil {
		if len(s.Weights) != m.VertexCount() {
			return errors.Errorf("Weight set covers %d vertices, mesh has %d",
				len(s.Weights), m.VertexCount())
		}
		joints, weights, err := PackWeights(s.Weights, s.Skeleton)
		if err != nil {
			return err
		}
		attributes["JOINTS_0"] = modeler.WriteJoints(doc, joints)
		attributes["WEIGHTS_0"] = modeler.WriteWeights(doc, weights)

		ibm := writeInverseBindMatrices(doc, s.Skeleton)
		doc.Skins = append(doc.Skins, &gltf.Skin{
			Name:                m.Name + "_skin",
			InverseBindMatrices: gltf.Index(ibm),
			Joints:              boneNodes,
		})
		meshNode.Skin = gltf.Index(uint32(len(doc.Skins) - 1))
	}

	if s.Morphs != nil && s.Morphs.Len() > 0 {
		names := s.Morphs.Names()
		for _, name := range names {
			field, _ := s.Morphs.Field(name)
			deltas := make([][3]float32, m.VertexCount())
			for v, d := range field {
				if v >= 0 && v < len(deltas) {
					deltas[v] = d
				}
			}
			primitive.Targets = append(primitive.Targets,
				map[string]uint32{"POSITION": modeler.WritePosition(doc, deltas)})
		}
		gltfMesh.Weights = make([]float32, len(names))
		gltfMesh.Extras = map[string]interface{}{"targetNames": names}
	}

	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)))
	doc.Nodes = append(doc.Nodes, meshNode)
	return nil
}

func bakeAnimation(doc *gltf.Document, skeleton *rig.Skeleton, boneNodes []uint32, clip *rig.Clip) {
	animated := make([]string, 0)
	for _, name := range clip.BoneNames() {
		if _, ok := skeleton.Lookup(name); ok {
			animated = append(animated, name)
		}
	}
	if len(animated) == 0 {
		return
	}

	timesAccessor := writeTimes(doc, clip.Times())

	anim := &gltf.Animation{Name: clip.Name}
	for _, name := range animated {
		bi, _ := skeleton.Lookup(name)
		rest := skeleton.Bone(bi).Rest.Rotation.Normalize()

		rotations := make([]mgl32.Quat, clip.FrameCount())
		for fi, pose := range clip.Frames {
			q := rest.Mul(pose.Rotation(name)).Normalize()
			if fi > 0 {
				q = utils.AlignQuat(rotations[fi-1], q)
			}
			rotations[fi] = q
		}

		sampler := uint32(len(anim.Samplers))
		anim.Samplers = append(anim.Samplers, &gltf.AnimationSampler{
			Input:         gltf.Index(timesAccessor),
			Output:        gltf.Index(writeRotations(doc, rotations)),
			Interpolation: gltf.InterpolationLinear,
		})
		anim.Channels = append(anim.Channels, &gltf.Channel{
			Sampler: gltf.Index(sampler),
			Target: gltf.ChannelTarget{
				Node: gltf.Index(boneNodes[bi]),
				Path: gltf.TRSRotation,
			},
		})
	}
	doc.Animations = append(doc.Animations, anim)
}

// PackWeights reduces each vertex's influences to the four largest,
// renormalized, as glTF skinning stores them. Joint slots holding
// zero weight are zeroed. Unknown bone names are a structural
// mismatch between the weight set and the skeleton.
func PackWeights(set skin.WeightSet, skeleton *rig.Skeleton) ([][4]uint16, [][4]float32, error) {
	joints := make([][4]uint16, len(set))
	weights := make([][4]float32, len(set))

	type influence struct {
		bone   int
		weight float32
	}
	for v, vertexWeights := range set {
		influences := make([]influence, 0, len(vertexWeights))
		for _, name := range vertexWeights.BoneNames() {
			bi, ok := skeleton.Lookup(name)
			if !ok {
				return nil, nil, errors.Errorf("Vertex %d weight references unknown bone %q", v, name)
			}
			influences = append(influences, influence{bone: bi, weight: vertexWeights[name]})
		}
		sort.SliceStable(influences, func(i, j int) bool {
			return influences[i].weight > influences[j].weight
		})
		if len(influences) > 4 {
			influences = influences[:4]
		}

		var sum float32
		for _, inf := range influences {
			sum += inf.weight
		}
		if sum <= 0 {
			continue
		}
		for k, inf := range influences {
			joints[v][k] = uint16(inf.bone)
			weights[v][k] = inf.weight / sum
		}
		for k, weight := range weights[v] {
			if weight == 0 {
				joints[v][k] = 0
			}
		}
	}
	return joints, weights, nil
}

func writeInverseBindMatrices(doc *gltf.Document, skeleton *rig.Skeleton) uint32 {
	world := skeleton.WorldRest()
	data := make([]byte, 0, len(world)*64)
	for _, t := range world {
		m := mgl32.Translate3D(t.Translation[0], t.Translation[1], t.Translation[2]).
			Mul4(t.Rotation.Mat4()).Inv()
		for _, f := range m {
			data = appendFloat(data, f)
		}
	}
	return appendAccessor(doc, data, gltf.AccessorMat4, uint32(skeleton.Len()), nil, nil)
}

func writeTimes(doc *gltf.Document, times []float32) uint32 {
	data := make([]byte, 0, len(times)*4)
	min, max := float32(math.MaxFloat32), float32(-math.MaxFloat32)
	for _, t := range times {
		data = appendFloat(data, t)
		if t < min {
			min = t
		}
		if t > max {
			max = t
		}
	}
	// the animation input accessor requires explicit bounds
	return appendAccessor(doc, data, gltf.AccessorScalar, uint32(len(times)),
		[]float32{min}, []float32{max})
}

func writeRotations(doc *gltf.Document, rotations []mgl32.Quat) uint32 {
	data := make([]byte, 0, len(rotations)*16)
	for _, q := range rotations {
		data = appendFloat(data, q.V[0])
		data = appendFloat(data, q.V[1])
		data = appendFloat(data, q.V[2])
		data = appendFloat(data, q.W)
	}
	return appendAccessor(doc, data, gltf.AccessorVec4, uint32(len(rotations)), nil, nil)
}

// appendAccessor stores raw little-endian float data in the document
// buffer behind a fresh buffer view, for the accessor shapes modeler
// has no writer for (animation samplers, bind matrices).
func appendAccessor(doc *gltf.Document, data []byte, accType gltf.AccessorType,
	count uint32, min, max []float32) uint32 {

	if len(doc.Buffers) == 0 {
		doc.Buffers = append(doc.Buffers, new(gltf.Buffer))
	}
	buffer := doc.Buffers[len(doc.Buffers)-1]
	for len(buffer.Data)%4 != 0 {
		buffer.Data = append(buffer.Data, 0)
	}
	offset := uint32(len(buffer.Data))
	buffer.Data = append(buffer.Data, data...)
	buffer.ByteLength = uint32(len(buffer.Data))

	doc.BufferViews = append(doc.BufferViews, &gltf.BufferView{
		Buffer:     uint32(len(doc.Buffers) - 1),
		ByteOffset: offset,
		ByteLength: uint32(len(data)),
	})
	view := uint32(len(doc.BufferViews) - 1)

	doc.Accessors = append(doc.Accessors, &gltf.Accessor{
		BufferView:    gltf.Index(view),
		ComponentType: gltf.ComponentFloat,
		Count:         count,
		Type:          accType,
		Min:           min,
		Max:           max,
	})
	return uint32(len(doc.Accessors) - 1)
}

func appendFloat(data []byte, f float32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(f))
	return append(data, b[:]...)
}
