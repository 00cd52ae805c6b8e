package export

import (
	"github.com/google/uuid"

	"github.com/avafab/shapeport/mesh"
	"github.com/avafab/shapeport/morph"
	"github.com/avafab/shapeport/rig"
	"github.com/avafab/shapeport/skin"
)

// Scene is everything a baker needs to produce one self-contained
// output document: the target skeleton, the target mesh with its
// transferred attributes, and the retargeted clip. Mesh, Weights,
// Morphs and Clip are each optional; a baker emits what is present.
type Scene struct {
	Name     string
	Skeleton *rig.Skeleton
	Mesh     *mesh.Mesh
	Weights  skin.WeightSet
	Morphs   *morph.Set
	Clip     *rig.Clip

	// RunID stamps the document so a baked file can be traced back to
	// the transfer run that produced it.
	RunID uuid.UUID
}
