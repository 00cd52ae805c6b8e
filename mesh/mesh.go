package mesh

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// Mesh is the minimal triangle-mesh view the transfer pipeline needs:
// vertex positions and faces. Attributes produced by the engines
// (displacements, weights) live next to it, keyed by vertex index.
type Mesh struct {
	Name      string
	Positions []mgl32.Vec3
	Faces     [][3]int
}

func New(name string, positions []mgl32.Vec3, faces [][3]int) (*Mesh, error) {
	for fi, f := range faces {
		for _, v := range f {
			if v < 0 || v >= len(positions) {
				return nil, errors.Errorf("Face %d references vertex %d, mesh has %d", fi, v, len(positions))
			}
		}
	}
	return &Mesh{Name: name, Positions: positions, Faces: faces}, nil
}

func (m *Mesh) VertexCount() int { return len(m.Positions) }
