package config

import (
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Morph tunes the displacement transfer pipeline. The defaults come
// from fitting makehuman-style bodies and survive most meshes; the
// radius is in model units and assumes a roughly human-sized model.
type Morph struct {
	// Compensation for barycentric attenuation at affected-region
	// boundaries. Must be >= 1.
	DeltaScale float32 `yaml:"delta_scale"`
	// Magnitude cap suppressing outliers from ill-conditioned
	// correspondence entries.
	MaxDelta float32 `yaml:"max_delta"`
	// Displacements below this are treated as zero everywhere.
	NoiseFloor float32 `yaml:"noise_floor"`
	// Unaffected target vertices within this distance of affected
	// source vertices receive a distance-weighted fallback value.
	FallbackRadius    float32 `yaml:"fallback_radius"`
	FallbackNeighbors int     `yaml:"fallback_neighbors"`

	SmoothIterations int     `yaml:"smooth_iterations"`
	SmoothDecay      float32 `yaml:"smooth_decay"`
	BoostBelow       float32 `yaml:"boost_below"`
	BoostBlend       float32 `yaml:"boost_blend"`

	// Fields whose largest transferred displacement stays below this
	// are dropped for the target mesh entirely.
	MinRelevance float32 `yaml:"min_relevance"`
}

// Skin tunes the bone weight transfer pipeline.
type Skin struct {
	SmoothIterations int     `yaml:"smooth_iterations"`
	SmoothBlend      float32 `yaml:"smooth_blend"`
	// Per-bone weights below this are dropped during renormalization.
	MinWeight float32 `yaml:"min_weight"`
	// How far the boundary set grows inward from open mesh edges.
	BoundaryRings int `yaml:"boundary_rings"`
	// Fraction of a boundary vertex's dominant weight shifted onto
	// the dominant bone's child.
	BoundaryShift float32 `yaml:"boundary_shift"`
}

type Tunables struct {
	Morph Morph `yaml:"morph"`
	Skin  Skin  `yaml:"skin"`
}

func Default() Tunables {
	return Tunables{
		Morph: Morph{
			DeltaScale:        1.3,
			MaxDelta:          0.25,
			NoiseFloor:        1e-6,
			FallbackRadius:    0.05,
			FallbackNeighbors: 3,
			SmoothIterations:  5,
			SmoothDecay:       0.5,
			BoostBelow:        0.3,
			BoostBlend:        0.5,
			MinRelevance:      0.001,
		},
		Skin: Skin{
			SmoothIterations: 2,
			SmoothBlend:      0.5,
			MinWeight:        0.01,
			BoundaryRings:    2,
			BoundaryShift:    0.5,
		},
	}
}

func (t Tunables) Validate() error {
	m := t.Morph
	if m.DeltaScale < 1 {
		return errors.Errorf("morph.delta_scale %v is below 1", m.DeltaScale)
	}
	if m.MaxDelta <= 0 {
		return errors.Errorf("morph.max_delta %v is not positive", m.MaxDelta)
	}
	if m.NoiseFloor < 0 {
		return errors.Errorf("morph.noise_floor %v is negative", m.NoiseFloor)
	}
	if m.FallbackRadius < 0 {
		return errors.Errorf("morph.fallback_radius %v is negative", m.FallbackRadius)
	}
	if m.FallbackNeighbors < 0 {
		return errors.Errorf("morph.fallback_neighbors %v is negative", m.FallbackNeighbors)
	}
	if m.SmoothIterations < 0 {
		return errors.Errorf("morph.smooth_iterations %v is negative", m.SmoothIterations)
	}
	for _, f := range []struct {
		name  string
		value float32
	}{
		{"morph.smooth_decay", m.SmoothDecay},
		{"morph.boost_below", m.BoostBelow},
		{"morph.boost_blend", m.BoostBlend},
		{"skin.smooth_blend", t.Skin.SmoothBlend},
		{"skin.boundary_shift", t.Skin.BoundaryShift},
	} {
		if f.value < 0 || f.value > 1 {
			return errors.Errorf("%s %v is outside [0, 1]", f.name, f.value)
		}
	}
	if m.MinRelevance < 0 {
		return errors.Errorf("morph.min_relevance %v is negative", m.MinRelevance)
	}
	s := t.Skin
	if s.SmoothIterations < 0 {
		return errors.Errorf("skin.smooth_iterations %v is negative", s.SmoothIterations)
	}
	if s.MinWeight < 0 || s.MinWeight >= 1 {
		return errors.Errorf("skin.min_weight %v is outside [0, 1)", s.MinWeight)
	}
	if s.BoundaryRings < 0 {
		return errors.Errorf("skin.boundary_rings %v is negative", s.BoundaryRings)
	}
	return nil
}

func Load(path string) (Tunables, error) {
	t := Default()
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return t, errors.Wrapf(err, "Failed to read tunables %q", path)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, errors.Wrapf(err, "Failed to parse tunables %q", path)
	}
	if err := t.Validate(); err != nil {
		return t, errors.Wrapf(err, "Invalid tunables %q", path)
	}
	return t, nil
}

func Save(path string, t Tunables) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return errors.Wrapf(err, "Failed to marshal tunables")
	}
	if err := ioutil.WriteFile(path, data, os.FileMode(0644)); err != nil {
		return errors.Wrapf(err, "Failed to write tunables %q", path)
	}
	return nil
}
