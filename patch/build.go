package patch

import (
	"github.com/pkg/errors"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/config"
	"github.com/pthm-cable/weaver/geometry"
)

// ShapeFromConfig builds the geometry of a patch.
func ShapeFromConfig(sc config.ShapeConfig, dims int) (geometry.Shape, error) {
	switch sc.Kind {
	case "box":
		if len(sc.Min) != dims || len(sc.Max) != dims {
			return nil, errors.Errorf("box needs %d-dimensional min and max", dims)
		}
		return geometry.NewBox(geometry.NewCoordinate(sc.Min...), geometry.NewCoordinate(sc.Max...)), nil
	case "sphere":
		if len(sc.Center) != dims {
			return nil, errors.Errorf("sphere needs a %d-dimensional center", dims)
		}
		if sc.Radius <= 0 {
			return nil, errors.New("sphere radius must be positive")
		}
		return geometry.Sphere{Center: geometry.NewCoordinate(sc.Center...), Radius: sc.Radius}, nil
	case "polygon":
		if dims != 2 {
			return nil, errors.New("polygons are only supported in 2D")
		}
		if len(sc.Vertices) < 3 {
			return nil, errors.New("polygon needs at least 3 vertices")
		}
		verts := make([]geometry.Coordinate, len(sc.Vertices))
		for i, v := range sc.Vertices {
			if len(v) != 2 {
				return nil, errors.Errorf("polygon vertex %d is not 2D", i)
			}
			verts[i] = geometry.NewCoordinate(v...)
		}
		return geometry.NewPolygon(verts...), nil
	}
	return nil, errors.Errorf("unknown shape kind %q", sc.Kind)
}

// FromConfig materialises the configured patches. Patches without an explicit
// priority draw one from priorities, after every explicit priority.
func FromConfig(cfg *config.Config, priorities *components.IDAllocator) ([]*Patch, error) {
	maxExplicit := 0
	for _, pc := range cfg.Patches {
		if pc.Priority > maxExplicit {
			maxExplicit = pc.Priority
		}
	}
	if next := uint64(maxExplicit + 1); priorities.Peek() < next {
		priorities.Reset(next)
	}

	out := make([]*Patch, 0, len(cfg.Patches))
	for i, pc := range cfg.Patches {
		p, err := fromConfig(cfg, pc, priorities)
		if err != nil {
			return nil, errors.Wrapf(err, "patch %d", i)
		}
		out = append(out, p)
	}
	Sort(out)
	if err := Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

func fromConfig(cfg *config.Config, pc config.PatchConfig, priorities *components.IDAllocator) (*Patch, error) {
	typ, err := ParseType(pc.Type)
	if err != nil {
		return nil, err
	}
	shape, err := ShapeFromConfig(pc.Shape, cfg.Landscape.Dims)
	if err != nil {
		return nil, err
	}
	p := &Patch{Priority: pc.Priority, Type: typ, Shape: shape}
	if p.Priority == 0 {
		p.Priority = int(priorities.Next())
	}

	switch typ {
	case TypeMoisture:
		m := pc.Moisture
		p.Moisture = &MoistureSource{
			ID:                         p.Priority,
			TemperatureCycle:           append([]float64(nil), m.TemperatureCycle...),
			RelativeHumidityCycle:      append([]float64(nil), m.RelativeHumidityCycle...),
			MaxResourceCapacityDensity: m.MaxResourceCapacityDensity,
		}
	case TypeObstacle:
		p.Obstacle = &ObstacleSource{}
	case TypeResource:
		r := pc.Resource
		p.Resource = &ResourceSource{
			Species:         components.SpeciesID(cfg.Derived.ResourceIndex[r.Species]),
			InitialBiomass:  r.InitialBiomass,
			MaximumCapacity: r.MaximumCapacity,
		}
	case TypeHabitatDomain:
		h := &HabitatDomainSource{Inside: pc.Habitat.Inside}
		for _, name := range pc.Habitat.Species {
			h.Species = append(h.Species, components.SpeciesID(cfg.Derived.AnimalIndex[name]))
		}
		p.Habitat = h
	}
	return p, nil
}
