package landscape

import (
	"github.com/pkg/errors"

	"github.com/pthm-cable/weaver/geometry"
	"github.com/pthm-cable/weaver/patch"
)

// ApplyPatches paints patches in ascending priority order.
func (l *Landscape) ApplyPatches(patches []*patch.Patch) error {
	for _, p := range patches {
		if _, _, err := l.ApplyPatch(p); err != nil {
			return errors.Wrapf(err, "applying %s patch %d", p.Type, p.Priority)
		}
	}
	return nil
}

// ApplyPatch paints one patch onto the tree. applied reports whether any
// cell changed; full reports whether the root was fully covered.
func (l *Landscape) ApplyPatch(p *patch.Patch) (applied, full bool, err error) {
	if p.Type > patch.TypeHabitatDomain {
		return false, false, errors.Wrapf(patch.ErrUnknownType, "%d", p.Type)
	}
	if p.Type == patch.TypeMoisture {
		l.sources[p.Moisture.ID] = p.Moisture
	}
	return l.applyAt(l.root, p, false)
}

func (l *Landscape) applyAt(id CellID, p *patch.Patch, forced bool) (bool, bool, error) {
	cov := geometry.CoverageFull
	if !forced {
		cov = geometry.Classify(p.Shape.CoverageOf(l.cells[id].Area))
	}
	if cov == geometry.CoverageNone {
		return false, false, nil
	}
	full := cov == geometry.CoverageFull

	switch l.cells[id].Kind {
	case KindBranch:
		applied, err := l.applyChildren(id, p, full)
		return applied, full, err
	case KindTemporalLeaf:
		if full {
			applied, err := l.write(id, p, cov)
			return applied, true, err
		}
		if err := l.Promote(id); err != nil {
			return false, false, err
		}
		applied, err := l.applyChildren(id, p, false)
		return applied, false, err
	default:
		if !full && !cov.AtLeastOver50() && p.Type != patch.TypeObstacle {
			return false, false, nil
		}
		applied, err := l.write(id, p, cov)
		return applied, full, err
	}
}

// applyChildren dispatches to every child of a branch and refreshes its
// summary. With forced set each child takes the patch as full coverage.
func (l *Landscape) applyChildren(id CellID, p *patch.Patch, forced bool) (bool, error) {
	changed := false
	children := l.cells[id].Children
	for _, child := range children {
		applied, _, err := l.applyAt(child, p, forced)
		if err != nil {
			return changed, err
		}
		changed = changed || applied
	}
	l.summarize(id)
	return changed, nil
}

// canApply reports whether p outranks the element it would overwrite.
func (l *Landscape) canApply(c *Cell, p *patch.Patch) bool {
	switch p.Type {
	case patch.TypeMoisture:
		return p.Priority > c.Moisture.Priority
	case patch.TypeObstacle:
		return p.Priority > c.Obstacle.Priority
	case patch.TypeResource:
		s := p.Resource.Species
		return int(s) < len(c.Resources) && p.Priority > c.Resources[s].Priority && !c.Obstacle.Full
	case patch.TypeHabitatDomain:
		return p.Priority > c.Habitat.Priority
	}
	return false
}

// write overwrites the matching element of a leaf or temporal leaf.
func (l *Landscape) write(id CellID, p *patch.Patch, cov geometry.Coverage) (bool, error) {
	c := &l.cells[id]
	if !l.canApply(c, p) {
		return false, nil
	}
	switch p.Type {
	case patch.TypeMoisture:
		c.Moisture = MoistureElement{
			Source:      p.Moisture,
			Temperature: p.Moisture.Temperature(l.day),
			Humidity:    p.Moisture.Humidity(l.day),
			Priority:    p.Priority,
		}
	case patch.TypeObstacle:
		fullObstacle := cov.AtLeastOver50()
		if fullObstacle {
			if c.Animals != nil && c.Animals.Len() > 0 {
				return false, errors.Wrapf(ErrObstacleOverAnimals, "cell %s holds %d animals", c.Pos, c.Animals.Len())
			}
			for i := range c.Resources {
				c.Resources[i].Biomass = 0
				c.Resources[i].Capacity = 0
			}
		}
		c.Obstacle = ObstacleElement{Obstacle: true, Full: fullObstacle || c.Obstacle.Full, Priority: p.Priority}
	case patch.TypeResource:
		scale := l.leafCount(c.Pos.Depth)
		r := &c.Resources[p.Resource.Species]
		r.Capacity = p.Resource.MaximumCapacity * scale
		r.Biomass = min(p.Resource.InitialBiomass*scale, r.Capacity)
		r.Priority = p.Priority
	case patch.TypeHabitatDomain:
		for _, s := range p.Habitat.Species {
			if int(s) < len(c.Habitat.Excluded) {
				c.Habitat.Excluded[s] = !p.Habitat.Inside
			}
		}
		c.Habitat.Priority = p.Priority
	}
	return true, nil
}

// summarize recomputes a branch's elements from its children.
func (l *Landscape) summarize(id CellID) {
	c := &l.cells[id]
	if c.Kind != KindBranch {
		return
	}
	n := float64(len(c.Children))

	obstacle := ObstacleElement{Full: true, Priority: -1}
	moisture := MoistureElement{Priority: -1}
	habitat := HabitatElement{Excluded: make([]bool, len(c.Habitat.Excluded)), Priority: -1}
	for i := range habitat.Excluded {
		habitat.Excluded[i] = true
	}
	resources := make([]CellResource, len(c.Resources))
	for i := range resources {
		resources[i].Priority = -1
	}

	for k, childID := range c.Children {
		child := &l.cells[childID]
		obstacle.Full = obstacle.Full && child.Obstacle.Full
		obstacle.Obstacle = obstacle.Obstacle || child.Obstacle.Obstacle
		obstacle.Priority = max(obstacle.Priority, child.Obstacle.Priority)

		if k == 0 {
			moisture.Source = child.Moisture.Source
		} else if moisture.Source != child.Moisture.Source {
			moisture.Source = nil
		}
		moisture.Temperature += child.Moisture.Temperature / n
		moisture.Humidity += child.Moisture.Humidity / n
		moisture.Priority = max(moisture.Priority, child.Moisture.Priority)

		for i := range habitat.Excluded {
			habitat.Excluded[i] = habitat.Excluded[i] && i < len(child.Habitat.Excluded) && child.Habitat.Excluded[i]
		}
		habitat.Priority = max(habitat.Priority, child.Habitat.Priority)

		for i := range resources {
			r := child.Resources[i]
			resources[i].Biomass += r.Biomass
			resources[i].Capacity += r.Capacity
			resources[i].MinimumEdible += r.MinimumEdible
			resources[i].Priority = max(resources[i].Priority, r.Priority)
		}
	}
	c.Obstacle = obstacle
	c.Moisture = moisture
	c.Habitat = habitat
	c.Resources = resources
}

// summarizeUp refreshes every ancestor of id.
func (l *Landscape) summarizeUp(id CellID) {
	for p := l.cells[id].Parent; p != NoCell; p = l.cells[p].Parent {
		l.summarize(p)
	}
}
