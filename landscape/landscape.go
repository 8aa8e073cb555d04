// Package landscape implements the hierarchical spatial tree of terrain cells:
// an arena of Leaf, Branch and TemporalLeaf cells addressed by id, the
// priority-ordered application of environmental patches, resource dynamics,
// the per-leaf animal index and radius searches over the tree.
package landscape

import (
	"log/slog"
	"math"

	"github.com/mlange-42/ark/ecs"
	"github.com/pkg/errors"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/config"
	"github.com/pthm-cable/weaver/geometry"
	"github.com/pthm-cable/weaver/patch"
)

// Landscape owns the spatial tree.
type Landscape struct {
	cells []Cell
	root  CellID

	dims     int
	maxDepth int
	rootSize float64
	ringMode geometry.RingMode

	registry *components.Registry
	shape    []int

	animals   *ecs.Map1[components.Animal]
	positions *ecs.Map1[components.Position]

	sources    map[int]*patch.MoistureSource
	day        int
	population int
}

// New builds a landscape pre-subdivided to the configured initial depth.
func New(cfg *config.Config, registry *components.Registry, world *ecs.World) (*Landscape, error) {
	l := newEmpty(cfg, registry, world)
	rootSize := l.rootSize
	area := geometry.NewBox(geometry.NewCoordinate(make([]float64, l.dims)...), geometry.NewCoordinate(filled(l.dims, rootSize)...))
	root := l.newCell(NoCell, geometry.NewPoint(0, make([]int, l.dims)...), area)
	l.root = root
	l.initResources(root)
	if err := l.subdivide(root, cfg.Landscape.InitialDepth); err != nil {
		return nil, err
	}
	return l, nil
}

func newEmpty(cfg *config.Config, registry *components.Registry, world *ecs.World) *Landscape {
	l := &Landscape{
		dims:      cfg.Landscape.Dims,
		maxDepth:  cfg.Landscape.MaxDepth,
		rootSize:  cfg.Derived.RootSize,
		registry:  registry,
		animals:   ecs.NewMap1[components.Animal](world),
		positions: ecs.NewMap1[components.Position](world),
		sources:   make(map[int]*patch.MoistureSource),
	}
	if cfg.Landscape.RingMode == "bounding_box" {
		l.ringMode = geometry.ModeBoundingBox
	}
	l.shape = make([]int, len(registry.Animals))
	for i, sp := range registry.Animals {
		l.shape[i] = sp.Instars
	}
	return l
}

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// newCell appends a cell to the arena. Its kind depends on its depth.
func (l *Landscape) newCell(parent CellID, pos geometry.Point, area geometry.Box) CellID {
	id := CellID(len(l.cells))
	kind := KindTemporalLeaf
	if pos.Depth >= l.maxDepth {
		kind = KindLeaf
	}
	l.cells = append(l.cells, Cell{
		ID:       id,
		Kind:     kind,
		Parent:   parent,
		Pos:      pos,
		Area:     area,
		Obstacle: ObstacleElement{Priority: -1},
		Moisture: MoistureElement{Priority: -1},
		Habitat:  HabitatElement{Excluded: make([]bool, len(l.registry.Animals)), Priority: -1},
		Animals:  NewAnimalIndex(l.shape),
	})
	return id
}

// initResources gives the root one empty resource element per species.
func (l *Landscape) initResources(id CellID) {
	c := &l.cells[id]
	scale := l.leafCount(c.Pos.Depth)
	c.Resources = make([]CellResource, len(l.registry.Resources))
	for i, sp := range l.registry.Resources {
		c.Resources[i] = CellResource{MinimumEdible: sp.MinimumEdibleBiomass * scale, Priority: -1}
	}
}

// subdivide promotes temporal leaves until depth.
func (l *Landscape) subdivide(id CellID, depth int) error {
	if l.cells[id].Pos.Depth >= depth || l.cells[id].Kind != KindTemporalLeaf {
		return nil
	}
	if err := l.Promote(id); err != nil {
		return err
	}
	for _, child := range l.cells[id].Children {
		if err := l.subdivide(child, depth); err != nil {
			return err
		}
	}
	return nil
}

// Root returns the id of the root cell.
func (l *Landscape) Root() CellID { return l.root }

// Cell returns the cell with the given id. The pointer is invalidated by the
// next promotion.
func (l *Landscape) Cell(id CellID) *Cell { return &l.cells[id] }

// NumCells returns the arena size.
func (l *Landscape) NumCells() int { return len(l.cells) }

// Dims returns the landscape dimensionality.
func (l *Landscape) Dims() int { return l.dims }

// MaxDepth returns the depth of genuine leaves.
func (l *Landscape) MaxDepth() int { return l.maxDepth }

// Bounds returns the area of the root.
func (l *Landscape) Bounds() geometry.Box { return l.cells[l.root].Area }

// Day returns the day of the last Update.
func (l *Landscape) Day() int { return l.day }

// Registry returns the species registry.
func (l *Landscape) Registry() *components.Registry { return l.registry }

// RingMode returns how search rings are tested against cells.
func (l *Landscape) RingMode() geometry.RingMode { return l.ringMode }

// Population returns the number of indexed animals.
func (l *Landscape) Population() int { return l.population }

// CellSize returns the edge length of cells at depth.
func (l *Landscape) CellSize(depth int) float64 {
	return l.rootSize / math.Pow(2, float64(depth))
}

// leafCount returns the number of finest cells spanned by a cell at depth.
func (l *Landscape) leafCount(depth int) float64 {
	return math.Pow(2, float64(l.dims*(l.maxDepth-depth)))
}

// Source returns a moisture source by id.
func (l *Landscape) Source(id int) *patch.MoistureSource { return l.sources[id] }

// Sources returns every moisture source painted onto the landscape.
func (l *Landscape) Sources() map[int]*patch.MoistureSource { return l.sources }

// childContaining returns the child of a branch whose area holds coord.
func (l *Landscape) childContaining(id CellID, coord geometry.Coordinate) CellID {
	c := &l.cells[id]
	idx := 0
	for i := 0; i < l.dims; i++ {
		mid := (c.Area.Min.X[i] + c.Area.Max.X[i]) / 2
		if coord.X[i] >= mid {
			idx |= 1 << uint(i)
		}
	}
	return c.Children[idx]
}

// Promote converts a temporal leaf into a branch. Children inherit the
// environmental state uniformly, resource totals split evenly, and every
// resident animal is re-pointed to the child holding its position.
func (l *Landscape) Promote(id CellID) error {
	if l.cells[id].Kind != KindTemporalLeaf {
		return errors.Wrapf(ErrNotTemporalLeaf, "cell %d is a %s", id, l.cells[id].Kind)
	}
	pos := l.cells[id].Pos
	size := l.CellSize(pos.Depth + 1)
	n := 1 << uint(l.dims)
	share := float64(n)
	children := make([]CellID, n)
	for k := 0; k < n; k++ {
		cp := pos.Child(k)
		lo := geometry.NewCoordinate(make([]float64, l.dims)...)
		hi := lo
		for i := 0; i < l.dims; i++ {
			lo.X[i] = float64(cp.Coords[i]) * size
			hi.X[i] = lo.X[i] + size
		}
		child := l.newCell(id, cp, geometry.NewBox(lo, hi))
		l.cells[child].inherit(&l.cells[id], share)
		children[k] = child
	}

	c := &l.cells[id]
	c.Kind = KindBranch
	c.Children = children
	residents := c.Animals.clear()
	c.Animals = nil
	l.population -= len(residents)
	slog.Debug("promoted cell", "cell", id, "depth", pos.Depth, "residents", len(residents))

	for _, e := range residents {
		if err := l.refreshAnimalPosition(e, id); err != nil {
			return err
		}
	}
	l.summarize(id)
	return nil
}

// refreshAnimalPosition re-inserts an animal below the given cell.
func (l *Landscape) refreshAnimalPosition(e ecs.Entity, from CellID) error {
	a := l.animals.Get(e)
	pos := l.positions.Get(e)
	target := l.registry.Animal(a.Species).TargetDepth(a.Instar, l.maxDepth)
	leaf, err := l.descend(from, pos.Coord, target)
	if err != nil {
		return err
	}
	return l.index(e, leaf)
}

// CellAt returns the deepest existing cell containing coord, not deeper than depth.
func (l *Landscape) CellAt(coord geometry.Coordinate, depth int) (CellID, error) {
	if !l.cells[l.root].Area.Contains(coord) {
		return NoCell, errors.Wrapf(ErrOutOfBounds, "%s", coord)
	}
	id := l.root
	for l.cells[id].Kind == KindBranch && l.cells[id].Pos.Depth < depth {
		id = l.childContaining(id, coord)
	}
	return id, nil
}

// LeafFor returns the leaf an animal living at target depth occupies at
// coord, promoting temporal leaves above that depth on the way.
func (l *Landscape) LeafFor(coord geometry.Coordinate, target int) (CellID, error) {
	if !l.cells[l.root].Area.Contains(coord) {
		return NoCell, errors.Wrapf(ErrOutOfBounds, "%s", coord)
	}
	return l.descend(l.root, coord, target)
}

func (l *Landscape) descend(from CellID, coord geometry.Coordinate, target int) (CellID, error) {
	id := from
	for {
		c := &l.cells[id]
		switch {
		case c.Kind == KindBranch:
			id = l.childContaining(id, coord)
		case c.Kind == KindTemporalLeaf && c.Pos.Depth < target:
			if err := l.Promote(id); err != nil {
				return NoCell, err
			}
			id = l.childContaining(id, coord)
		default:
			return id, nil
		}
	}
}

// Walk visits cells in pre-order until fn returns false for a cell, which
// skips that cell's subtree.
func (l *Landscape) Walk(fn func(c *Cell) bool) {
	l.walk(l.root, fn)
}

func (l *Landscape) walk(id CellID, fn func(c *Cell) bool) {
	if !fn(&l.cells[id]) {
		return
	}
	for _, child := range l.cells[id].Children {
		l.walk(child, fn)
	}
}

// Leaves calls fn for every leaf and temporal leaf.
func (l *Landscape) Leaves(fn func(c *Cell)) {
	l.Walk(func(c *Cell) bool {
		if c.IsLeaf() {
			fn(c)
		}
		return true
	})
}

// LeavesUnder calls fn for every leaf in the subtree of id, id included.
func (l *Landscape) LeavesUnder(id CellID, fn func(c *Cell)) {
	l.walk(id, func(c *Cell) bool {
		if c.IsLeaf() {
			fn(c)
		}
		return true
	})
}
