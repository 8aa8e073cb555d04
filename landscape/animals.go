package landscape

import (
	"github.com/mlange-42/ark/ecs"
	"github.com/pkg/errors"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/geometry"
)

// KeyOf returns the index bucket of an animal.
func KeyOf(a *components.Animal) Key {
	return Key{Stage: a.Stage, Species: a.Species, Instar: a.Instar, Gender: a.Gender}
}

// InsertAnimal indexes e at the leaf holding its position, promoting
// temporal leaves down to the depth its instar lives at.
func (l *Landscape) InsertAnimal(e ecs.Entity) error {
	a := l.animals.Get(e)
	pos := l.positions.Get(e)
	leaf, err := l.LeafFor(pos.Coord, l.registry.Animal(a.Species).TargetDepth(a.Instar, l.maxDepth))
	if err != nil {
		return err
	}
	return l.index(e, leaf)
}

func (l *Landscape) index(e ecs.Entity, leaf CellID) error {
	c := &l.cells[leaf]
	if c.Obstacle.Full {
		return errors.Wrapf(ErrFullObstacle, "cell %s", c.Pos)
	}
	a := l.animals.Get(e)
	if !c.Animals.Insert(KeyOf(a), e) {
		return errors.Errorf("animal %d has no bucket (species %d, instar %d)", a.ID, a.Species, a.Instar)
	}
	l.positions.Get(e).Cell = int32(leaf)
	l.population++
	return nil
}

// EraseAnimal removes e from the index of its leaf.
func (l *Landscape) EraseAnimal(e ecs.Entity) error {
	a := l.animals.Get(e)
	pos := l.positions.Get(e)
	if pos.Cell < 0 || int(pos.Cell) >= len(l.cells) {
		return errors.Wrapf(ErrNotIndexed, "animal %d", a.ID)
	}
	c := &l.cells[pos.Cell]
	if c.Animals == nil || !c.Animals.Erase(KeyOf(a), e) {
		return errors.Wrapf(ErrNotIndexed, "animal %d in cell %d", a.ID, pos.Cell)
	}
	pos.Cell = int32(NoCell)
	l.population--
	return nil
}

// MigrateAnimal moves e to a new coordinate. The move is atomic: when the
// destination cannot take the animal it stays where it was.
func (l *Landscape) MigrateAnimal(e ecs.Entity, to geometry.Coordinate) error {
	a := l.animals.Get(e)
	leaf, err := l.LeafFor(to, l.registry.Animal(a.Species).TargetDepth(a.Instar, l.maxDepth))
	if err != nil {
		return err
	}
	if c := &l.cells[leaf]; c.Obstacle.Full {
		return errors.Wrapf(ErrFullObstacle, "migrating animal %d to %s", a.ID, to)
	}

	// LeafFor may have promoted the current cell, so erase after it.
	pos := l.positions.Get(e)
	from := pos.Coord
	if err := l.EraseAnimal(e); err != nil {
		return err
	}
	pos.Coord = to
	if err := l.index(e, leaf); err != nil {
		pos.Coord = from
		if rerr := l.InsertAnimal(e); rerr != nil {
			return errors.Wrap(rerr, err.Error())
		}
		return err
	}
	return nil
}

// ChangeStage moves e to the bucket of its new life stage.
func (l *Landscape) ChangeStage(e ecs.Entity, stage components.LifeStage) error {
	a := l.animals.Get(e)
	if a.Stage == stage {
		return nil
	}
	from := KeyOf(a)
	a.Stage = stage
	if err := l.rebucket(e, from, KeyOf(a)); err != nil {
		a.Stage = from.Stage
		return err
	}
	return nil
}

// ChangeInstar updates an animal's instar. When the new instar lives deeper
// than its current leaf, the animal is re-inserted further down.
func (l *Landscape) ChangeInstar(e ecs.Entity, instar int) error {
	a := l.animals.Get(e)
	if a.Instar == instar {
		return nil
	}
	pos := l.positions.Get(e)
	target := l.registry.Animal(a.Species).TargetDepth(instar, l.maxDepth)
	c := &l.cells[pos.Cell]
	if c.Kind == KindTemporalLeaf && c.Pos.Depth < target {
		if err := l.EraseAnimal(e); err != nil {
			return err
		}
		a.Instar = instar
		return l.InsertAnimal(e)
	}
	from := KeyOf(a)
	a.Instar = instar
	if err := l.rebucket(e, from, KeyOf(a)); err != nil {
		a.Instar = from.Instar
		return err
	}
	return nil
}

func (l *Landscape) rebucket(e ecs.Entity, from, to Key) error {
	pos := l.positions.Get(e)
	if pos.Cell < 0 {
		return errors.Wrapf(ErrNotIndexed, "entity %v", e)
	}
	c := &l.cells[pos.Cell]
	if c.Animals == nil || !c.Animals.Move(e, from, to) {
		return errors.Wrapf(ErrNotIndexed, "entity %v in cell %d", e, pos.Cell)
	}
	return nil
}

// RestoreAnimal indexes e in the cell recorded in its position, without
// descending. Used when rebuilding a saved tree.
func (l *Landscape) RestoreAnimal(e ecs.Entity) error {
	pos := l.positions.Get(e)
	if pos.Cell < 0 || int(pos.Cell) >= len(l.cells) || !l.cells[pos.Cell].IsLeaf() {
		return errors.Wrapf(ErrNotIndexed, "restoring into cell %d", pos.Cell)
	}
	return l.index(e, CellID(pos.Cell))
}
