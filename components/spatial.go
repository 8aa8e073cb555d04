package components

import "github.com/pthm-cable/weaver/geometry"

// Position is an animal's continuous location and the arena index of the
// leaf cell that owns it.
type Position struct {
	Coord geometry.Coordinate
	Cell  int32
}
