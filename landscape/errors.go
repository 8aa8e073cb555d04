package landscape

import "github.com/pkg/errors"

// Fatal conditions. They indicate a caller contract violation and abort the
// run; callers add context with errors.Wrap and test with errors.Is.
var (
	ErrFullObstacle        = errors.New("animal inserted into a full obstacle cell")
	ErrObstacleOverAnimals = errors.New("full obstacle applied over resident animals")
	ErrNotSupported        = errors.New("operation not supported on a branch summary")
	ErrOutOfBounds         = errors.New("coordinate outside the landscape")
	ErrNotIndexed          = errors.New("animal missing from its cell index")
	ErrNotTemporalLeaf     = errors.New("only temporal leaves can be promoted")
)
