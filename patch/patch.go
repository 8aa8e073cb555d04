// Package patch describes environmental modifications painted onto the
// landscape: moisture regimes, obstacles, resources and habitat domains.
// Patches are immutable once built and are ordered by a global priority.
package patch

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/pkg/errors"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/geometry"
)

// ErrUnknownType is returned for a patch type outside the closed set.
var ErrUnknownType = errors.New("unknown patch type")

// Type of environmental attribute a patch modifies.
type Type uint8

const (
	TypeMoisture Type = iota
	TypeObstacle
	TypeResource
	TypeHabitatDomain
)

var typeNames = []string{"moisture", "obstacle", "resource", "habitat_domain"}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// ParseType returns the patch type with the given name.
func ParseType(name string) (Type, error) {
	for i, n := range typeNames {
		if n == name {
			return Type(i), nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownType, "%q", name)
}

// MoistureSource is a daily temperature and humidity regime. Cells hold it by
// reference, so every cell painted by one patch shares the same source.
type MoistureSource struct {
	ID                         int
	TemperatureCycle           []float64
	RelativeHumidityCycle      []float64
	MaxResourceCapacityDensity float64 // 0 = unlimited
}

func cycleValue(cycle []float64, day int) float64 {
	if len(cycle) == 0 {
		return 0
	}
	i := day % len(cycle)
	if i < 0 {
		i += len(cycle)
	}
	return cycle[i]
}

// Temperature returns the temperature of the given day.
func (m *MoistureSource) Temperature(day int) float64 {
	return cycleValue(m.TemperatureCycle, day)
}

// Humidity returns the relative humidity of the given day.
func (m *MoistureSource) Humidity(day int) float64 {
	return cycleValue(m.RelativeHumidityCycle, day)
}

// ResourceSource seeds one resource species. Values are per finest-resolution cell.
type ResourceSource struct {
	Species         components.SpeciesID
	InitialBiomass  float64
	MaximumCapacity float64
}

// ObstacleSource marks impassable ground.
type ObstacleSource struct{}

// HabitatDomainSource sets whether the listed species may live in covered cells.
type HabitatDomainSource struct {
	Species []components.SpeciesID
	Inside  bool
}

// Patch is one environmental modification.
type Patch struct {
	Priority int
	Type     Type
	Shape    geometry.Shape

	Moisture *MoistureSource
	Resource *ResourceSource
	Obstacle *ObstacleSource
	Habitat  *HabitatDomainSource
}

// Validate checks that the payload matches the type.
func (p *Patch) Validate() error {
	if p.Shape == nil {
		return errors.Errorf("patch %d has no shape", p.Priority)
	}
	if p.Priority < 0 {
		return errors.Errorf("patch priority %d is negative", p.Priority)
	}
	switch p.Type {
	case TypeMoisture:
		if p.Moisture == nil {
			return errors.Errorf("moisture patch %d without source", p.Priority)
		}
	case TypeObstacle:
	case TypeResource:
		if p.Resource == nil {
			return errors.Errorf("resource patch %d without source", p.Priority)
		}
		if p.Resource.InitialBiomass < 0 || p.Resource.MaximumCapacity < 0 {
			return errors.Errorf("resource patch %d has negative values", p.Priority)
		}
	case TypeHabitatDomain:
		if p.Habitat == nil {
			return errors.Errorf("habitat patch %d without source", p.Priority)
		}
	default:
		return errors.Wrapf(ErrUnknownType, "patch %d: %d", p.Priority, p.Type)
	}
	return nil
}

// Sort orders patches by ascending priority, keeping input order for ties.
func Sort(patches []*Patch) {
	slices.SortStableFunc(patches, func(a, b *Patch) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
}

// Validate checks every patch and rejects duplicate priorities, so that the
// priorities form a single total order.
func Validate(patches []*Patch) error {
	seen := make(map[int]bool, len(patches))
	for _, p := range patches {
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.Priority] {
			return errors.Errorf("duplicate patch priority %d", p.Priority)
		}
		seen[p.Priority] = true
	}
	return nil
}
