package landscape

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/mlange-42/ark/ecs"
	"github.com/pkg/errors"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/config"
	"github.com/pthm-cable/weaver/geometry"
	"github.com/pthm-cable/weaver/patch"
)

type fixture struct {
	cfg      *config.Config
	world    *ecs.World
	land     *Landscape
	registry *components.Registry
	spawner  *ecs.Map2[components.Animal, components.Position]
	nextID   uint64
}

func newFixture(t *testing.T, yaml string) *fixture {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	registry, err := components.NewRegistry(cfg)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	world := ecs.NewWorld()
	land, err := New(cfg, registry, world)
	if err != nil {
		t.Fatalf("landscape: %v", err)
	}
	f := &fixture{
		cfg:      cfg,
		world:    world,
		land:     land,
		registry: registry,
		spawner:  ecs.NewMap2[components.Animal, components.Position](world),
	}
	patches, err := patch.FromConfig(cfg, components.NewIDAllocator(1))
	if err != nil {
		t.Fatalf("patches: %v", err)
	}
	if err := land.ApplyPatches(patches); err != nil {
		t.Fatalf("apply patches: %v", err)
	}
	return f
}

func (f *fixture) spawn(species components.SpeciesID, instar int, x, y float64) ecs.Entity {
	f.nextID++
	a := components.Animal{ID: f.nextID, Species: species, Instar: instar, Stage: components.Active}
	p := components.Position{Coord: geometry.NewCoordinate(x, y), Cell: int32(NoCell)}
	return f.spawner.NewEntity(&a, &p)
}

const twoByTwo = `
landscape: {dims: 2, cell_size: 10, max_depth: 1, initial_depth: 0}
populations: []
patches:
  - type: resource
    priority: 1
    shape: {kind: box, min: [0, 0], max: [20, 20]}
    resource: {species: fungus, initial_biomass: 100, maximum_capacity: 200}
  - type: resource
    priority: 2
    shape: {kind: box, min: [0, 0], max: [10, 10]}
    resource: {species: fungus, initial_biomass: 50, maximum_capacity: 50}
`

func TestTwoByTwoResourcePatches(t *testing.T) {
	f := newFixture(t, twoByTwo)
	l := f.land

	root := l.Cell(l.Root())
	if root.Kind != KindBranch {
		t.Fatalf("root kind = %s, want branch", root.Kind)
	}
	tests := []struct {
		x, y     float64
		capacity float64
		biomass  float64
	}{
		{5, 5, 50, 50},
		{15, 5, 200, 100},
		{5, 15, 200, 100},
		{15, 15, 200, 100},
	}
	for _, tt := range tests {
		id, err := l.CellAt(geometry.NewCoordinate(tt.x, tt.y), 1)
		if err != nil {
			t.Fatal(err)
		}
		r := l.Cell(id).Resources[0]
		if math.Abs(r.Capacity-tt.capacity) > 1e-9 || math.Abs(r.Biomass-tt.biomass) > 1e-9 {
			t.Errorf("cell at (%v,%v): capacity %v biomass %v, want %v %v", tt.x, tt.y, r.Capacity, r.Biomass, tt.capacity, tt.biomass)
		}
	}
	if got := root.Resources[0].Capacity; math.Abs(got-650) > 1e-9 {
		t.Errorf("root capacity = %v, want 650", got)
	}
	if got := root.Resources[0].Priority; got != 2 {
		t.Errorf("root resource priority = %d, want 2", got)
	}
}

func TestPatchOrderDoesNotMatter(t *testing.T) {
	forward := newFixture(t, twoByTwo)
	l, err := New(forward.cfg, forward.registry, ecs.NewWorld())
	if err != nil {
		t.Fatal(err)
	}
	patches, err := patch.FromConfig(forward.cfg, components.NewIDAllocator(1))
	if err != nil {
		t.Fatal(err)
	}
	slices.Reverse(patches)
	for _, p := range patches {
		if _, _, err := l.ApplyPatch(p); err != nil {
			t.Fatal(err)
		}
	}

	var a, b []CellResource
	forward.land.Leaves(func(c *Cell) { a = append(a, c.Resources[0]) })
	l.Leaves(func(c *Cell) { b = append(b, c.Resources[0]) })
	if len(a) != len(b) {
		t.Fatalf("leaf count %d vs %d", len(a), len(b))
	}
	for i := range a {
		if math.Abs(a[i].Capacity-b[i].Capacity) > 1e-9 || a[i].Priority != b[i].Priority {
			t.Errorf("leaf %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestObstacleFatalConditions(t *testing.T) {
	f := newFixture(t, `
populations: []
patches:
  - type: obstacle
    priority: 1
    shape: {kind: box, min: [0, 0], max: [8, 8]}
`)
	e := f.spawn(0, 1, 2, 2)
	err := f.land.InsertAnimal(e)
	if !errors.Is(err, ErrFullObstacle) {
		t.Fatalf("insert into obstacle: err = %v, want ErrFullObstacle", err)
	}

	e = f.spawn(0, 1, 12, 12)
	if err := f.land.InsertAnimal(e); err != nil {
		t.Fatalf("insert: %v", err)
	}
	wall := &patch.Patch{
		Priority: 2,
		Type:     patch.TypeObstacle,
		Shape:    geometry.NewBox(geometry.NewCoordinate(8, 8), geometry.NewCoordinate(16, 16)),
		Obstacle: &patch.ObstacleSource{},
	}
	if _, _, err := f.land.ApplyPatch(wall); !errors.Is(err, ErrObstacleOverAnimals) {
		t.Fatalf("obstacle over animals: err = %v, want ErrObstacleOverAnimals", err)
	}
}

func TestHabitatPatchTouchesOnlyCoveredCells(t *testing.T) {
	const head = `
landscape: {dims: 2, cell_size: 10, max_depth: 1, initial_depth: 1}
populations: []
patches:
`
	tests := []struct {
		name    string
		patches string
		inside  bool // spider habitable in the patched corner
		outside bool // spider habitable in the opposite corner
	}{
		{
			name: "inside only",
			patches: `
  - {type: habitat_domain, priority: 1, shape: {kind: box, min: [0, 0], max: [10, 10]}, habitat: {species: [spider], inside: true}}
`,
			inside: true, outside: true,
		},
		{
			name: "outside only",
			patches: `
  - {type: habitat_domain, priority: 1, shape: {kind: box, min: [0, 0], max: [10, 10]}, habitat: {species: [spider], inside: false}}
`,
			inside: false, outside: true,
		},
		{
			name: "inside clears an earlier exclusion",
			patches: `
  - {type: habitat_domain, priority: 1, shape: {kind: box, min: [0, 0], max: [20, 20]}, habitat: {species: [spider], inside: false}}
  - {type: habitat_domain, priority: 2, shape: {kind: box, min: [0, 0], max: [10, 10]}, habitat: {species: [spider], inside: true}}
`,
			inside: true, outside: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, head+tt.patches)
			for _, c := range []struct {
				x, y float64
				want bool
			}{{5, 5, tt.inside}, {15, 15, tt.outside}} {
				id, err := f.land.CellAt(geometry.NewCoordinate(c.x, c.y), 1)
				if err != nil {
					t.Fatal(err)
				}
				cell := f.land.Cell(id)
				if got := cell.HabitableFor(1); got != c.want {
					t.Errorf("spider habitable at (%v,%v) = %v, want %v", c.x, c.y, got, c.want)
				}
				if !cell.HabitableFor(0) {
					t.Errorf("mite excluded at (%v,%v)", c.x, c.y)
				}
			}
		})
	}
}

func TestPromotionKeepsAnimalsAndTotals(t *testing.T) {
	f := newFixture(t, `
landscape: {dims: 2, cell_size: 1, max_depth: 4, initial_depth: 0}
populations: []
patches:
  - type: resource
    priority: 1
    shape: {kind: box, min: [0, 0], max: [16, 16]}
    resource: {species: fungus, initial_biomass: 0.5, maximum_capacity: 2}
`)
	l := f.land
	before := l.ResourceTotals()[0]

	rng := rand.New(rand.NewPCG(7, 9))
	const n = 60
	var entities []ecs.Entity
	for i := 0; i < n; i++ {
		e := f.spawn(0, 1, rng.Float64()*16, rng.Float64()*16)
		if err := l.InsertAnimal(e); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		entities = append(entities, e)
	}

	if l.Population() != n || l.CountIndexed() != n {
		t.Errorf("population %d, indexed %d, want %d", l.Population(), l.CountIndexed(), n)
	}
	if after := l.ResourceTotals()[0]; math.Abs(after-before) > 1e-9 {
		t.Errorf("resource total %v after promotion, want %v", after, before)
	}
	pos := ecs.NewMap1[components.Position](f.world)
	for _, e := range entities {
		p := pos.Get(e)
		c := l.Cell(CellID(p.Cell))
		if c.Kind != KindLeaf || !c.Area.Contains(p.Coord) {
			t.Errorf("animal at %s indexed in %s cell %s", p.Coord, c.Kind, c.Area.Min)
		}
	}

	// Migrating keeps the counter and the index in step.
	target := geometry.NewCoordinate(0.5, 0.5)
	if err := l.MigrateAnimal(entities[0], target); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if got := CellID(pos.Get(entities[0]).Cell); !l.Cell(got).Area.Contains(target) {
		t.Error("migrated animal not indexed at its destination")
	}
	if l.CountIndexed() != n {
		t.Errorf("indexed %d after migration, want %d", l.CountIndexed(), n)
	}
	if err := l.EraseAnimal(entities[1]); err != nil {
		t.Fatalf("erase: %v", err)
	}
	if err := l.EraseAnimal(entities[1]); !errors.Is(err, ErrNotIndexed) {
		t.Errorf("double erase: err = %v, want ErrNotIndexed", err)
	}
	if l.Population() != n-1 || l.CountIndexed() != n-1 {
		t.Errorf("population %d, indexed %d after erase", l.Population(), l.CountIndexed())
	}
}

func TestRadiusSearchIsTreeShapeInvariant(t *testing.T) {
	const base = `
landscape: {dims: %d, cell_size: 1, max_depth: 3, ring_mode: %s, initial_depth: %d}
populations: []
patches: []
`
	tests := []struct {
		name   string
		dims   int
		mode   string
		center geometry.Coordinate
		want   float64
	}{
		{"2D bounding box", 2, "bounding_box", geometry.NewCoordinate(3.3, 4.1), 4.4 * 4.4},
		{"3D bounding box", 3, "bounding_box", geometry.NewCoordinate(3.3, 4.1, 2.7), 4.4 * 4.4 * 4.4},
		{"3D circular", 3, "circular", geometry.NewCoordinate(3.3, 4.1, 2.7), 4.0 / 3 * math.Pi * 2.2 * 2.2 * 2.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coarse := newFixture(t, fmt.Sprintf(base, tt.dims, tt.mode, 0))
			fine := newFixture(t, fmt.Sprintf(base, tt.dims, tt.mode, 3))

			weighted := func(l *Landscape) (float64, int) {
				var sum float64
				cells := l.RadiusTerrainCells(l.Ring(tt.center, 2.2), l.MaxDepth())
				for _, rc := range cells {
					sum += rc.Fraction * l.Cell(rc.Cell).Area.Volume()
				}
				return sum, len(cells)
			}
			a, na := weighted(coarse.land)
			b, nb := weighted(fine.land)
			if na != 1 || nb < 2 {
				t.Fatalf("coarse tree gave %d cells, fine tree %d", na, nb)
			}
			if math.Abs(a-b) > 1e-7 {
				t.Errorf("weighted volume %v on coarse tree, %v on fine tree", a, b)
			}
			if math.Abs(b-tt.want) > 1e-7 {
				t.Errorf("weighted volume = %v, want %v", b, tt.want)
			}
		})
	}
}

func TestResourceDynamics(t *testing.T) {
	f := newFixture(t, `
landscape: {dims: 2, cell_size: 1, max_depth: 1, initial_depth: 1}
populations: []
patches:
  - type: moisture
    priority: 1
    shape: {kind: box, min: [0, 0], max: [2, 2]}
    moisture: {temperature_cycle: [20], relative_humidity_cycle: [70]}
  - type: resource
    priority: 2
    shape: {kind: box, min: [0, 0], max: [2, 2]}
    resource: {species: fungus, initial_biomass: 1, maximum_capacity: 4}
`)
	l := f.land
	leaf, _ := l.CellAt(geometry.NewCoordinate(0.5, 0.5), 1)

	l.Update(1)
	// rate 0.3 at optimal humidity: 1 + 0.3*1*(1-1/4)
	if got := l.Cell(leaf).Resources[0].Biomass; math.Abs(got-1.225) > 1e-9 {
		t.Errorf("biomass after one day = %v, want 1.225", got)
	}
	if got := l.ResourceTotals()[0]; math.Abs(got-4*1.225) > 1e-9 {
		t.Errorf("total = %v, want %v", got, 4*1.225)
	}

	l.SubstractBiomassUp(leaf, 0, 0.225)
	if got := l.Cell(leaf).Resources[0].Biomass; math.Abs(got-1) > 1e-9 {
		t.Errorf("leaf biomass = %v, want 1", got)
	}
	if got := l.ResourceTotals()[0]; math.Abs(got-(4*1.225-0.225)) > 1e-9 {
		t.Errorf("root biomass = %v after subtraction", got)
	}
	l.SubstractBiomassUp(leaf, 0, 10)
	if got := l.Cell(leaf).Resources[0].Biomass; got != 0 {
		t.Errorf("leaf biomass = %v, want clamp at 0", got)
	}

	if err := l.SetCurrentTotalDryMass(l.Root(), 0, 1); !errors.Is(err, ErrNotSupported) {
		t.Errorf("set on branch: err = %v, want ErrNotSupported", err)
	}
	if err := l.SetCurrentTotalDryMass(leaf, 0, 9); err != nil {
		t.Fatal(err)
	}
	if got := l.Cell(leaf).Resources[0].Biomass; got != 4 {
		t.Errorf("set biomass = %v, want capacity 4", got)
	}
}

func TestChangeStageMovesBucket(t *testing.T) {
	f := newFixture(t, "populations: []\npatches: []\n")
	e := f.spawn(0, 1, 3, 3)
	if err := f.land.InsertAnimal(e); err != nil {
		t.Fatal(err)
	}
	if err := f.land.ChangeStage(e, components.Diapause); err != nil {
		t.Fatal(err)
	}
	counts := f.land.PopulationCounts()
	if counts[Key{Stage: components.Diapause, Species: 0, Instar: 1}] != 1 {
		t.Errorf("counts = %v", counts)
	}
	if err := f.land.ChangeInstar(e, 2); err != nil {
		t.Fatal(err)
	}
	counts = f.land.PopulationCounts()
	if counts[Key{Stage: components.Diapause, Species: 0, Instar: 2}] != 1 || len(counts) != 1 {
		t.Errorf("counts after moult = %v", counts)
	}
}
