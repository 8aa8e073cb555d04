package systems

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/config"
	"github.com/pthm-cable/weaver/geometry"
	"github.com/pthm-cable/weaver/landscape"
	"github.com/pthm-cable/weaver/patch"
	"github.com/pthm-cable/weaver/traits"
)

const fungusField = `
landscape: {dims: 2, cell_size: 1, max_depth: 2, initial_depth: 2}
populations: []
patches:
  - type: resource
    priority: 1
    shape: {kind: box, min: [0, 0], max: [4, 4]}
    resource: {species: fungus, initial_biomass: 1, maximum_capacity: 2}
`

type evalFixture struct {
	land     *landscape.Landscape
	registry *components.Registry
	ev       *Evaluator
	animals  *ecs.Map1[components.Animal]
	mapper   *ecs.Map4[components.Animal, components.Position, components.Phenotype, components.DietMemory]
	rng      *rand.Rand
	nextID   uint64
}

func newEvalFixture(t *testing.T) *evalFixture {
	t.Helper()
	cfg, err := config.Parse([]byte(fungusField))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	reg, err := components.NewRegistry(cfg)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	world := ecs.NewWorld()
	land, err := landscape.New(cfg, reg, world)
	if err != nil {
		t.Fatalf("landscape: %v", err)
	}
	patches, err := patch.FromConfig(cfg, components.NewIDAllocator(1))
	if err != nil {
		t.Fatalf("patches: %v", err)
	}
	if err := land.ApplyPatches(patches); err != nil {
		t.Fatalf("apply patches: %v", err)
	}
	// Zero exponents make every encounter and every attack certain.
	spider := reg.Animal(1)
	spider.EncounterExponents = components.Exponents{}
	spider.PredationExponents = components.Exponents{}

	return &evalFixture{
		land:     land,
		registry: reg,
		ev:       NewEvaluator(world, land, NewPredationModels(reg, 10, 3)),
		animals:  ecs.NewMap1[components.Animal](world),
		mapper:   ecs.NewMap4[components.Animal, components.Position, components.Phenotype, components.DietMemory](world),
		rng:      rand.New(rand.NewPCG(3, 3)),
	}
}

func (f *evalFixture) spawn(t *testing.T, species components.SpeciesID, instar int, mass, x, y float64) ecs.Entity {
	t.Helper()
	sp := f.registry.Animal(species)
	f.nextID++
	a := components.Animal{ID: f.nextID, Species: species, Instar: instar, Stage: components.Active, DryMass: mass}
	pos := components.Position{Coord: geometry.NewCoordinate(x, y), Cell: int32(landscape.NoCell)}
	ph := components.NewPhenotype(traits.Random(&sp.TraitRanges, f.rng), sp, 20)
	mem := components.NewDietMemory()
	e := f.mapper.NewEntity(&a, &pos, &ph, &mem)
	if err := f.land.InsertAnimal(e); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return e
}

func (f *evalFixture) cellAt(t *testing.T, x, y float64, depth int) landscape.CellID {
	t.Helper()
	id, err := f.land.CellAt(geometry.NewCoordinate(x, y), depth)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

// ---------- candidates ----------

func TestCandidateBeats(t *testing.T) {
	resource := Candidate{Resource: true, Value: 0.5}
	prey := Candidate{Value: 0.5}
	tests := []struct {
		name    string
		c, best Candidate
		hasBest bool
		want    bool
	}{
		{"first food", resource, Candidate{}, false, true},
		{"worthless food", Candidate{Value: 0}, Candidate{}, false, false},
		{"animal wins a tie", prey, resource, true, true},
		{"resource loses a tie", resource, prey, true, false},
		{"equal resources keep the first", resource, resource, true, false},
		{"higher value wins", Candidate{Resource: true, Value: 0.6}, prey, true, true},
		{"lower value loses", Candidate{Value: 0.4}, resource, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.beats(tt.best, tt.hasBest); got != tt.want {
				t.Errorf("beats = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLinearInterpolate01(t *testing.T) {
	tests := []struct {
		v, lo, hi, want float64
	}{
		{0.25, 0, 1, 0.25},
		{3, 0, 1, 1},
		{-1, 0, 1, 0},
		{5, 0, 10, 0.5},
		{2, 1, 1, 1},
		{0, 1, 1, 0},
	}
	for _, tt := range tests {
		if got := linearInterpolate01(tt.v, tt.lo, tt.hi); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("linearInterpolate01(%v, %v, %v) = %v, want %v", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}

// ---------- cell evaluation ----------

func TestCellEvaluation_ResourceNormalisedByCapacity(t *testing.T) {
	f := newEvalFixture(t)
	mite := f.spawn(t, 0, 1, 0.01, 0.5, 0.5)
	leaf := f.cellAt(t, 0.5, 0.5, 2)

	r := f.land.Cell(leaf).Resources[0]
	want := r.Available() / r.Capacity
	if want <= 0 || want >= 1 {
		t.Fatalf("fixture resource ratio %v outside (0,1)", want)
	}

	ev := f.ev.CellEvaluation(mite, leaf, nil)
	if !ev.HasFood || !ev.Best.Resource || ev.Best.Cell != leaf {
		t.Fatalf("best = %+v, want the cell's fungus", ev.Best)
	}
	if math.Abs(ev.Best.Value-want) > 1e-12 || math.Abs(ev.Edibility-want) > 1e-12 {
		t.Errorf("value %v edibility %v, want %v", ev.Best.Value, ev.Edibility, want)
	}
	if ev.PredatoryRisk != 0 || ev.ConspecificBiomass != 0 {
		t.Errorf("risk %v biomass %v in an empty cell", ev.PredatoryRisk, ev.ConspecificBiomass)
	}

	tried := NewTried()
	tried.MarkResource(leaf, 0)
	if ev := f.ev.CellEvaluation(mite, leaf, tried); ev.HasFood || ev.Edibility != 0 {
		t.Errorf("tried fungus still offered: %+v", ev)
	}
}

func TestCellEvaluation_PreySquashedPerSpecies(t *testing.T) {
	f := newEvalFixture(t)
	spider := f.spawn(t, 1, 2, 0.2, 0.5, 0.5)
	mite := f.registry.Animal(0)
	adult := mite.AdultMass()
	for i := 0; i < 10; i++ {
		f.spawn(t, 0, mite.Instars, adult, 0.2+0.05*float64(i), 0.3)
	}
	leaf := f.cellAt(t, 0.5, 0.5, 2)

	ev := f.ev.CellEvaluation(spider, leaf, nil)
	if !ev.HasFood || ev.Best.Resource {
		t.Fatalf("best = %+v, want a mite", ev.Best)
	}
	// One adult out of a unit cell's carrying capacity.
	if want := 1 / mite.CarryingDensity; math.Abs(ev.Best.Value-want) > 1e-12 {
		t.Errorf("best value = %v, want %v", ev.Best.Value, want)
	}
	// Ten adults exceed capacity, so the species saturates at 1.
	if math.Abs(ev.Edibility-1) > 1e-12 {
		t.Errorf("edibility = %v, want 1", ev.Edibility)
	}
}

func TestCellEvaluation_RiskScaledByPredatorDensity(t *testing.T) {
	f := newEvalFixture(t)
	mite := f.spawn(t, 0, 1, 0.01, 0.5, 0.5)
	f.spawn(t, 1, 2, 0.2, 1.5, 1.5)
	branch := f.cellAt(t, 0.5, 0.5, 1)
	if f.land.Cell(branch).Kind != landscape.KindBranch {
		t.Fatalf("cell %d is %s, want a branch", branch, f.land.Cell(branch).Kind)
	}

	ev := f.ev.CellEvaluation(mite, branch, nil)
	crowd := f.registry.Animal(1).CarryingDensity * f.land.Cell(branch).Area.Volume()
	if want := 1 / crowd; math.Abs(ev.PredatoryRisk-want) > 1e-12 {
		t.Errorf("risk = %v, want %v", ev.PredatoryRisk, want)
	}
}

// ---------- radius evaluation ----------

func TestRadiusEvaluation_ProRatesPartialCells(t *testing.T) {
	f := newEvalFixture(t)
	mite := f.spawn(t, 0, 1, 0.01, 0.5, 0.5)
	f.spawn(t, 0, 1, 0.02, 1.5, 0.5)
	full := f.cellAt(t, 0.5, 0.5, 2)
	partial := f.cellAt(t, 1.5, 0.5, 2)

	fullEv := f.ev.CellEvaluation(mite, full, nil)
	partialEv := f.ev.CellEvaluation(mite, partial, nil)

	cells := []landscape.RadiusCell{
		{Cell: full, Coverage: geometry.CoverageFull, Fraction: 1},
		{Cell: partial, Coverage: geometry.CoveragePartial, Fraction: 0.25},
	}
	view := f.ev.RadiusEvaluation(mite, cells, nil)

	if want := fullEv.Edibility + 0.25*partialEv.Edibility; math.Abs(view.Edibility-want) > 1e-12 {
		t.Errorf("edibility = %v, want %v", view.Edibility, want)
	}
	if want := 0.25 * 0.02; math.Abs(view.ConspecificBiomass-want) > 1e-12 {
		t.Errorf("conspecific biomass = %v, want %v", view.ConspecificBiomass, want)
	}
	// Both cells offer the same fungus, so the first one seen is kept.
	if !view.HasFood || view.Cell != full || view.Best.Cell != full {
		t.Errorf("view points at cell %d (best %+v), want %d", view.Cell, view.Best, full)
	}

	tried := NewTried()
	tried.MarkResource(full, 0)
	tried.MarkResource(partial, 0)
	empty := f.ev.RadiusEvaluation(mite, cells, tried)
	if empty.HasFood || empty.Cell == landscape.NoCell {
		t.Errorf("without food the view should still name a cell: %+v", empty)
	}
}
