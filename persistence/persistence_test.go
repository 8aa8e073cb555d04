package persistence

import (
	"math"
	"path/filepath"
	"slices"
	"testing"

	"github.com/pthm-cable/weaver/config"
	"github.com/pthm-cable/weaver/game"
	"github.com/pthm-cable/weaver/landscape"
)

const testWorld = `
landscape: {dims: 2, cell_size: 1, max_depth: 5, initial_depth: 1}
output: {dir: "", perf_every: 0}
patches:
  - type: moisture
    priority: 1
    shape: {kind: box, min: [0, 0], max: [32, 32]}
    moisture:
      temperature_cycle: [18, 20, 22, 20]
      relative_humidity_cycle: [55, 65, 75, 65]
      max_resource_capacity_density: 0
  - type: resource
    priority: 2
    shape: {kind: box, min: [0, 0], max: [32, 32]}
    resource: {species: fungus, initial_biomass: 0.5, maximum_capacity: 2.0}
  - type: resource
    priority: 3
    shape: {kind: sphere, center: [20, 6], radius: 1.5}
    resource: {species: fungus, initial_biomass: 1.5, maximum_capacity: 4.0}
  - type: obstacle
    priority: 4
    shape: {kind: box, min: [12, 12], max: [16, 16]}
  - type: habitat_domain
    priority: 5
    shape: {kind: box, min: [0, 0], max: [8, 8]}
    habitat: {species: [spider], inside: false}
populations:
  - {species: mite, count: 30, instar: 1, stage: active}
  - {species: spider, count: 3, instar: 2, stage: active}
`

func newSim(t *testing.T, days int) (*config.Config, *game.Simulation) {
	t.Helper()
	cfg, err := config.Parse([]byte(testWorld))
	if err != nil {
		t.Fatal(err)
	}
	sim, err := game.New(cfg, game.Options{Seed: 5, RunID: "persist"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(sim.Close)
	for i := 0; i < days; i++ {
		if err := sim.Step(); err != nil {
			t.Fatal(err)
		}
	}
	return cfg, sim
}

// ---------- round trip ----------

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg, sim := newSim(t, 3)
	path := filepath.Join(t.TempDir(), "checkpoint.db")

	if err := Save(path, sim); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path, cfg, game.Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	t.Cleanup(loaded.Close)

	if loaded.Day() != sim.Day() {
		t.Errorf("day = %d, want %d", loaded.Day(), sim.Day())
	}
	if loaded.Population() != sim.Population() {
		t.Errorf("population = %d, want %d", loaded.Population(), sim.Population())
	}
	if loaded.RunID() != "persist" || loaded.Seed() != 5 {
		t.Errorf("run %q seed %d, want persist 5", loaded.RunID(), loaded.Seed())
	}

	want, got := sim.Landscape(), loaded.Landscape()
	if got.NumCells() != want.NumCells() {
		t.Fatalf("cells = %d, want %d", got.NumCells(), want.NumCells())
	}
	sameCells(t, want.Cells(), got.Cells())
	wr, gr := want.ResourceTotals(), got.ResourceTotals()
	for i := range wr {
		if math.Abs(wr[i]-gr[i]) > 1e-12 {
			t.Errorf("resource %d = %v, want %v", i, gr[i], wr[i])
		}
	}
	if got.CountIndexed() != loaded.Population() {
		t.Errorf("indexed %d animals, population %d", got.CountIndexed(), loaded.Population())
	}
	for k, n := range want.PopulationCounts() {
		if c := got.PopulationCounts()[k]; c != n {
			t.Errorf("bucket %+v = %d, want %d", k, c, n)
		}
	}
	if len(loaded.Models().States()) != len(sim.Models().States()) {
		t.Errorf("predation models = %d, want %d", len(loaded.Models().States()), len(sim.Models().States()))
	}

	if err := loaded.Step(); err != nil {
		t.Fatalf("step after load: %v", err)
	}
}

// sameCells compares two arenas cell by cell. The saved tree must still hold
// temporal leaves so that unpromoted cells are covered too.
func sameCells(t *testing.T, want, got []landscape.Cell) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("cells = %d, want %d", len(got), len(want))
	}
	kinds := map[landscape.Kind]int{}
	obstacles, habitats := 0, 0
	for i := range want {
		w, g := &want[i], &got[i]
		kinds[w.Kind]++
		if w.Obstacle.Priority >= 0 {
			obstacles++
		}
		if w.Habitat.Priority >= 0 {
			habitats++
		}
		if g.ID != w.ID || g.Kind != w.Kind || g.Parent != w.Parent || !slices.Equal(g.Children, w.Children) {
			t.Errorf("cell %d: %s parent %d children %v, want %s parent %d children %v",
				w.ID, g.Kind, g.Parent, g.Children, w.Kind, w.Parent, w.Children)
		}
		if g.Pos != w.Pos || g.Area != w.Area {
			t.Errorf("cell %d at %s, want %s", w.ID, g.Pos, w.Pos)
		}
		if g.Obstacle != w.Obstacle {
			t.Errorf("cell %d obstacle %+v, want %+v", w.ID, g.Obstacle, w.Obstacle)
		}
		if g.Moisture.Priority != w.Moisture.Priority || (g.Moisture.Source == nil) != (w.Moisture.Source == nil) {
			t.Errorf("cell %d moisture priority %d, want %d", w.ID, g.Moisture.Priority, w.Moisture.Priority)
		} else if w.Moisture.Source != nil && g.Moisture.Source.ID != w.Moisture.Source.ID {
			t.Errorf("cell %d moisture source %d, want %d", w.ID, g.Moisture.Source.ID, w.Moisture.Source.ID)
		}
		if g.Habitat.Priority != w.Habitat.Priority || !slices.Equal(g.Habitat.Excluded, w.Habitat.Excluded) {
			t.Errorf("cell %d habitat %+v, want %+v", w.ID, g.Habitat, w.Habitat)
		}
		if !slices.Equal(g.Resources, w.Resources) {
			t.Errorf("cell %d resources %+v, want %+v", w.ID, g.Resources, w.Resources)
		}
	}
	for _, k := range []landscape.Kind{landscape.KindLeaf, landscape.KindBranch, landscape.KindTemporalLeaf} {
		if kinds[k] == 0 {
			t.Errorf("saved tree has no %s cells", k)
		}
	}
	if obstacles == 0 || habitats == 0 {
		t.Errorf("%d obstacle and %d habitat cells, want both patches written", obstacles, habitats)
	}
}

func TestLoadedCellsShareMoistureSources(t *testing.T) {
	cfg, sim := newSim(t, 1)
	path := filepath.Join(t.TempDir(), "checkpoint.db")
	if err := Save(path, sim); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path, cfg, game.Options{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(loaded.Close)

	l := loaded.Landscape()
	withSource := 0
	l.Walk(func(c *landscape.Cell) bool {
		if src := c.Moisture.Source; src != nil {
			withSource++
			if l.Source(src.ID) != src {
				t.Errorf("cell %d holds a copy of source %d", c.ID, src.ID)
			}
		}
		return true
	})
	if withSource == 0 {
		t.Error("no cell references a moisture source")
	}
}

// ---------- database ----------

func TestSaveReplacesPreviousCheckpoint(t *testing.T) {
	_, sim := newSim(t, 1)
	db, err := Open(filepath.Join(t.TempDir(), "checkpoint.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	cp, err := sim.Checkpoint()
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := db.SaveCheckpoint(cp); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	n, err := db.AnimalCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != len(cp.Animals) {
		t.Errorf("stored %d animals, want %d", n, len(cp.Animals))
	}

	counts, err := db.SpeciesCounts()
	if err != nil {
		t.Fatal(err)
	}
	total := 0
	for _, c := range counts {
		total += c.N
	}
	if total != n {
		t.Errorf("species counts sum to %d, want %d", total, n)
	}
}

func TestLoadEmptyDatabase(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.LoadCheckpoint(); err == nil {
		t.Fatal("expected an error for a database without a checkpoint")
	}
}

func TestLoadRejectsSmallerConfig(t *testing.T) {
	cfg, sim := newSim(t, 0)
	path := filepath.Join(t.TempDir(), "checkpoint.db")
	if err := Save(path, sim); err != nil {
		t.Fatal(err)
	}
	smaller := *cfg
	smaller.AnimalSpecies = cfg.AnimalSpecies[:1]
	if _, err := Load(path, &smaller, game.Options{}); err == nil {
		t.Fatal("expected an error when the config lacks a stored species")
	}
}
