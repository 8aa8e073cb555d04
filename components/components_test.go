package components

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/pthm-cable/weaver/config"
)

func TestRingBufferOverwritesOldest(t *testing.T) {
	r := NewRingBuffer[float64](3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		r.Push(v)
	}
	got := r.Values()
	want := []float64{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("Values() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Values()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if math.Abs(r.Mean()-4) > 1e-12 {
		t.Errorf("Mean() = %v, want 4", r.Mean())
	}
	if r.Max() != 5 {
		t.Errorf("Max() = %v, want 5", r.Max())
	}
}

func TestRingBufferJSON(t *testing.T) {
	r := NewRingBuffer[float64](2)
	r.Push(1)
	r.Push(2)
	r.Push(3)
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out RingBuffer[float64]
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Cap() != 2 || out.Len() != 2 || out.Values()[0] != 2 {
		t.Errorf("round trip = %v (cap %d)", out.Values(), out.Cap())
	}
}

func TestLifeStageTerminal(t *testing.T) {
	terminal := map[LifeStage]bool{Starved: true, Predated: true, Background: true, Senesced: true, Shocked: true}
	for s := LifeStage(0); s < NumLifeStages; s++ {
		if s.IsTerminal() != terminal[s] {
			t.Errorf("%v.IsTerminal() = %v", s, s.IsTerminal())
		}
		got, err := ParseLifeStage(s.String())
		if err != nil || got != s {
			t.Errorf("ParseLifeStage(%q) = %v, %v", s.String(), got, err)
		}
	}
}

func TestIDAllocatorIsMonotone(t *testing.T) {
	ids := NewIDAllocator(5)
	if ids.Next() != 5 || ids.Next() != 6 {
		t.Fatal("allocator should start at 5 and increase by one")
	}
	if ids.Peek() != 7 {
		t.Errorf("Peek() = %d, want 7", ids.Peek())
	}
	ids.Reset(100)
	if ids.Next() != 100 {
		t.Error("Reset should set the next id")
	}
}

func TestDietMemoryNormalisesByBest(t *testing.T) {
	m := NewDietMemory()
	fungus := EdibleKey{Resource: true, Species: 0}
	mite := EdibleKey{Species: 1, Instar: 2}
	if _, ok := m.Experienced(fungus); ok {
		t.Fatal("empty memory should report nothing")
	}
	m.Record(fungus, 2, 4)
	m.Record(mite, 4, 4)
	got, ok := m.Experienced(fungus)
	if !ok || math.Abs(got-0.5) > 1e-12 {
		t.Errorf("Experienced(fungus) = %v, %v; want 0.5", got, ok)
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out DietMemory
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got, ok := out.Experienced(mite); !ok || math.Abs(got-1) > 1e-12 {
		t.Errorf("restored Experienced(mite) = %v, %v; want 1", got, ok)
	}
}

func TestRegistryFromDefaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	reg, err := NewRegistry(cfg)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if len(reg.Animals) != len(cfg.AnimalSpecies) || len(reg.Resources) != len(cfg.ResourceSpecies) {
		t.Fatal("registry should mirror the configured species")
	}
	for _, sp := range reg.Animals {
		if got, ok := reg.AnimalByName(sp.Name); !ok || got != sp {
			t.Errorf("AnimalByName(%q) did not return the same species", sp.Name)
		}
		for _, e := range sp.Diet {
			if e.Resource {
				continue
			}
			found := false
			for _, h := range reg.PredatorsOf(e.Species) {
				if h == sp.ID {
					found = true
				}
			}
			if !found {
				t.Errorf("%s eats species %d but is not listed as its predator", sp.Name, e.Species)
			}
		}
	}
}

func TestTargetDepth(t *testing.T) {
	sp := &AnimalSpecies{CellDepth: []int{2, 0, 7}}
	tests := []struct {
		instar int
		want   int
	}{
		{1, 2},
		{2, 5}, // 0 falls back to max depth
		{3, 5}, // deeper than max depth
		{4, 5}, // not configured
	}
	for _, tt := range tests {
		if got := sp.TargetDepth(tt.instar, 5); got != tt.want {
			t.Errorf("TargetDepth(%d) = %d, want %d", tt.instar, got, tt.want)
		}
	}
}
