package telemetry

import (
	"math"
	"testing"

	"github.com/pthm-cable/weaver/components"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5.0}, 0.5, 5.0},
		{"p0", []float64{1, 2, 3, 4, 5}, 0.0, 1.0},
		{"p100", []float64{1, 2, 3, 4, 5}, 1.0, 5.0},
		{"p50 odd", []float64{1, 2, 3, 4, 5}, 0.5, 3.0},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p10", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.1, 1.9},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestComputeMassStats(t *testing.T) {
	values := []float64{1.0, 0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0.1}
	mean, std, p10, p50, p90 := ComputeMassStats(values)

	if math.Abs(mean-0.55) > 0.001 {
		t.Errorf("mean = %v, want 0.55", mean)
	}
	// Sample standard deviation of 0.1..1.0
	if math.Abs(std-0.30277) > 0.001 {
		t.Errorf("std = %v, want ~0.3028", std)
	}
	if math.Abs(p10-0.19) > 0.01 {
		t.Errorf("p10 = %v, want ~0.19", p10)
	}
	if math.Abs(p50-0.55) > 0.01 {
		t.Errorf("p50 = %v, want ~0.55", p50)
	}
	if math.Abs(p90-0.91) > 0.01 {
		t.Errorf("p90 = %v, want ~0.91", p90)
	}
	if values[0] != 1.0 {
		t.Error("input slice was reordered")
	}
}

func TestComputeMassStatsEdgeCases(t *testing.T) {
	mean, std, p10, p50, p90 := ComputeMassStats(nil)
	if mean != 0 || std != 0 || p10 != 0 || p50 != 0 || p90 != 0 {
		t.Error("empty slice should return all zeros")
	}
	mean, std, _, p50, _ = ComputeMassStats([]float64{2})
	if mean != 2 || std != 0 || p50 != 2 {
		t.Errorf("single value: mean=%v std=%v p50=%v", mean, std, p50)
	}
}

// ---------- collector ----------

func TestCollector_FlushCountsAndResets(t *testing.T) {
	c := NewCollector(5)

	c.Record(NewEncounterEvent(1, 10, 20, 1))
	c.Record(NewEncounterEvent(1, 10, 21, 1))
	c.Record(NewPredationEvent(1, 10, 20, 1, 0.25))
	c.Record(NewBirthEvent(2, 30, 10, 1))
	c.Record(NewDeathEvent(2, 20, 0, components.Predated))
	c.Record(NewDeathEvent(3, 22, 0, components.Starved))
	c.Record(NewGrazeEvent(3, 22, 0, 0.5))
	c.Record(NewGrazeEvent(3, 23, 0, 0.25))

	if c.ShouldFlush(4) {
		t.Error("window of 5 days should not flush on day 4")
	}
	if !c.ShouldFlush(5) {
		t.Error("window of 5 days should flush on day 5")
	}

	stats := c.Flush(5, Sample{Animals: 3, SpeciesAlive: 2, Masses: []float64{1, 2, 3}, TotalResource: 9})

	if stats.Encounters != 2 || stats.Predations != 1 || stats.Births != 1 {
		t.Errorf("unexpected counters %+v", stats)
	}
	if math.Abs(stats.PredationRate-0.5) > 1e-9 {
		t.Errorf("predation rate = %v, want 0.5", stats.PredationRate)
	}
	if stats.DeathsPredated != 1 || stats.DeathsStarved != 1 || stats.Deaths() != 2 {
		t.Errorf("unexpected deaths %+v", stats)
	}
	if math.Abs(stats.Grazed-0.75) > 1e-9 || math.Abs(stats.PreyMassEaten-0.25) > 1e-9 {
		t.Errorf("grazed = %v, prey mass = %v", stats.Grazed, stats.PreyMassEaten)
	}
	if stats.MassMean != 2 || stats.TotalResource != 9 {
		t.Errorf("mean mass = %v, resource = %v", stats.MassMean, stats.TotalResource)
	}

	next := c.Flush(10, Sample{})
	if next.WindowStartDay != 5 || next.Encounters != 0 || next.Deaths() != 0 {
		t.Errorf("counters not reset: %+v", next)
	}
}
