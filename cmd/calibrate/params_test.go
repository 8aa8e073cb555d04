package main

import (
	"math"
	"testing"

	"github.com/pthm-cable/weaver/config"
)

func TestParamVectorCoversSpecies(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	pv := NewParamVector(cfg)
	want := 4*len(cfg.AnimalSpecies) + len(cfg.ResourceSpecies)
	if pv.Dim() != want {
		t.Fatalf("dim = %d, want %d", pv.Dim(), want)
	}

	def := pv.DefaultVector()
	got := pv.Denormalize(pv.Normalize(def))
	for i := range def {
		if math.Abs(got[i]-def[i]) > 1e-12 {
			t.Errorf("%s: round trip %v, want %v", pv.Specs[i].Name, got[i], def[i])
		}
	}
	extracted := pv.ExtractFromConfig(cfg)
	for i := range def {
		if extracted[i] != def[i] {
			t.Errorf("%s: extracted %v, default %v", pv.Specs[i].Name, extracted[i], def[i])
		}
	}
}

func TestApplyClampsAndRounds(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	pv := NewParamVector(cfg)
	values := make([]float64, pv.Dim())
	for i := range values {
		values[i] = 1e6
	}
	pv.ApplyToConfig(cfg, values)

	for i, v := range pv.ExtractFromConfig(cfg) {
		spec := pv.Specs[i]
		if v != spec.Max {
			t.Errorf("%s = %v, want max %v", spec.Name, v, spec.Max)
		}
		if spec.Integer && v != math.Round(v) {
			t.Errorf("%s = %v, want a whole number", spec.Name, v)
		}
	}

	// Lowering the voracity maximum below the minimum drags the minimum down.
	pv.ApplyToConfig(cfg, make([]float64, pv.Dim()))
	vor := cfg.AnimalSpecies[0].Traits["voracity"]
	if vor.Min > vor.Max {
		t.Errorf("voracity range inverted: %+v", vor)
	}
}
