package traits

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"testing"
)

func testRanges() *Ranges {
	var r Ranges
	for i := range r {
		r[i] = Range{Min: 1, Max: 3}
	}
	return &r
}

func TestParseRoundTrip(t *testing.T) {
	for id := ID(0); id < Count; id++ {
		got, err := Parse(id.String())
		if err != nil {
			t.Fatalf("Parse(%q): %v", id.String(), err)
		}
		if got != id {
			t.Errorf("Parse(%q) = %v, want %v", id.String(), got, id)
		}
	}
	if _, err := Parse("wingspan"); err == nil {
		t.Error("expected error for unknown trait")
	}
}

func TestRandomAndBreedStayInRange(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	ranges := testRanges()
	mother := Random(ranges, rng)
	father := Random(ranges, rng)
	for i := 0; i < 100; i++ {
		child := mother.Breed(father, ranges, rng, 0.5)
		for id, v := range child.Values {
			if v < 1 || v > 3 {
				t.Fatalf("trait %v = %v outside range", ID(id), v)
			}
		}
	}
}

func TestBreedWithoutMutationIsMidparent(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	ranges := testRanges()
	a := &Genome{}
	b := &Genome{}
	for i := range a.Values {
		a.Values[i] = 1.5
		b.Values[i] = 2.5
	}
	child := a.Breed(b, ranges, rng, 0)
	for id, v := range child.Values {
		if math.Abs(v-2) > 1e-12 {
			t.Errorf("trait %v = %v, want 2", ID(id), v)
		}
	}
	clone := a.Breed(nil, ranges, rng, 0)
	if clone.Values != a.Values {
		t.Error("clonal breeding without mutation should copy the genome")
	}
}

func TestTemperatureSections(t *testing.T) {
	tests := []struct {
		name    string
		section TemperatureSection
		temp    float64
		want    float64
	}{
		{"none", TemperatureSection{}, 35, 2},
		{"tsr at reference", TemperatureSection{Kind: SectionTempSizeRule,
			TempSizeRule: &TempSizeRuleParams{ReferenceTemperature: 20, Coefficient: -0.025}}, 20, 2},
		{"tsr warmer", TemperatureSection{Kind: SectionTempSizeRule,
			TempSizeRule: &TempSizeRuleParams{ReferenceTemperature: 20, Coefficient: -0.025}}, 30, 1.5},
		{"pawar at reference", TemperatureSection{Kind: SectionPawar,
			Pawar: &PawarParams{ActivationEnergy: 0.65, ReferenceTemperature: 20}}, 20, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.section.Apply(2, tt.temp)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Apply = %v, want %v", got, tt.want)
			}
		})
	}

	pawar := TemperatureSection{Kind: SectionPawar, Pawar: &PawarParams{
		ActivationEnergy: 0.65, DeactivationEnergy: 3, ReferenceTemperature: 20, OptimalTemperature: 28,
	}}
	if pawar.Apply(1, 25) <= pawar.Apply(1, 15) {
		t.Error("pawar response should rise below the optimum")
	}
	if pawar.Apply(1, 40) >= pawar.Apply(1, 28) {
		t.Error("pawar response should fall above the optimum")
	}
}

func TestTemperatureSectionJSON(t *testing.T) {
	in := TemperatureSection{Kind: SectionTempSizeRule,
		TempSizeRule: &TempSizeRuleParams{ReferenceTemperature: 18, Coefficient: 0.01}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out TemperatureSection
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Kind != SectionTempSizeRule || out.TempSizeRule == nil || *out.TempSizeRule != *in.TempSizeRule {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
	if err := (TemperatureSection{Kind: SectionPawar}).Validate(); err == nil {
		t.Error("expected validation error for pawar without payload")
	}
}
