package patch

import (
	"math"
	"testing"

	"github.com/pkg/errors"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/config"
	"github.com/pthm-cable/weaver/geometry"
)

func square(x0, y0, x1, y1 float64) geometry.Box {
	return geometry.NewBox(geometry.NewCoordinate(x0, y0), geometry.NewCoordinate(x1, y1))
}

func TestSortIsStableByPriority(t *testing.T) {
	a := &Patch{Priority: 3, Type: TypeObstacle, Shape: square(0, 0, 1, 1)}
	b := &Patch{Priority: 1, Type: TypeObstacle, Shape: square(0, 0, 1, 1)}
	c := &Patch{Priority: 2, Type: TypeObstacle, Shape: square(0, 0, 1, 1)}
	ps := []*Patch{a, b, c}
	Sort(ps)
	if ps[0] != b || ps[1] != c || ps[2] != a {
		t.Errorf("Sort order = %d,%d,%d", ps[0].Priority, ps[1].Priority, ps[2].Priority)
	}
}

func TestValidateRejectsDuplicatesAndUnknownTypes(t *testing.T) {
	dup := []*Patch{
		{Priority: 1, Type: TypeObstacle, Shape: square(0, 0, 1, 1)},
		{Priority: 1, Type: TypeObstacle, Shape: square(1, 1, 2, 2)},
	}
	if err := Validate(dup); err == nil {
		t.Error("expected duplicate priority error")
	}
	bad := &Patch{Priority: 2, Type: Type(42), Shape: square(0, 0, 1, 1)}
	if err := bad.Validate(); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Validate() = %v, want ErrUnknownType", err)
	}
	if _, err := ParseType("lava"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("ParseType(lava) = %v, want ErrUnknownType", err)
	}
}

func TestMoistureCycleWraps(t *testing.T) {
	m := &MoistureSource{TemperatureCycle: []float64{10, 20, 30}, RelativeHumidityCycle: []float64{50}}
	tests := []struct {
		day      int
		wantTemp float64
	}{
		{0, 10}, {2, 30}, {3, 10}, {7, 20},
	}
	for _, tt := range tests {
		if got := m.Temperature(tt.day); got != tt.wantTemp {
			t.Errorf("Temperature(%d) = %v, want %v", tt.day, got, tt.wantTemp)
		}
		if got := m.Humidity(tt.day); got != 50 {
			t.Errorf("Humidity(%d) = %v, want 50", tt.day, got)
		}
	}
}

func TestFromConfigAssignsPriorities(t *testing.T) {
	cfg, err := config.Parse([]byte(`
patches:
  - type: obstacle
    shape: {kind: box, min: [0, 0], max: [2, 2]}
  - type: resource
    priority: 5
    shape: {kind: sphere, center: [4, 4], radius: 2}
    resource: {species: fungus, initial_biomass: 1, maximum_capacity: 2}
  - type: moisture
    shape: {kind: polygon, vertices: [[0, 0], [8, 0], [0, 8]]}
    moisture: {temperature_cycle: [20], relative_humidity_cycle: [60]}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ids := components.NewIDAllocator(1)
	ps, err := FromConfig(cfg, ids)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	want := []int{5, 6, 7}
	for i, p := range ps {
		if p.Priority != want[i] {
			t.Errorf("patch %d priority = %d, want %d", i, p.Priority, want[i])
		}
	}
	if ps[0].Type != TypeResource || ps[1].Type != TypeObstacle || ps[2].Type != TypeMoisture {
		t.Errorf("types after sort = %v %v %v", ps[0].Type, ps[1].Type, ps[2].Type)
	}
	if ps[2].Moisture.ID != 7 {
		t.Errorf("moisture source id = %d, want its priority", ps[2].Moisture.ID)
	}
}

func TestMosaicTilesBounds(t *testing.T) {
	cfg := config.MosaicConfig{
		TileSize:              4,
		NoiseScale:            0.2,
		TemperatureAmplitude:  2,
		HumidityAmplitude:     10,
		TemperatureCycle:      []float64{20, 22},
		RelativeHumidityCycle: []float64{60, 95},
	}
	bounds := square(0, 0, 16, 10)
	ids := components.NewIDAllocator(10)
	ps := Mosaic(cfg, bounds, 7, ids)
	if len(ps) != 4*3 {
		t.Fatalf("tiles = %d, want 12", len(ps))
	}
	var area float64
	for i, p := range ps {
		if p.Priority != 10+i {
			t.Errorf("tile %d priority = %d", i, p.Priority)
		}
		area += p.Shape.Bounds().Volume()
		for _, t0 := range p.Moisture.TemperatureCycle {
			if t0 < 18 || t0 > 24 {
				t.Errorf("temperature %v outside amplitude", t0)
			}
		}
		for _, rh := range p.Moisture.RelativeHumidityCycle {
			if rh < 0 || rh > 100 {
				t.Errorf("humidity %v outside [0,100]", rh)
			}
		}
	}
	if math.Abs(area-bounds.Volume()) > 1e-9 {
		t.Errorf("tile area = %v, want %v", area, bounds.Volume())
	}

	again := Mosaic(cfg, bounds, 7, components.NewIDAllocator(10))
	if again[5].Moisture.TemperatureCycle[0] != ps[5].Moisture.TemperatureCycle[0] {
		t.Error("mosaic should be deterministic for a seed")
	}
}
