package telemetry

import (
	"cmp"
	"slices"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/landscape"
)

// PopulationRow is the number of indexed animals in one bucket on a day.
type PopulationRow struct {
	Day     int    `csv:"day"`
	Species string `csv:"species"`
	Stage   string `csv:"stage"`
	Instar  int    `csv:"instar"`
	Gender  string `csv:"gender"`
	Count   int    `csv:"count"`
}

// PopulationRows sweeps the tree and returns one row per non-empty bucket,
// ordered by species, instar, stage and gender.
func PopulationRows(day int, land *landscape.Landscape) []PopulationRow {
	counts := land.PopulationCounts()
	keys := make([]landscape.Key, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b landscape.Key) int {
		return cmp.Or(
			cmp.Compare(a.Species, b.Species),
			cmp.Compare(a.Instar, b.Instar),
			cmp.Compare(a.Stage, b.Stage),
			cmp.Compare(a.Gender, b.Gender),
		)
	})

	reg := land.Registry()
	rows := make([]PopulationRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, PopulationRow{
			Day:     day,
			Species: reg.Animal(k.Species).Name,
			Stage:   k.Stage.String(),
			Instar:  k.Instar,
			Gender:  k.Gender.String(),
			Count:   counts[k],
		})
	}
	return rows
}

// ResourceRow is the standing biomass of one resource species on a day.
type ResourceRow struct {
	Day     int     `csv:"day"`
	Species string  `csv:"species"`
	Biomass float64 `csv:"biomass"`
}

// ResourceRows reads the resource totals held by the root summary.
func ResourceRows(day int, land *landscape.Landscape) []ResourceRow {
	reg := land.Registry()
	totals := land.ResourceTotals()
	rows := make([]ResourceRow, len(totals))
	for i, b := range totals {
		rows[i] = ResourceRow{Day: day, Species: reg.Resource(components.SpeciesID(i)).Name, Biomass: b}
	}
	return rows
}

// CellRow is the state of one leaf on a day.
type CellRow struct {
	Day         int     `csv:"day"`
	Cell        int     `csv:"cell"`
	Kind        string  `csv:"kind"`
	Depth       int     `csv:"depth"`
	X           float64 `csv:"x"`
	Y           float64 `csv:"y"`
	Z           float64 `csv:"z"`
	Size        float64 `csv:"size"`
	Obstacle    bool    `csv:"obstacle"`
	Temperature float64 `csv:"temperature"`
	Humidity    float64 `csv:"humidity"`
	Animals     int     `csv:"animals"`
	Biomass     float64 `csv:"biomass"`
	Capacity    float64 `csv:"capacity"`
}

// CellRows dumps every leaf and temporal leaf of the tree. Coordinates are
// the lower corner of the cell.
func CellRows(day int, land *landscape.Landscape) []CellRow {
	var rows []CellRow
	land.Leaves(func(c *landscape.Cell) {
		row := CellRow{
			Day:         day,
			Cell:        int(c.ID),
			Kind:        c.Kind.String(),
			Depth:       c.Pos.Depth,
			X:           c.Area.Min.X[0],
			Y:           c.Area.Min.X[1],
			Size:        c.Area.Max.X[0] - c.Area.Min.X[0],
			Obstacle:    c.Obstacle.Obstacle,
			Temperature: c.Moisture.Temperature,
			Humidity:    c.Moisture.Humidity,
			Animals:     c.Animals.Len(),
		}
		if land.Dims() > 2 {
			row.Z = c.Area.Min.X[2]
		}
		for _, r := range c.Resources {
			row.Biomass += r.Biomass
			row.Capacity += r.Capacity
		}
		rows = append(rows, row)
	})
	return rows
}
