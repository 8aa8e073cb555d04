package game

import (
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/landscape"
)

// SpeciesCounts returns the living animals of every species, eggs included.
func (s *Simulation) SpeciesCounts() []int {
	counts, _, _ := s.census()
	return counts
}

func (s *Simulation) census() (counts, eggs []int, dormant int) {
	counts = make([]int, len(s.registry.Animals))
	eggs = make([]int, len(s.registry.Animals))

	query := s.filter.Query()
	for query.Next() {
		a, _, _, _ := query.Get()
		switch {
		case a.Stage.IsTerminal():
			continue
		case a.Stage == components.Unborn:
			eggs[a.Species]++
		case a.Stage == components.Diapause || a.Stage == components.Pupa:
			dormant++
		}
		counts[a.Species]++
	}
	return counts, eggs, dormant
}

// logWorldState logs the current world state.
func (s *Simulation) logWorldState() {
	counts, eggs, dormant := s.census()

	var leaves, temporal int
	s.land.Leaves(func(c *landscape.Cell) {
		leaves++
		if c.Kind == landscape.KindTemporalLeaf {
			temporal++
		}
	})

	attrs := []any{
		"day", s.day,
		"animals", humanize.Comma(int64(s.population)),
		"dormant", dormant,
		"cells", s.land.NumCells(),
		"leaves", leaves,
		"temporal_leaves", temporal,
	}
	for i, sp := range s.registry.Animals {
		attrs = append(attrs, sp.Name, counts[i], sp.Name+"_eggs", eggs[i])
	}
	for i, b := range s.land.ResourceTotals() {
		attrs = append(attrs, s.registry.Resources[i].Name, b)
	}
	slog.Info("world", attrs...)
}
