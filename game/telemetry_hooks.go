package game

import (
	"log/slog"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/telemetry"
)

// recordTelemetry writes the pull-based reports due today and flushes the
// stats window when it is complete.
func (s *Simulation) recordTelemetry() {
	out := s.cfg.Output
	day := s.day

	if s.output != nil && out.RecordEvery > 0 && day%out.RecordEvery == 0 {
		if err := s.output.WritePopulation(telemetry.PopulationRows(day, s.land)); err != nil {
			slog.Error("failed to write population", "error", err)
		}
		if err := s.output.WriteResources(telemetry.ResourceRows(day, s.land)); err != nil {
			slog.Error("failed to write resources", "error", err)
		}
	}
	if s.output != nil && out.CellSnapshotEvery > 0 && day%out.CellSnapshotEvery == 0 {
		if err := s.output.WriteCells(day, telemetry.CellRows(day, s.land)); err != nil {
			slog.Error("failed to write cells", "error", err)
		}
	}
	if out.PerfEvery > 0 && day > 0 && day%out.PerfEvery == 0 {
		perfStats := s.perf.Stats()
		if s.logStats {
			perfStats.LogStats()
		}
		if err := s.output.WritePerf(perfStats, day); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}

	s.flushTelemetry()
}

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (s *Simulation) flushTelemetry() {
	if !s.collector.ShouldFlush(s.day) {
		return
	}

	stats := s.collector.Flush(s.day, s.sample())
	if s.onWindow != nil {
		s.onWindow(stats)
	}

	// Log stats if enabled (console output)
	if s.logStats {
		stats.LogStats()
		s.logWorldState()
	}

	if err := s.output.WriteWindow(stats); err != nil {
		slog.Error("failed to write window", "error", err)
	}

	// Check for bookmarks
	for _, bm := range s.bookmarks.Check(stats) {
		if s.logStats {
			bm.LogBookmark()
		}
		if err := s.output.WriteBookmark(bm); err != nil {
			slog.Error("failed to write bookmark", "error", err)
		}

		// Save snapshot on bookmark
		if s.snapshotDir != "" {
			s.SaveSnapshot(&bm)
		}
	}
}

// sample gathers the end-of-window state the collector cannot count itself.
func (s *Simulation) sample() telemetry.Sample {
	alive := make([]bool, len(s.registry.Animals))
	smp := telemetry.Sample{Animals: s.population}

	query := s.filter.Query()
	for query.Next() {
		a, _, _, _ := query.Get()
		if a.Stage.IsTerminal() {
			continue
		}
		alive[a.Species] = true
		if a.Stage != components.Unborn {
			smp.Masses = append(smp.Masses, a.DryMass)
		}
	}
	for _, ok := range alive {
		if ok {
			smp.SpeciesAlive++
		}
	}
	for _, b := range s.land.ResourceTotals() {
		smp.TotalResource += b
	}
	return smp
}

// SaveSnapshot writes a JSON summary of the community to the snapshot
// directory. Failures are logged, not returned: snapshots are diagnostics.
func (s *Simulation) SaveSnapshot(bookmark *telemetry.Bookmark) {
	if s.snapshotDir == "" {
		return
	}
	path, err := telemetry.SaveSnapshot(s.CreateSnapshot(bookmark), s.snapshotDir)
	if err != nil {
		slog.Error("failed to save snapshot", "error", err)
		return
	}
	slog.Info("snapshot saved", "path", path, "day", s.day)
}

// CreateSnapshot builds a snapshot from the current state.
func (s *Simulation) CreateSnapshot(bookmark *telemetry.Bookmark) *telemetry.Snapshot {
	snapshot := &telemetry.Snapshot{
		Version:  telemetry.SnapshotVersion,
		RunID:    s.runID,
		Seed:     s.seed,
		Day:      s.day,
		Bookmark: bookmark,
	}

	species := make([]telemetry.SpeciesState, len(s.registry.Animals))
	massSum := make([]float64, len(s.registry.Animals))
	for i, sp := range s.registry.Animals {
		species[i] = telemetry.SpeciesState{
			Name:      sp.Name,
			ByStage:   make(map[string]int),
			ByInstar:  make([]int, sp.Instars),
			Predators: len(s.registry.PredatorsOf(sp.ID)),
		}
	}

	query := s.filter.Query()
	for query.Next() {
		a, _, _, _ := query.Get()
		if a.Stage.IsTerminal() {
			continue
		}
		st := &species[a.Species]
		st.Count++
		st.ByStage[a.Stage.String()]++
		st.ByInstar[a.Instar-1]++
		massSum[a.Species] += a.DryMass
	}
	for i := range species {
		if species[i].Count > 0 {
			species[i].MeanMass = massSum[i] / float64(species[i].Count)
		}
	}
	snapshot.Species = species

	for i, b := range s.land.ResourceTotals() {
		snapshot.Resources = append(snapshot.Resources, telemetry.ResourceState{
			Name:    s.registry.Resources[i].Name,
			Biomass: b,
		})
	}
	return snapshot
}
