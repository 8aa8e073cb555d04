package telemetry

import "github.com/pthm-cable/weaver/components"

// Collector accumulates events within windows of days and produces WindowStats.
type Collector struct {
	windowDays int

	// Current window tracking
	windowStartDay int

	// Event counters for current window
	births     int
	deaths     [components.NumLifeStages]int
	encounters int
	predations int
	grazed     float64
	preyMass   float64
}

// NewCollector creates a new stats collector.
// windowDays: how many simulated days each stats window spans.
func NewCollector(windowDays int) *Collector {
	if windowDays < 1 {
		windowDays = 1
	}
	return &Collector{windowDays: windowDays}
}

// Record counts one event in the current window.
func (c *Collector) Record(ev Event) {
	switch ev.Type {
	case EventEncounter:
		c.encounters++
	case EventPredation:
		c.predations++
		c.preyMass += ev.Amount
	case EventBirth:
		c.births++
	case EventDeath:
		if ev.Cause < components.NumLifeStages {
			c.deaths[ev.Cause]++
		}
	case EventGraze:
		c.grazed += ev.Amount
	}
}

// ShouldFlush returns true if enough days have passed to flush the window.
func (c *Collector) ShouldFlush(day int) bool {
	return day-c.windowStartDay >= c.windowDays
}

// Sample is the state of the world at the end of a window.
type Sample struct {
	Animals       int       // living animals, eggs included
	SpeciesAlive  int       // species with at least one living animal
	Masses        []float64 // dry mass of every living animal
	TotalResource float64   // standing biomass of all resources
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(day int, s Sample) WindowStats {
	var predationRate float64
	if c.encounters > 0 {
		predationRate = float64(c.predations) / float64(c.encounters)
	}

	mean, std, p10, p50, p90 := ComputeMassStats(s.Masses)

	stats := WindowStats{
		WindowStartDay: c.windowStartDay,
		WindowEndDay:   day,

		Animals:      s.Animals,
		SpeciesAlive: s.SpeciesAlive,

		Births:           c.births,
		DeathsStarved:    c.deaths[components.Starved],
		DeathsPredated:   c.deaths[components.Predated],
		DeathsBackground: c.deaths[components.Background],
		DeathsSenesced:   c.deaths[components.Senesced],
		DeathsShocked:    c.deaths[components.Shocked],

		Encounters:    c.encounters,
		Predations:    c.predations,
		PredationRate: predationRate,
		Grazed:        c.grazed,
		PreyMassEaten: c.preyMass,

		MassMean: mean,
		MassStd:  std,
		MassP10:  p10,
		MassP50:  p50,
		MassP90:  p90,

		TotalResource: s.TotalResource,
	}

	// Reset for next window
	c.windowStartDay = day
	c.births = 0
	c.deaths = [components.NumLifeStages]int{}
	c.encounters = 0
	c.predations = 0
	c.grazed = 0
	c.preyMass = 0

	return stats
}

// WindowDays returns the number of days per window.
func (c *Collector) WindowDays() int {
	return c.windowDays
}

// Restart begins a new window at day, keeping nothing of the current one.
// Used when a run resumes from a checkpoint.
func (c *Collector) Restart(day int) {
	*c = Collector{windowDays: c.windowDays, windowStartDay: day}
}
