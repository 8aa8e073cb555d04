package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a window of days.
type WindowStats struct {
	WindowStartDay int `csv:"-"`
	WindowEndDay   int `csv:"window_end"`

	// Population at window end
	Animals      int `csv:"animals"`
	SpeciesAlive int `csv:"species_alive"`

	// Events during window
	Births           int `csv:"births"`
	DeathsStarved    int `csv:"deaths_starved"`
	DeathsPredated   int `csv:"deaths_predated"`
	DeathsBackground int `csv:"deaths_background"`
	DeathsSenesced   int `csv:"deaths_senesced"`
	DeathsShocked    int `csv:"deaths_shocked"`

	// Foraging
	Encounters    int     `csv:"encounters"`
	Predations    int     `csv:"predations"`
	PredationRate float64 `csv:"predation_rate"`
	Grazed        float64 `csv:"grazed"`
	PreyMassEaten float64 `csv:"prey_mass_eaten"`

	// Dry mass distribution (sampled at window end)
	MassMean float64 `csv:"mass_mean"`
	MassStd  float64 `csv:"mass_std"`
	MassP10  float64 `csv:"mass_p10"`
	MassP50  float64 `csv:"mass_p50"`
	MassP90  float64 `csv:"mass_p90"`

	TotalResource float64 `csv:"total_resource"`
}

// Deaths returns the number of deaths of every cause.
func (s WindowStats) Deaths() int {
	return s.DeathsStarved + s.DeathsPredated + s.DeathsBackground + s.DeathsSenesced + s.DeathsShocked
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeMassStats calculates mean, sample standard deviation and percentiles.
func ComputeMassStats(values []float64) (mean, std, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0, 0
	}
	if n == 1 {
		mean = values[0]
	} else {
		mean, std = stat.MeanStdDev(values, nil)
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, std, p10, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", s.WindowStartDay),
		slog.Int("window_end", s.WindowEndDay),
		slog.Int("animals", s.Animals),
		slog.Int("species_alive", s.SpeciesAlive),
		slog.Int("births", s.Births),
		slog.Int("deaths", s.Deaths()),
		slog.Int("encounters", s.Encounters),
		slog.Int("predations", s.Predations),
		slog.Float64("predation_rate", s.PredationRate),
		slog.Float64("grazed", s.Grazed),
		slog.Float64("mass_mean", s.MassMean),
		slog.Float64("total_resource", s.TotalResource),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndDay,
		"animals", s.Animals,
		"species_alive", s.SpeciesAlive,
		"births", s.Births,
		"deaths_starved", s.DeathsStarved,
		"deaths_predated", s.DeathsPredated,
		"deaths_background", s.DeathsBackground,
		"deaths_senesced", s.DeathsSenesced,
		"deaths_shocked", s.DeathsShocked,
		"encounters", s.Encounters,
		"predations", s.Predations,
		"predation_rate", s.PredationRate,
		"grazed", s.Grazed,
		"prey_mass_eaten", s.PreyMassEaten,
		"mass_mean", s.MassMean,
		"mass_p50", s.MassP50,
		"total_resource", s.TotalResource,
	)
}
