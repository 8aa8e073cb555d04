// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/weaver/traits"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Landscape       LandscapeConfig         `yaml:"landscape"`
	Simulation      SimulationConfig        `yaml:"simulation"`
	Parallel        ParallelConfig          `yaml:"parallel"`
	Output          OutputConfig            `yaml:"output"`
	Checkpoint      CheckpointConfig        `yaml:"checkpoint"`
	MoistureMosaic  MosaicConfig            `yaml:"moisture_mosaic"`
	ResourceSpecies []ResourceSpeciesConfig `yaml:"resource_species"`
	AnimalSpecies   []AnimalSpeciesConfig   `yaml:"animal_species"`
	Patches         []PatchConfig           `yaml:"patches"`
	Populations     []PopulationConfig      `yaml:"populations"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// LandscapeConfig describes the spatial tree.
type LandscapeConfig struct {
	Dims         int     `yaml:"dims"`          // 2 or 3
	CellSize     float64 `yaml:"cell_size"`     // edge length of a finest-resolution cell
	MaxDepth     int     `yaml:"max_depth"`     // depth of genuine leaves
	InitialDepth int     `yaml:"initial_depth"` // depth pre-subdivided at construction
	RingMode     string  `yaml:"ring_mode"`     // "circular" or "bounding_box"
}

// SimulationConfig holds step driver parameters.
type SimulationConfig struct {
	Days                   int           `yaml:"days"`
	ExitTimeThreshold      time.Duration `yaml:"exit_time_threshold"`      // wall-clock budget of the movement phase
	SearchAttempts         int           `yaml:"search_attempts"`          // edibles tried per move
	AttackHistoryLength    int           `yaml:"attack_history_length"`    // ring buffer length per species pair
	MinimumHistory         int           `yaml:"minimum_history"`          // attacks before the fitted model replaces the prior
	CheckPopulationCounter bool          `yaml:"check_population_counter"` // verify tree population against the tracked counter each step
}

// ParallelConfig controls the worker pool for per-animal phases.
type ParallelConfig struct {
	Enabled   bool `yaml:"enabled"`
	Workers   int  `yaml:"workers"`   // 0 = runtime.NumCPU
	Threshold int  `yaml:"threshold"` // minimum animals before going parallel
}

// OutputConfig holds reporting settings.
type OutputConfig struct {
	Dir               string `yaml:"dir"`
	RecordEvery       int    `yaml:"record_every"`        // days between population/resource rows
	WindowDays        int    `yaml:"window_days"`         // days per telemetry window
	CellSnapshotEvery int    `yaml:"cell_snapshot_every"` // days between per-cell dumps, 0 disables
	PerfEvery         int    `yaml:"perf_every"`          // days between perf rows, 0 disables
}

// CheckpointConfig holds persistence settings.
type CheckpointConfig struct {
	Path  string `yaml:"path"`
	Every int    `yaml:"every"` // days between checkpoints, 0 = only at the end
}

// MosaicConfig drives the noise-generated moisture mosaic.
type MosaicConfig struct {
	Enabled                    bool      `yaml:"enabled"`
	TileSize                   float64   `yaml:"tile_size"`
	NoiseScale                 float64   `yaml:"noise_scale"`
	TemperatureAmplitude       float64   `yaml:"temperature_amplitude"`
	HumidityAmplitude          float64   `yaml:"humidity_amplitude"`
	TemperatureCycle           []float64 `yaml:"temperature_cycle"`
	RelativeHumidityCycle      []float64 `yaml:"relative_humidity_cycle"`
	MaxResourceCapacityDensity float64   `yaml:"max_resource_capacity_density"`
}

// ResourceSpeciesConfig defines a basal resource.
type ResourceSpeciesConfig struct {
	Name                 string  `yaml:"name"`
	GrowthRate           float64 `yaml:"growth_rate"`            // intrinsic logistic rate per day
	MinHumidity          float64 `yaml:"min_humidity"`           // no growth at or below
	OptimalHumidity      float64 `yaml:"optimal_humidity"`       // full growth at or above
	MinimumEdibleBiomass float64 `yaml:"minimum_edible_biomass"` // ungrazable residual per finest cell
}

// TraitConfig bounds one trait and its temperature dependence.
type TraitConfig struct {
	Min         float64                    `yaml:"min"`
	Max         float64                    `yaml:"max"`
	Temperature *traits.TemperatureSection `yaml:"temperature,omitempty"`
}

// ExponentsConfig weights the factors of a probability product.
type ExponentsConfig struct {
	SizeRatio    float64 `yaml:"size_ratio"`
	SpeedRatio   float64 `yaml:"speed_ratio"`
	MassRatioPDF float64 `yaml:"mass_ratio_pdf"`
}

// PriorConfig is the species prior of log10(prey mass / hunter mass).
type PriorConfig struct {
	Mean float64 `yaml:"mean"`
	SD   float64 `yaml:"sd"`
}

// EdibleConfig is one diet entry. Exactly one of Resource or Animal is set.
type EdibleConfig struct {
	Resource      string  `yaml:"resource,omitempty"`
	Animal        string  `yaml:"animal,omitempty"`
	Instar        int     `yaml:"instar,omitempty"` // 0 = any instar
	Preference    float64 `yaml:"preference"`
	Profitability float64 `yaml:"profitability"`
}

// AnimalSpeciesConfig defines an arthropod species.
type AnimalSpeciesConfig struct {
	Name                 string                 `yaml:"name"`
	Instars              int                    `yaml:"instars"`
	InstarMass           []float64              `yaml:"instar_mass"`     // dry mass needed to reach instar i+1
	PupaInstar           int                    `yaml:"pupa_instar"`     // 0 = no pupa
	MaturityInstar       int                    `yaml:"maturity_instar"` // 0 = last instar
	HuntingMode          string                 `yaml:"hunting_mode"`
	Parthenogenetic      bool                   `yaml:"parthenogenetic"`
	MaleRatio            float64                `yaml:"male_ratio"`
	ClutchSize           int                    `yaml:"clutch_size"`
	MutationSigma        float64                `yaml:"mutation_sigma"`
	ExperienceInfluence  float64                `yaml:"experience_influence"`
	MemoryLength         int                    `yaml:"memory_length"`
	HandlingDays         int                    `yaml:"handling_days"`
	DiapauseHumidity     float64                `yaml:"diapause_humidity"` // 0 disables diapause
	BackgroundMortality  float64                `yaml:"background_mortality"`
	ShockTemperatureMin  float64                `yaml:"shock_temperature_min"`
	ShockTemperatureMax  float64                `yaml:"shock_temperature_max"`
	StarvationFraction   float64                `yaml:"starvation_fraction"`
	Q10                  float64                `yaml:"q10"`
	ReferenceTemperature float64                `yaml:"reference_temperature"`
	MetabolicExponent    float64                `yaml:"metabolic_exponent"`
	CarryingDensity      float64                `yaml:"carrying_density"` // adults per unit volume at carrying capacity
	CellDepth            []int                  `yaml:"cell_depth"`       // per instar, empty = max depth
	EncounterExponents   ExponentsConfig        `yaml:"encounter_exponents"`
	PredationExponents   ExponentsConfig        `yaml:"predation_exponents"`
	MassRatioPrior       PriorConfig            `yaml:"mass_ratio_prior"`
	Traits               map[string]TraitConfig `yaml:"traits"`
	Diet                 []EdibleConfig         `yaml:"diet"`
}

// ShapeConfig describes patch geometry.
type ShapeConfig struct {
	Kind     string      `yaml:"kind"` // "box", "sphere" or "polygon"
	Min      []float64   `yaml:"min,omitempty"`
	Max      []float64   `yaml:"max,omitempty"`
	Center   []float64   `yaml:"center,omitempty"`
	Radius   float64     `yaml:"radius,omitempty"`
	Vertices [][]float64 `yaml:"vertices,omitempty"`
}

// MoistureConfig is the payload of a moisture patch.
type MoistureConfig struct {
	TemperatureCycle           []float64 `yaml:"temperature_cycle"`
	RelativeHumidityCycle      []float64 `yaml:"relative_humidity_cycle"`
	MaxResourceCapacityDensity float64   `yaml:"max_resource_capacity_density"`
}

// ResourcePatchConfig is the payload of a resource patch. Values are per
// finest-resolution cell.
type ResourcePatchConfig struct {
	Species         string  `yaml:"species"`
	InitialBiomass  float64 `yaml:"initial_biomass"`
	MaximumCapacity float64 `yaml:"maximum_capacity"`
}

// HabitatConfig is the payload of a habitat domain patch.
type HabitatConfig struct {
	Species []string `yaml:"species"`
	Inside  bool     `yaml:"inside"` // true = species may live here
}

// PatchConfig is one environmental modification.
type PatchConfig struct {
	Type     string               `yaml:"type"`     // moisture, obstacle, resource, habitat_domain
	Priority int                  `yaml:"priority"` // 0 = assigned in file order
	Shape    ShapeConfig          `yaml:"shape"`
	Moisture *MoistureConfig      `yaml:"moisture,omitempty"`
	Resource *ResourcePatchConfig `yaml:"resource,omitempty"`
	Habitat  *HabitatConfig       `yaml:"habitat,omitempty"`
}

// PopulationConfig seeds initial animals.
type PopulationConfig struct {
	Species string `yaml:"species"`
	Count   int    `yaml:"count"`
	Instar  int    `yaml:"instar"`
	Stage   string `yaml:"stage"` // active, unborn or diapause
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	RootSize      float64        // edge length of the root cell
	CellsPerAxis  int            // finest cells along one axis
	ResourceIndex map[string]int // resource species name -> id
	AnimalIndex   map[string]int // animal species name -> id
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse builds a configuration from YAML bytes merged over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.computeDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	if c.Landscape.Dims == 0 {
		c.Landscape.Dims = 2
	}
	if c.Landscape.InitialDepth > c.Landscape.MaxDepth {
		c.Landscape.InitialDepth = c.Landscape.MaxDepth
	}
	c.Derived.CellsPerAxis = 1 << uint(c.Landscape.MaxDepth)
	c.Derived.RootSize = c.Landscape.CellSize * math.Pow(2, float64(c.Landscape.MaxDepth))

	if c.Parallel.Threshold == 0 {
		c.Parallel.Threshold = 64
	}
	if c.Output.RecordEvery == 0 {
		c.Output.RecordEvery = 1
	}
	if c.Output.WindowDays == 0 {
		c.Output.WindowDays = 10
	}

	for i := range c.AnimalSpecies {
		sp := &c.AnimalSpecies[i]
		if sp.MaturityInstar == 0 {
			sp.MaturityInstar = sp.Instars
		}
		if sp.MetabolicExponent == 0 {
			sp.MetabolicExponent = 0.75
		}
		if sp.Q10 == 0 {
			sp.Q10 = 1
		}
		if sp.ClutchSize == 0 {
			sp.ClutchSize = 1
		}
		if sp.MemoryLength == 0 {
			sp.MemoryLength = 10
		}
		if sp.CarryingDensity == 0 {
			sp.CarryingDensity = 1
		}
		if sp.MassRatioPrior.SD == 0 {
			sp.MassRatioPrior.SD = 1
		}
	}
	for i := range c.Populations {
		pop := &c.Populations[i]
		if pop.Instar == 0 {
			pop.Instar = 1
		}
		if pop.Stage == "" {
			pop.Stage = "active"
		}
	}
	c.Derived.ResourceIndex = make(map[string]int, len(c.ResourceSpecies))
	for i, sp := range c.ResourceSpecies {
		c.Derived.ResourceIndex[sp.Name] = i
	}
	c.Derived.AnimalIndex = make(map[string]int, len(c.AnimalSpecies))
	for i, sp := range c.AnimalSpecies {
		c.Derived.AnimalIndex[sp.Name] = i
	}
}

var huntingModes = map[string]bool{"": true, "does_not_hunt": true, "sit_and_wait": true, "active_hunting": true}

var patchTypes = map[string]bool{"moisture": true, "obstacle": true, "resource": true, "habitat_domain": true}

// Validate checks cross references and ranges.
func (c *Config) Validate() error {
	l := c.Landscape
	if l.Dims != 2 && l.Dims != 3 {
		return fmt.Errorf("landscape.dims must be 2 or 3, got %d", l.Dims)
	}
	if l.CellSize <= 0 {
		return fmt.Errorf("landscape.cell_size must be positive")
	}
	if l.MaxDepth < 0 || l.InitialDepth < 0 {
		return fmt.Errorf("landscape depths must be non-negative")
	}
	if l.RingMode != "" && l.RingMode != "circular" && l.RingMode != "bounding_box" {
		return fmt.Errorf("unknown landscape.ring_mode %q", l.RingMode)
	}
	if len(c.Derived.ResourceIndex) != len(c.ResourceSpecies) {
		return fmt.Errorf("duplicate resource species name")
	}
	if len(c.Derived.AnimalIndex) != len(c.AnimalSpecies) {
		return fmt.Errorf("duplicate animal species name")
	}

	for _, sp := range c.AnimalSpecies {
		if sp.Instars < 1 {
			return fmt.Errorf("species %s: instars must be at least 1", sp.Name)
		}
		if len(sp.InstarMass) != sp.Instars {
			return fmt.Errorf("species %s: instar_mass needs %d values, got %d", sp.Name, sp.Instars, len(sp.InstarMass))
		}
		if sp.PupaInstar < 0 || sp.PupaInstar > sp.Instars {
			return fmt.Errorf("species %s: pupa_instar out of range", sp.Name)
		}
		if !huntingModes[sp.HuntingMode] {
			return fmt.Errorf("species %s: unknown hunting_mode %q", sp.Name, sp.HuntingMode)
		}
		if sp.CarryingDensity < 0 {
			return fmt.Errorf("species %s: carrying_density must not be negative", sp.Name)
		}
		if sp.ExperienceInfluence < 0 || sp.ExperienceInfluence > 1 {
			return fmt.Errorf("species %s: experience_influence must be in [0,1]", sp.Name)
		}
		for name, tr := range sp.Traits {
			if _, err := traits.Parse(name); err != nil {
				return fmt.Errorf("species %s: %w", sp.Name, err)
			}
			if tr.Max < tr.Min {
				return fmt.Errorf("species %s: trait %s has max < min", sp.Name, name)
			}
			if tr.Temperature != nil {
				if err := tr.Temperature.Validate(); err != nil {
					return fmt.Errorf("species %s: trait %s: %w", sp.Name, name, err)
				}
			}
		}
		for _, e := range sp.Diet {
			switch {
			case e.Resource != "" && e.Animal != "":
				return fmt.Errorf("species %s: diet entry names both a resource and an animal", sp.Name)
			case e.Resource != "":
				if _, ok := c.Derived.ResourceIndex[e.Resource]; !ok {
					return fmt.Errorf("species %s: unknown resource %q in diet", sp.Name, e.Resource)
				}
			case e.Animal != "":
				if _, ok := c.Derived.AnimalIndex[e.Animal]; !ok {
					return fmt.Errorf("species %s: unknown animal %q in diet", sp.Name, e.Animal)
				}
			default:
				return fmt.Errorf("species %s: empty diet entry", sp.Name)
			}
		}
	}

	for i, p := range c.Patches {
		if !patchTypes[p.Type] {
			return fmt.Errorf("patch %d: unknown type %q", i, p.Type)
		}
		if p.Type == "resource" {
			if p.Resource == nil {
				return fmt.Errorf("patch %d: resource patch without resource section", i)
			}
			if _, ok := c.Derived.ResourceIndex[p.Resource.Species]; !ok {
				return fmt.Errorf("patch %d: unknown resource species %q", i, p.Resource.Species)
			}
		}
		if p.Type == "moisture" && p.Moisture == nil {
			return fmt.Errorf("patch %d: moisture patch without moisture section", i)
		}
		if p.Type == "habitat_domain" {
			if p.Habitat == nil {
				return fmt.Errorf("patch %d: habitat patch without habitat section", i)
			}
			for _, name := range p.Habitat.Species {
				if _, ok := c.Derived.AnimalIndex[name]; !ok {
					return fmt.Errorf("patch %d: unknown animal species %q", i, name)
				}
			}
		}
	}

	for _, pop := range c.Populations {
		idx, ok := c.Derived.AnimalIndex[pop.Species]
		if !ok {
			return fmt.Errorf("population: unknown species %q", pop.Species)
		}
		sp := c.AnimalSpecies[idx]
		if pop.Stage != "active" && pop.Stage != "unborn" && pop.Stage != "diapause" {
			return fmt.Errorf("population %s: unknown stage %q", pop.Species, pop.Stage)
		}
		if pop.Instar < 1 || pop.Instar > sp.Instars {
			return fmt.Errorf("population %s: instar %d out of range", pop.Species, pop.Instar)
		}
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
