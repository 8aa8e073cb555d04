package systems

// PhaseInfo describes one phase of the daily step.
type PhaseInfo struct {
	ID          string // Internal identifier (used for perf tracking)
	Name        string // Display name
	Description string // What this phase does
	Category    string // Grouping (e.g., "environment", "animals")
}

// Phase identifiers in step order.
const (
	PhaseLandscape  = "landscape"
	PhaseActivate   = "activate"
	PhaseTune       = "tune"
	PhaseMove       = "move"
	PhaseAssimilate = "assimilate"
	PhaseMetabolize = "metabolize"
	PhaseGrow       = "grow"
	PhaseBreed      = "breed"
	PhasePurge      = "purge"
	PhaseTelemetry  = "telemetry"
)

// PhaseRegistry holds metadata about all phases.
// This centralizes phase naming so logs and the perf tracker stay in sync.
type PhaseRegistry struct {
	phases []PhaseInfo
	byID   map[string]PhaseInfo
}

// NewPhaseRegistry creates a registry with all known phases.
func NewPhaseRegistry() *PhaseRegistry {
	reg := &PhaseRegistry{
		byID: make(map[string]PhaseInfo),
	}
	reg.registerDefaults()
	return reg
}

// registerDefaults adds the phases of a step in the order they run.
func (r *PhaseRegistry) registerDefaults() {
	r.Register(PhaseInfo{ID: PhaseLandscape, Name: "Landscape", Description: "Advances moisture cycles and grows resources", Category: "environment"})

	r.Register(PhaseInfo{ID: PhaseActivate, Name: "Activate", Description: "Hatching, diapause, timers and mortality", Category: "animals"})
	r.Register(PhaseInfo{ID: PhaseTune, Name: "Tune", Description: "Re-expresses traits at the local temperature", Category: "animals"})
	r.Register(PhaseInfo{ID: PhaseMove, Name: "Move", Description: "Searches, encounters and predation", Category: "animals"})
	r.Register(PhaseInfo{ID: PhaseAssimilate, Name: "Assimilate", Description: "Digests the food eaten this step", Category: "animals"})
	r.Register(PhaseInfo{ID: PhaseMetabolize, Name: "Metabolize", Description: "Pays maintenance and checks starvation", Category: "animals"})
	r.Register(PhaseInfo{ID: PhaseGrow, Name: "Grow", Description: "Grows, moults and matures", Category: "animals"})
	r.Register(PhaseInfo{ID: PhaseBreed, Name: "Breed", Description: "Lays clutches", Category: "animals"})

	r.Register(PhaseInfo{ID: PhasePurge, Name: "Purge", Description: "Removes dead animals", Category: "core"})
	r.Register(PhaseInfo{ID: PhaseTelemetry, Name: "Telemetry", Description: "Records window statistics", Category: "core"})
}

// Register adds a phase to the registry.
func (r *PhaseRegistry) Register(info PhaseInfo) {
	r.phases = append(r.phases, info)
	r.byID[info.ID] = info
}

// Get returns phase info by ID.
func (r *PhaseRegistry) Get(id string) (PhaseInfo, bool) {
	info, ok := r.byID[id]
	return info, ok
}

// GetName returns the display name for a phase ID.
// Falls back to the ID itself if not found.
func (r *PhaseRegistry) GetName(id string) string {
	if info, ok := r.byID[id]; ok {
		return info.Name
	}
	return id
}

// All returns all registered phases.
func (r *PhaseRegistry) All() []PhaseInfo {
	return r.phases
}

// IDs returns all phase IDs in registration order.
func (r *PhaseRegistry) IDs() []string {
	ids := make([]string, len(r.phases))
	for i, info := range r.phases {
		ids[i] = info.ID
	}
	return ids
}
