package systems

import (
	"log/slog"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pthm-cable/weaver/components"
)

// Profile is what a predation model needs to know about one animal.
type Profile struct {
	Mass  float64
	Speed float64
}

// size is a length proxy from dry mass.
func (p Profile) size() float64 { return math.Cbrt(p.Mass) }

// PredationModel learns, for one hunter species and one prey species, which
// body size, speed and mass combinations lead to successful attacks.
type PredationModel struct {
	Hunter *components.AnimalSpecies
	Prey   *components.AnimalSpecies

	Attempts  int
	Successes int

	minHistory    int
	hunterLogMass *components.RingBuffer[float64]
	preyLogMass   *components.RingBuffer[float64]
	sizeRatio     *components.RingBuffer[float64]
	speedRatio    *components.RingBuffer[float64]

	fitted    bool
	sizeMean  float64
	sizeSD    float64
	speedMean float64
	speedSD   float64
	mass      *distmv.Normal
	massPeak  float64
}

// NewPredationModel creates a model keeping the last historyLength successful
// attacks. Fewer than minHistory attacks fall back to the hunter's prior.
func NewPredationModel(hunter, prey *components.AnimalSpecies, historyLength, minHistory int) *PredationModel {
	return &PredationModel{
		Hunter:        hunter,
		Prey:          prey,
		minHistory:    max(minHistory, 2),
		hunterLogMass: components.NewRingBuffer[float64](historyLength),
		preyLogMass:   components.NewRingBuffer[float64](historyLength),
		sizeRatio:     components.NewRingBuffer[float64](historyLength),
		speedRatio:    components.NewRingBuffer[float64](historyLength),
	}
}

// speedRatioOf orients the speed ratio by hunting mode: an active hunter
// chases, a sit-and-wait hunter is approached.
func (m *PredationModel) speedRatioOf(h, p Profile) float64 {
	if m.Hunter.HuntingMode == components.SitAndWait {
		return p.Speed / h.Speed
	}
	return h.Speed / p.Speed
}

func valid(p Profile) bool {
	return p.Mass > 0 && p.Speed > 0 && !math.IsInf(p.Mass, 0) && !math.IsInf(p.Speed, 0)
}

// Record stores a successful attack.
func (m *PredationModel) Record(h, p Profile) {
	m.Successes++
	if !valid(h) || !valid(p) {
		return
	}
	m.hunterLogMass.Push(math.Log10(h.Mass))
	m.preyLogMass.Push(math.Log10(p.Mass))
	m.sizeRatio.Push(h.size() / p.size())
	m.speedRatio.Push(m.speedRatioOf(h, p))
}

// History returns the number of attacks in the rolling history.
func (m *PredationModel) History() int { return m.sizeRatio.Len() }

// Fitted reports whether the last Refresh fitted the history rather than
// falling back to the prior.
func (m *PredationModel) Fitted() bool { return m.fitted }

// Refresh refits the model to its history. It runs once per step.
func (m *PredationModel) Refresh() {
	m.fitted = false
	m.mass = nil
	n := m.History()
	if n < m.minHistory {
		return
	}
	m.sizeMean, m.sizeSD = stat.MeanStdDev(m.sizeRatio.Values(), nil)
	m.speedMean, m.speedSD = stat.MeanStdDev(m.speedRatio.Values(), nil)

	hl, pl := m.hunterLogMass.Values(), m.preyLogMass.Values()
	data := make([]float64, 0, 2*n)
	for i := range hl {
		data = append(data, hl[i], pl[i])
	}
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, mat.NewDense(n, 2, data), nil)
	mu := []float64{stat.Mean(hl, nil), stat.Mean(pl, nil)}
	normal, ok := distmv.NewNormal(mu, &cov, nil)
	if !ok {
		slog.Debug("singular attack covariance, using prior",
			"hunter", m.Hunter.Name, "prey", m.Prey.Name, "history", n)
		return
	}
	m.mass = normal
	m.massPeak = normal.Prob(mu)
	m.fitted = true
}

// gaussFactor is the normal density at x divided by the density at the mean.
func gaussFactor(x, mean, sd float64) float64 {
	if sd <= 1e-12 || math.IsNaN(sd) {
		return 1
	}
	d := distuv.Normal{Mu: mean, Sigma: sd}
	return d.Prob(x) / d.Prob(mean)
}

func (m *PredationModel) factors(h, p Profile) (size, speed, mass float64) {
	size, speed = 1, 1
	if m.fitted {
		size = gaussFactor(h.size()/p.size(), m.sizeMean, m.sizeSD)
		speed = gaussFactor(m.speedRatioOf(h, p), m.speedMean, m.speedSD)
		mass = 0
		if m.massPeak > 0 {
			mass = m.mass.Prob([]float64{math.Log10(h.Mass), math.Log10(p.Mass)}) / m.massPeak
		}
	} else {
		prior := m.Hunter.MassRatioPrior
		mass = gaussFactor(math.Log10(p.Mass/h.Mass), prior.Mean, prior.SD)
	}
	return size, speed, clamp01(mass)
}

func (m *PredationModel) probability(h, p Profile, ex components.Exponents) float64 {
	if !valid(h) || !valid(p) {
		slog.Warn("malformed predation input", "hunter", m.Hunter.Name, "prey", m.Prey.Name,
			"hunter_mass", h.Mass, "prey_mass", p.Mass, "hunter_speed", h.Speed, "prey_speed", p.Speed)
		return 0
	}
	size, speed, mass := m.factors(h, p)
	return clamp01(math.Pow(size, ex.SizeRatio) * math.Pow(speed, ex.SpeedRatio) * math.Pow(mass, ex.MassRatioPDF))
}

// EncounterProbability is the chance that the hunter meets the prey.
func (m *PredationModel) EncounterProbability(h, p Profile) float64 {
	if m.Hunter.HuntingMode == components.DoesNotHunt {
		return 0
	}
	return m.probability(h, p, m.Hunter.EncounterExponents)
}

// PredationProbability is the chance that an encounter ends in a kill.
func (m *PredationModel) PredationProbability(h, p Profile) float64 {
	if m.Hunter.HuntingMode == components.DoesNotHunt {
		return 0
	}
	return m.probability(h, p, m.Hunter.PredationExponents)
}

func clamp01(x float64) float64 {
	if x < 0 || math.IsNaN(x) {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

type pairKey struct {
	hunter, prey components.SpeciesID
}

// PredationModels holds one model per hunter and animal prey species pair.
type PredationModels struct {
	models map[pairKey]*PredationModel
}

// NewPredationModels creates a model for every animal entry in every diet.
func NewPredationModels(reg *components.Registry, historyLength, minHistory int) *PredationModels {
	ms := &PredationModels{models: make(map[pairKey]*PredationModel)}
	for _, hunter := range reg.Animals {
		for _, e := range hunter.Diet {
			k := pairKey{hunter.ID, e.Species}
			if e.Resource || ms.models[k] != nil {
				continue
			}
			ms.models[k] = NewPredationModel(hunter, reg.Animal(e.Species), historyLength, minHistory)
		}
	}
	return ms
}

// Get returns the model of a pair, nil when the hunter does not eat the prey.
func (ms *PredationModels) Get(hunter, prey components.SpeciesID) *PredationModel {
	return ms.models[pairKey{hunter, prey}]
}

// Refresh refits every model.
func (ms *PredationModels) Refresh() {
	for _, m := range ms.models {
		m.Refresh()
	}
}

// All returns the models ordered by hunter then prey.
func (ms *PredationModels) All() []*PredationModel {
	out := make([]*PredationModel, 0, len(ms.models))
	for _, m := range ms.models {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b *PredationModel) int {
		if a.Hunter.ID != b.Hunter.ID {
			return int(a.Hunter.ID) - int(b.Hunter.ID)
		}
		return int(a.Prey.ID) - int(b.Prey.ID)
	})
	return out
}

// PredationState is the serialisable history of one model.
type PredationState struct {
	Hunter        components.SpeciesID             `json:"hunter"`
	Prey          components.SpeciesID             `json:"prey"`
	Attempts      int                              `json:"attempts"`
	Successes     int                              `json:"successes"`
	HunterLogMass *components.RingBuffer[float64] `json:"hunter_log_mass"`
	PreyLogMass   *components.RingBuffer[float64] `json:"prey_log_mass"`
	SizeRatio     *components.RingBuffer[float64] `json:"size_ratio"`
	SpeedRatio    *components.RingBuffer[float64] `json:"speed_ratio"`
}

// States returns the history of every model.
func (ms *PredationModels) States() []PredationState {
	var out []PredationState
	for _, m := range ms.All() {
		out = append(out, PredationState{
			Hunter:        m.Hunter.ID,
			Prey:          m.Prey.ID,
			Attempts:      m.Attempts,
			Successes:     m.Successes,
			HunterLogMass: m.hunterLogMass,
			PreyLogMass:   m.preyLogMass,
			SizeRatio:     m.sizeRatio,
			SpeedRatio:    m.speedRatio,
		})
	}
	return out
}

// Restore loads saved histories and refits the models.
func (ms *PredationModels) Restore(states []PredationState) {
	for _, st := range states {
		m := ms.Get(st.Hunter, st.Prey)
		if m == nil || st.SizeRatio == nil || st.SpeedRatio == nil || st.HunterLogMass == nil || st.PreyLogMass == nil {
			continue
		}
		m.Attempts, m.Successes = st.Attempts, st.Successes
		m.hunterLogMass, m.preyLogMass = st.HunterLogMass, st.PreyLogMass
		m.sizeRatio, m.speedRatio = st.SizeRatio, st.SpeedRatio
		m.Refresh()
	}
}
