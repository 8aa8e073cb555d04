package systems

import (
	"math"
	"math/rand/v2"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/traits"
)

// Offspring describes one egg laid by a mother.
type Offspring struct {
	Genome           traits.Genome
	Gender           components.Gender
	DryMass          float64
	DevelopmentTimer int
	MotherID         uint64
	FatherID         uint64
}

// ClutchSize returns how many eggs a reproducing female lays: the species
// clutch size, limited by how many eggs her reproductive mass reserve can
// pay for, and at least one.
func ClutchSize(sp *components.AnimalSpecies, ph *components.Phenotype) int {
	n := sp.ClutchSize
	if emf := ph.Trait(traits.EggMassFraction); emf > 0 {
		n = min(n, int(math.Floor(ph.Trait(traits.ReproductionMassFraction)/emf)))
	}
	return max(n, 1)
}

// Breed lays a clutch. father may be nil for parthenogenetic species. The
// mother's mass is reduced by the eggs she lays.
func Breed(mother *components.Animal, motherPh *components.Phenotype, father *components.Animal, fatherPh *components.Phenotype,
	sp *components.AnimalSpecies, rng *rand.Rand) []Offspring {
	n := ClutchSize(sp, motherPh)
	eggMass := motherPh.Trait(traits.EggMassFraction) * mother.DryMass
	timer := max(1, int(math.Round(motherPh.Trait(traits.EggDevelopmentTime))))

	var partner *traits.Genome
	var fatherID uint64
	if father != nil && fatherPh != nil {
		partner = fatherPh.Genome
		fatherID = father.ID
	}

	out := make([]Offspring, 0, n)
	for i := 0; i < n; i++ {
		child := motherPh.Genome.Breed(partner, &sp.TraitRanges, rng, sp.MutationSigma)
		gender := components.Female
		if !sp.Parthenogenetic && rng.Float64() < sp.MaleRatio {
			gender = components.Male
		}
		out = append(out, Offspring{
			Genome:           *child,
			Gender:           gender,
			DryMass:          eggMass,
			DevelopmentTimer: timer,
			MotherID:         mother.ID,
			FatherID:         fatherID,
		})
	}
	mother.DryMass = math.Max(0, mother.DryMass-float64(n)*eggMass)
	mother.Offspring += n
	return out
}

// IsMate reports whether candidate can fertilise a female of the species.
func IsMate(candidate *components.Animal, sp *components.AnimalSpecies) bool {
	return candidate.Species == sp.ID && candidate.Gender == components.Male &&
		sp.IsMature(candidate.Instar) && candidate.IsAlive() && candidate.Stage != components.Unborn
}
