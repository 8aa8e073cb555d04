package components

import "github.com/pthm-cable/weaver/config"

// Registry holds every species of a run.
type Registry struct {
	Animals   []*AnimalSpecies
	Resources []*ResourceSpecies

	byName      map[string]*AnimalSpecies
	predatorsOf [][]SpeciesID
}

// NewRegistry builds the species registry from configuration.
func NewRegistry(cfg *config.Config) (*Registry, error) {
	r := &Registry{byName: make(map[string]*AnimalSpecies, len(cfg.AnimalSpecies))}
	for i := range cfg.ResourceSpecies {
		r.Resources = append(r.Resources, ResourceSpeciesFromConfig(SpeciesID(i), &cfg.ResourceSpecies[i]))
	}
	for i := range cfg.AnimalSpecies {
		sp, err := AnimalSpeciesFromConfig(SpeciesID(i), &cfg.AnimalSpecies[i], cfg)
		if err != nil {
			return nil, err
		}
		r.Animals = append(r.Animals, sp)
		r.byName[sp.Name] = sp
	}
	r.index()
	return r, nil
}

// index precomputes which species hunt each animal species.
func (r *Registry) index() {
	r.predatorsOf = make([][]SpeciesID, len(r.Animals))
	for _, hunter := range r.Animals {
		seen := make(map[SpeciesID]bool)
		for _, e := range hunter.Diet {
			if e.Resource || seen[e.Species] {
				continue
			}
			seen[e.Species] = true
			r.predatorsOf[e.Species] = append(r.predatorsOf[e.Species], hunter.ID)
		}
	}
}

// Animal returns the animal species with the given id.
func (r *Registry) Animal(id SpeciesID) *AnimalSpecies {
	return r.Animals[id]
}

// Resource returns the resource species with the given id.
func (r *Registry) Resource(id SpeciesID) *ResourceSpecies {
	return r.Resources[id]
}

// AnimalByName looks up an animal species by name.
func (r *Registry) AnimalByName(name string) (*AnimalSpecies, bool) {
	sp, ok := r.byName[name]
	return sp, ok
}

// PredatorsOf returns the species whose diet includes prey.
func (r *Registry) PredatorsOf(prey SpeciesID) []SpeciesID {
	return r.predatorsOf[prey]
}

// MaxInstars returns the largest instar count across species.
func (r *Registry) MaxInstars() int {
	m := 0
	for _, sp := range r.Animals {
		if sp.Instars > m {
			m = sp.Instars
		}
	}
	return m
}
