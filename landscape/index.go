package landscape

import (
	"math/rand/v2"
	"slices"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/weaver/components"
)

// Key addresses one bucket of an AnimalIndex.
type Key struct {
	Stage   components.LifeStage
	Species components.SpeciesID
	Instar  int
	Gender  components.Gender
}

// SearchParams selects buckets. A nil field matches everything.
type SearchParams struct {
	Stages  []components.LifeStage
	Species []components.SpeciesID
	Instars []int
	Genders []components.Gender
}

// StageParams matches every animal in the given stages.
func StageParams(stages ...components.LifeStage) SearchParams {
	return SearchParams{Stages: stages}
}

// speciesLevel holds the instar levels of one species, indexed by instar-1.
type speciesLevel [][components.NumGenders][]ecs.Entity

// AnimalIndex stores the animals of a leaf by life stage, species, instar and
// gender, so bulk operations touch only the matching buckets. Buckets keep
// insertion order.
type AnimalIndex struct {
	stages  [components.NumLifeStages][]speciesLevel
	shape   []int // instar count per species
	count   int
	version uint64
}

// NewAnimalIndex creates an empty index for species with the given instar counts.
func NewAnimalIndex(shape []int) *AnimalIndex {
	return &AnimalIndex{shape: shape}
}

// Len returns the number of indexed animals.
func (x *AnimalIndex) Len() int { return x.count }

func (x *AnimalIndex) bucket(k Key, create bool) *[]ecs.Entity {
	if int(k.Species) >= len(x.shape) || k.Instar < 1 || k.Instar > x.shape[k.Species] || k.Gender >= components.NumGenders {
		return nil
	}
	level := x.stages[k.Stage]
	if level == nil {
		if !create {
			return nil
		}
		level = make([]speciesLevel, len(x.shape))
		x.stages[k.Stage] = level
	}
	sp := level[k.Species]
	if sp == nil {
		if !create {
			return nil
		}
		sp = make(speciesLevel, x.shape[k.Species])
		level[k.Species] = sp
	}
	return &sp[k.Instar-1][k.Gender]
}

// Bucket returns the animals stored under k. The slice must not be modified.
func (x *AnimalIndex) Bucket(k Key) []ecs.Entity {
	if b := x.bucket(k, false); b != nil {
		return *b
	}
	return nil
}

// Insert appends e to the bucket of k.
func (x *AnimalIndex) Insert(k Key, e ecs.Entity) bool {
	b := x.bucket(k, true)
	if b == nil {
		return false
	}
	*b = append(*b, e)
	x.count++
	x.version++
	return true
}

// Erase removes e from the bucket of k, keeping the order of the others.
func (x *AnimalIndex) Erase(k Key, e ecs.Entity) bool {
	b := x.bucket(k, false)
	if b == nil {
		return false
	}
	i := slices.Index(*b, e)
	if i < 0 {
		return false
	}
	*b = slices.Delete(*b, i, i+1)
	x.count--
	x.version++
	return true
}

// Move transfers e between buckets.
func (x *AnimalIndex) Move(e ecs.Entity, from, to Key) bool {
	if !x.Erase(from, e) {
		return false
	}
	return x.Insert(to, e)
}

// keys returns the bucket keys matching p. With an rng each level is shuffled
// independently; otherwise keys come in index order.
func (x *AnimalIndex) keys(p SearchParams, rng *rand.Rand) []Key {
	stages := p.Stages
	if stages == nil {
		stages = make([]components.LifeStage, components.NumLifeStages)
		for i := range stages {
			stages[i] = components.LifeStage(i)
		}
	}
	stages = shuffled(stages, rng)

	var out []Key
	for _, st := range stages {
		level := x.stages[st]
		if level == nil {
			continue
		}
		species := p.Species
		if species == nil {
			species = make([]components.SpeciesID, len(level))
			for i := range species {
				species[i] = components.SpeciesID(i)
			}
		}
		for _, s := range shuffled(species, rng) {
			if int(s) >= len(level) || level[s] == nil {
				continue
			}
			instars := p.Instars
			if instars == nil {
				instars = make([]int, len(level[s]))
				for i := range instars {
					instars[i] = i + 1
				}
			}
			for _, in := range shuffled(instars, rng) {
				if in < 1 || in > len(level[s]) {
					continue
				}
				genders := p.Genders
				if genders == nil {
					genders = []components.Gender{components.Female, components.Male, components.Hermaphrodite}
				}
				for _, g := range shuffled(genders, rng) {
					if g < components.NumGenders && len(level[s][in-1][g]) > 0 {
						out = append(out, Key{Stage: st, Species: s, Instar: in, Gender: g})
					}
				}
			}
		}
	}
	return out
}

func shuffled[T any](in []T, rng *rand.Rand) []T {
	if rng == nil || len(in) < 2 {
		return in
	}
	out := slices.Clone(in)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Count returns the number of animals matching p.
func (x *AnimalIndex) Count(p SearchParams) int {
	n := 0
	for _, k := range x.keys(p, nil) {
		n += len(x.Bucket(k))
	}
	return n
}

// Each calls fn for every animal matching p, in deterministic order, until fn
// returns false. The index must not be modified during the walk.
func (x *AnimalIndex) Each(p SearchParams, fn func(k Key, e ecs.Entity) bool) {
	for _, k := range x.keys(p, nil) {
		for _, e := range x.Bucket(k) {
			if !fn(k, e) {
				return
			}
		}
	}
}

// Apply invokes every function on each matching animal in insertion order.
// Buckets are snapshotted first, so no animal is visited twice.
func (x *AnimalIndex) Apply(p SearchParams, fns ...func(ecs.Entity) error) error {
	for _, k := range x.keys(p, nil) {
		for _, e := range slices.Clone(x.Bucket(k)) {
			for _, fn := range fns {
				if err := fn(e); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// RandomApply invokes every function on each matching animal with life stage,
// species, instar, gender and animal order independently shuffled. When an
// action changes the index, the permutation is regenerated over the animals of
// the current bucket not yet visited, so no stale position is ever used.
func (x *AnimalIndex) RandomApply(rng *rand.Rand, p SearchParams, fns ...func(ecs.Entity) error) error {
	visited := make(map[ecs.Entity]bool)
	for _, k := range x.keys(p, rng) {
		bucket := x.Bucket(k)
		perm := rng.Perm(len(bucket))
		version := x.version
		for i := 0; i < len(perm); i++ {
			if x.version != version {
				bucket = x.Bucket(k)
				perm = unvisited(bucket, visited, rng)
				version = x.version
				i = -1
				continue
			}
			e := bucket[perm[i]]
			if visited[e] {
				continue
			}
			visited[e] = true
			for _, fn := range fns {
				if err := fn(e); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// unvisited returns a shuffled permutation of the bucket positions whose
// animals have not been visited.
func unvisited(bucket []ecs.Entity, visited map[ecs.Entity]bool, rng *rand.Rand) []int {
	var idx []int
	for i, e := range bucket {
		if !visited[e] {
			idx = append(idx, i)
		}
	}
	rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	return idx
}

// clear drops every animal and returns them in index order.
func (x *AnimalIndex) clear() []ecs.Entity {
	var out []ecs.Entity
	x.Each(SearchParams{}, func(_ Key, e ecs.Entity) bool {
		out = append(out, e)
		return true
	})
	x.stages = [components.NumLifeStages][]speciesLevel{}
	x.count = 0
	x.version++
	return out
}
