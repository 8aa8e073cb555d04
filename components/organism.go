package components

// LifeStage is an animal's phase in its behavioural state machine.
type LifeStage uint8

const (
	Unborn LifeStage = iota
	Active
	Starved
	Predated
	Reproducing
	Pupa
	Satiated
	Handling
	Diapause
	Background
	Senesced
	Shocked

	NumLifeStages
)

// IsTerminal reports whether the stage ends the animal's life. Terminal
// animals stay in the tree until the purge pass.
func (s LifeStage) IsTerminal() bool {
	switch s {
	case Starved, Predated, Background, Senesced, Shocked:
		return true
	}
	return false
}

// Gender of an animal.
type Gender uint8

const (
	Female Gender = iota
	Male
	Hermaphrodite

	NumGenders
)

// HuntingMode classifies how a species catches animal prey.
type HuntingMode uint8

const (
	DoesNotHunt HuntingMode = iota
	SitAndWait
	ActiveHunting
)

// Animal is the identity and life-history state of one individual.
type Animal struct {
	ID      uint64
	Species SpeciesID
	Gender  Gender
	Instar  int // 1-based
	Stage   LifeStage

	DryMass           float64
	FoodMass          float64 // eaten this step, not yet assimilated
	AssimilatedMass   float64 // assimilated this step, not yet spent
	RemainingVoracity float64

	AgeDays          int
	DevelopmentTimer int // days until hatching
	PupaTimer        int
	HandlingTimer    int
	DiapauseSteps    int

	PredatorID uint64
	MotherID   uint64
	FatherID   uint64

	Encounters int
	Predations int
	Offspring  int

	// LastActionStep is the step in which the animal last moved; it keeps a
	// migrating animal from acting twice in one step.
	LastActionStep int
}

// IsAlive reports whether the animal has not reached a terminal stage.
func (a *Animal) IsAlive() bool {
	return !a.Stage.IsTerminal()
}
