// Package telemetry records what happens during a run: per-window event
// counters, population and resource sweeps, bookmarks, per-phase timing and
// CSV output.
package telemetry

import "github.com/pthm-cable/weaver/components"

// EventType identifies telemetry events.
type EventType uint8

const (
	EventEncounter EventType = iota
	EventPredation
	EventBirth
	EventDeath
	EventGraze
)

// Event represents a single telemetry event.
type Event struct {
	Type     EventType
	Day      int
	AnimalID uint64
	Species  components.SpeciesID

	// Optional fields depending on event type
	TargetID uint64               // prey for encounters and predations, mother for births
	Cause    components.LifeStage // terminal stage for deaths
	Amount   float64              // dry mass eaten
}

// NewEncounterEvent creates an encounter event.
func NewEncounterEvent(day int, hunterID, preyID uint64, species components.SpeciesID) Event {
	return Event{Type: EventEncounter, Day: day, AnimalID: hunterID, Species: species, TargetID: preyID}
}

// NewPredationEvent creates a successful predation event.
func NewPredationEvent(day int, hunterID, preyID uint64, species components.SpeciesID, mass float64) Event {
	return Event{Type: EventPredation, Day: day, AnimalID: hunterID, Species: species, TargetID: preyID, Amount: mass}
}

// NewBirthEvent creates a birth event. Eggs count as born when laid.
func NewBirthEvent(day int, childID, motherID uint64, species components.SpeciesID) Event {
	return Event{Type: EventBirth, Day: day, AnimalID: childID, Species: species, TargetID: motherID}
}

// NewDeathEvent creates a death event.
func NewDeathEvent(day int, id uint64, species components.SpeciesID, cause components.LifeStage) Event {
	return Event{Type: EventDeath, Day: day, AnimalID: id, Species: species, Cause: cause}
}

// NewGrazeEvent creates a resource consumption event.
func NewGrazeEvent(day int, id uint64, species components.SpeciesID, amount float64) Event {
	return Event{Type: EventGraze, Day: day, AnimalID: id, Species: species, Amount: amount}
}
