package components

import "fmt"

// LifeStageNames returns the display names for all life stages.
// The order matches the LifeStage constants.
func LifeStageNames() []string {
	return []string{
		"unborn", "active", "starved", "predated", "reproducing", "pupa",
		"satiated", "handling", "diapause", "background", "senesced", "shocked",
	}
}

// String returns the display name for a LifeStage.
func (s LifeStage) String() string {
	names := LifeStageNames()
	if int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// ParseLifeStage returns the stage with the given name.
func ParseLifeStage(name string) (LifeStage, error) {
	for i, n := range LifeStageNames() {
		if n == name {
			return LifeStage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown life stage %q", name)
}

// GenderNames returns the display names for all genders.
func GenderNames() []string {
	return []string{"female", "male", "hermaphrodite"}
}

// String returns the display name for a Gender.
func (g Gender) String() string {
	names := GenderNames()
	if int(g) < len(names) {
		return names[g]
	}
	return "unknown"
}

// HuntingModeNames returns the configuration names for all hunting modes.
func HuntingModeNames() []string {
	return []string{"does_not_hunt", "sit_and_wait", "active_hunting"}
}

// String returns the configuration name for a HuntingMode.
func (m HuntingMode) String() string {
	names := HuntingModeNames()
	if int(m) < len(names) {
		return names[m]
	}
	return "unknown"
}

// ParseHuntingMode returns the mode with the given name. An empty name is
// DoesNotHunt.
func ParseHuntingMode(name string) (HuntingMode, error) {
	if name == "" {
		return DoesNotHunt, nil
	}
	for i, n := range HuntingModeNames() {
		if n == name {
			return HuntingMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown hunting mode %q", name)
}
