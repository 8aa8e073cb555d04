package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot is a compact JSON summary of the community on one day. It is
// written when a bookmark triggers and at the end of a run.
type Snapshot struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id"`
	Seed    uint64 `json:"seed"`
	Day     int    `json:"day"`

	Species   []SpeciesState  `json:"species"`
	Resources []ResourceState `json:"resources"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// SpeciesState summarises the living animals of one species.
type SpeciesState struct {
	Name      string         `json:"name"`
	Count     int            `json:"count"`
	MeanMass  float64        `json:"mean_mass"`
	ByStage   map[string]int `json:"by_stage"`
	ByInstar  []int          `json:"by_instar"`
	Predators int            `json:"predator_species"`
}

// ResourceState is the standing biomass of one resource species.
type ResourceState struct {
	Name    string  `json:"name"`
	Biomass float64 `json:"biomass"`
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.Day)
	if snapshot.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Day, sanitized)
	}
	name += ".json"

	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}
