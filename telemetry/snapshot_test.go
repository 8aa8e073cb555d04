package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"
)

func TestSnapshotSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()

	snapshot := &Snapshot{
		Version: SnapshotVersion,
		RunID:   "run-1",
		Seed:    42,
		Day:     30,
		Species: []SpeciesState{
			{Name: "mite", Count: 12, MeanMass: 0.02, ByStage: map[string]int{"active": 10, "unborn": 2}, ByInstar: []int{6, 4, 2}},
		},
		Resources: []ResourceState{{Name: "fungus", Biomass: 120.5}},
		Bookmark:  &Bookmark{Type: BookmarkPopulationCrash, Day: 30, Description: "test"},
	}

	path, err := SaveSnapshot(snapshot, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if !strings.HasSuffix(path, "snapshot_30_population_crash.json") {
		t.Errorf("unexpected snapshot path %s", path)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if loaded.RunID != "run-1" || loaded.Seed != 42 || loaded.Day != 30 {
		t.Errorf("header mismatch: %+v", loaded)
	}
	if len(loaded.Species) != 1 || loaded.Species[0].ByStage["active"] != 10 || loaded.Species[0].ByInstar[2] != 2 {
		t.Errorf("species mismatch: %+v", loaded.Species)
	}
	if loaded.Bookmark == nil || loaded.Bookmark.Type != BookmarkPopulationCrash {
		t.Errorf("bookmark mismatch: %+v", loaded.Bookmark)
	}
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	if _, err := LoadSnapshot(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing snapshot")
	}
}

// ---------- output ----------

func TestOutputManager_WritesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}

	for day := 1; day <= 3; day++ {
		if err := om.WriteResources([]ResourceRow{{Day: day, Species: "fungus", Biomass: float64(day)}}); err != nil {
			t.Fatalf("WriteResources: %v", err)
		}
	}
	if err := om.WriteWindow(WindowStats{WindowEndDay: 10, Animals: 5}); err != nil {
		t.Fatalf("WriteWindow: %v", err)
	}
	if err := om.WriteCells(3, []CellRow{{Day: 3, Cell: 1, Kind: "leaf"}}); err != nil {
		t.Fatalf("WriteCells: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "resources.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var rows []ResourceRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		t.Fatalf("reading resources.csv: %v", err)
	}
	if len(rows) != 3 || rows[2].Day != 3 || rows[2].Biomass != 3 {
		t.Errorf("unexpected rows %+v", rows)
	}

	if _, err := os.Stat(filepath.Join(dir, "cells_3.csv")); err != nil {
		t.Errorf("cells snapshot missing: %v", err)
	}
}

func TestOutputManager_DisabledIsNil(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("expected nil manager, got %v, %v", om, err)
	}
	if err := om.WriteWindow(WindowStats{}); err != nil {
		t.Errorf("nil manager write: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Errorf("nil manager close: %v", err)
	}
}
