package telemetry

import "testing"

func hasBookmark(bookmarks []Bookmark, typ BookmarkType) bool {
	for _, bm := range bookmarks {
		if bm.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_Extinction(t *testing.T) {
	bd := NewBookmarkDetector(10)

	if got := bd.Check(WindowStats{WindowEndDay: 10, Animals: 100, SpeciesAlive: 2}); hasBookmark(got, BookmarkExtinction) {
		t.Error("first window cannot be an extinction")
	}
	got := bd.Check(WindowStats{WindowEndDay: 20, Animals: 90, SpeciesAlive: 1})
	if !hasBookmark(got, BookmarkExtinction) {
		t.Error("expected extinction bookmark")
	}
}

func TestBookmarkDetector_PopulationCrash(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{WindowEndDay: i * 10, Animals: 100, SpeciesAlive: 2})
	}

	got := bd.Check(WindowStats{WindowEndDay: 50, Animals: 50, SpeciesAlive: 2})
	if !hasBookmark(got, BookmarkPopulationCrash) {
		t.Error("expected population_crash bookmark")
	}

	// The peak resets after a crash.
	got = bd.Check(WindowStats{WindowEndDay: 60, Animals: 45, SpeciesAlive: 2})
	if hasBookmark(got, BookmarkPopulationCrash) {
		t.Error("crash reported twice")
	}
}

func TestBookmarkDetector_PredationSpike(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{WindowEndDay: i * 10, Animals: 100, Encounters: 10, Predations: 2, PredationRate: 0.2})
	}

	got := bd.Check(WindowStats{WindowEndDay: 50, Animals: 100, Encounters: 10, Predations: 8, PredationRate: 0.8})
	if !hasBookmark(got, BookmarkPredationSpike) {
		t.Error("expected predation_spike bookmark")
	}
}

func TestBookmarkDetector_StableEcosystem(t *testing.T) {
	bd := NewBookmarkDetector(10)

	triggered := 0
	for i := 0; i < 12; i++ {
		got := bd.Check(WindowStats{WindowEndDay: i * 10, Animals: 100, SpeciesAlive: 2})
		if hasBookmark(got, BookmarkStableEcosystem) {
			triggered++
		}
	}
	if triggered != 1 {
		t.Errorf("stable_ecosystem triggered %d times, want once", triggered)
	}
}
