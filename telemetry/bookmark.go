package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkExtinction      BookmarkType = "extinction"
	BookmarkPopulationCrash BookmarkType = "population_crash"
	BookmarkPredationSpike  BookmarkType = "predation_spike"
	BookmarkStableEcosystem BookmarkType = "stable_ecosystem"
)

// Bookmark marks a notable moment of a run.
type Bookmark struct {
	Type        BookmarkType `csv:"type" json:"type"`
	Day         int          `csv:"day" json:"day"`
	Description string       `csv:"description" json:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"day", b.Day,
		"description", b.Description,
	)
}

// BookmarkDetector detects notable moments from successive windows.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	peakAnimals        int // peak population since the last crash
	lastSpeciesAlive   int
	stableWindowsCount int // consecutive windows with a stable population
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for stable ecosystem detection
	}
	return &BookmarkDetector{
		history:          make([]WindowStats, historySize),
		historySize:      historySize,
		lastSpeciesAlive: -1,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if b := bd.checkExtinction(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkPopulationCrash(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkPredationSpike(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkStableEcosystem(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	bd.addToHistory(stats)
	if stats.Animals > bd.peakAnimals {
		bd.peakAnimals = stats.Animals
	}
	bd.lastSpeciesAlive = stats.SpeciesAlive

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

// recent returns the stored windows, oldest first.
func (bd *BookmarkDetector) recent() []WindowStats {
	if !bd.historyFull {
		return bd.history[:bd.historyIdx]
	}
	out := make([]WindowStats, 0, bd.historySize)
	out = append(out, bd.history[bd.historyIdx:]...)
	return append(out, bd.history[:bd.historyIdx]...)
}

func (bd *BookmarkDetector) checkExtinction(stats WindowStats) *Bookmark {
	if bd.lastSpeciesAlive < 0 || stats.SpeciesAlive >= bd.lastSpeciesAlive {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkExtinction,
		Day:         stats.WindowEndDay,
		Description: fmt.Sprintf("Species alive dropped from %d to %d", bd.lastSpeciesAlive, stats.SpeciesAlive),
	}
}

func (bd *BookmarkDetector) checkPopulationCrash(stats WindowStats) *Bookmark {
	if bd.peakAnimals == 0 {
		return nil
	}

	drop := 1.0 - float64(stats.Animals)/float64(bd.peakAnimals)
	if drop > 0.30 && stats.Animals < bd.peakAnimals-10 {
		oldPeak := bd.peakAnimals
		bd.peakAnimals = stats.Animals

		return &Bookmark{
			Type:        BookmarkPopulationCrash,
			Day:         stats.WindowEndDay,
			Description: fmt.Sprintf("Population crashed %.0f%% from peak %d to %d", drop*100, oldPeak, stats.Animals),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkPredationSpike(stats WindowStats) *Bookmark {
	history := bd.recent()
	if len(history) < 3 {
		return nil
	}

	var predations, encounters int
	for _, h := range history {
		predations += h.Predations
		encounters += h.Encounters
	}
	if encounters == 0 || stats.Encounters == 0 {
		return nil
	}

	avg := float64(predations) / float64(encounters)
	if avg == 0 {
		return nil
	}
	if stats.PredationRate > avg*2.0 && stats.Predations >= 3 {
		return &Bookmark{
			Type:        BookmarkPredationSpike,
			Day:         stats.WindowEndDay,
			Description: fmt.Sprintf("Predation rate %.2f is %.1fx average (%.2f)", stats.PredationRate, stats.PredationRate/avg, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkStableEcosystem(stats WindowStats) *Bookmark {
	if stats.Animals < 10 || stats.SpeciesAlive < 2 {
		bd.stableWindowsCount = 0
		return nil
	}

	history := bd.recent()
	if len(history) < 4 {
		return nil
	}

	last := history[len(history)-4:]
	var sum float64
	for _, h := range last {
		sum += float64(h.Animals)
	}
	mean := sum / 4

	var variance float64
	for _, h := range last {
		d := float64(h.Animals) - mean
		variance += d * d
	}
	variance /= 4

	// CV^2 < 0.04 means CV < 0.2
	if mean > 0 && variance/(mean*mean) < 0.04 {
		bd.stableWindowsCount++
	} else {
		bd.stableWindowsCount = 0
	}

	if bd.stableWindowsCount == 5 {
		return &Bookmark{
			Type:        BookmarkStableEcosystem,
			Day:         stats.WindowEndDay,
			Description: fmt.Sprintf("Stable community of %d animals in %d species over 5+ windows", stats.Animals, stats.SpeciesAlive),
		}
	}
	return nil
}
