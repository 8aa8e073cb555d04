package game

import (
	"runtime"
	"sync"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/config"
	"github.com/pthm-cable/weaver/landscape"
	"github.com/pthm-cable/weaver/systems"
)

// animalSnapshot captures what the per-animal phases need. The pointers
// address components of distinct entities, so workers never share state.
type animalSnapshot struct {
	Entity      ecs.Entity
	Animal      *components.Animal
	Phenotype   *components.Phenotype
	Species     *components.AnimalSpecies
	Temperature float64
}

// intent captures computed outputs to apply after a parallel phase.
type intent struct {
	Stage  components.LifeStage
	Instar int
}

// workChunk represents a range of animals for a worker to process.
type workChunk struct {
	start, end int
	fn         func(i0, i1 int)
}

// parallelState holds the worker pool of the per-animal phases.
type parallelState struct {
	snapshots  []animalSnapshot
	intents    []intent
	numWorkers int
	threshold  int
	enabled    bool

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

func newParallelState(cfg config.ParallelConfig) *parallelState {
	numWorkers := cfg.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	return &parallelState{
		numWorkers: numWorkers,
		threshold:  cfg.Threshold,
		enabled:    cfg.Enabled && numWorkers > 1,
		snapshots:  make([]animalSnapshot, 0, 512),
		intents:    make([]intent, 0, 512),
	}
}

// startWorkers launches persistent worker goroutines.
func (p *parallelState) startWorkers() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// stopWorkers signals all workers to exit and waits for them.
func (p *parallelState) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *parallelState) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			chunk.fn(chunk.start, chunk.end)
			p.doneChan <- struct{}{}
		}
	}
}

// run applies fn over [0, n), on the pool when n reaches the threshold.
func (p *parallelState) run(n int, fn func(i0, i1 int)) {
	if n == 0 {
		return
	}
	if !p.enabled || n < p.threshold {
		fn(0, n)
		return
	}
	p.startWorkers()

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers
	chunksDispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end, fn: fn}
		chunksDispatched++
	}

	// Wait for all chunks to complete
	for i := 0; i < chunksDispatched; i++ {
		<-p.doneChan
	}
}

// buildSnapshots collects the living, hatched animals (single-threaded).
func (s *Simulation) buildSnapshots() {
	p := s.parallel
	p.snapshots = p.snapshots[:0]

	query := s.filter.Query()
	for query.Next() {
		a, pos, ph, _ := query.Get()
		if a.Stage.IsTerminal() || a.Stage == components.Unborn {
			continue
		}
		p.snapshots = append(p.snapshots, animalSnapshot{
			Entity:      query.Entity(),
			Animal:      a,
			Phenotype:   ph,
			Species:     s.registry.Animal(a.Species),
			Temperature: s.environment(landscape.CellID(pos.Cell)).Temperature,
		})
	}

	n := len(p.snapshots)
	if cap(p.intents) < n {
		p.intents = make([]intent, n)
	}
	p.intents = p.intents[:n]
}

// assimilate digests the food of the day. The snapshot it builds is reused by
// metabolize and grow.
func (s *Simulation) assimilate() {
	s.buildSnapshots()
	snaps := s.parallel.snapshots
	s.parallel.run(len(snaps), func(i0, i1 int) {
		for i := i0; i < i1; i++ {
			systems.Assimilate(snaps[i].Animal, snaps[i].Phenotype)
		}
	})
}

// metabolize pays maintenance; starved animals are marked on one goroutine.
func (s *Simulation) metabolize() error {
	snaps, intents := s.parallel.snapshots, s.parallel.intents
	s.parallel.run(len(snaps), func(i0, i1 int) {
		for i := i0; i < i1; i++ {
			snap := &snaps[i]
			intents[i] = intent{Stage: snap.Animal.Stage, Instar: snap.Animal.Instar}
			if systems.Metabolize(snap.Animal, snap.Species, snap.Phenotype, snap.Temperature) {
				intents[i].Stage = components.Starved
			}
		}
	})
	return s.applyIntents()
}

// grow converts assimilated mass into body mass and moults.
func (s *Simulation) grow() error {
	snaps, intents := s.parallel.snapshots, s.parallel.intents
	s.parallel.run(len(snaps), func(i0, i1 int) {
		for i := i0; i < i1; i++ {
			snap := &snaps[i]
			g := systems.Grow(snap.Animal, snap.Species, snap.Phenotype)
			intents[i] = intent{Stage: g.Stage, Instar: g.Instar}
		}
	})
	return s.applyIntents()
}

// applyIntents writes instar and stage changes through the landscape so the
// cell indexes follow (single-threaded, preserves determinism).
func (s *Simulation) applyIntents() error {
	for i, snap := range s.parallel.snapshots {
		in := s.parallel.intents[i]
		if in.Instar != snap.Animal.Instar {
			if err := s.land.ChangeInstar(snap.Entity, in.Instar); err != nil {
				return err
			}
		}
		if in.Stage != snap.Animal.Stage {
			if err := s.land.ChangeStage(snap.Entity, in.Stage); err != nil {
				return err
			}
		}
	}
	return nil
}
