package persistence

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/config"
	"github.com/pthm-cable/weaver/game"
	"github.com/pthm-cable/weaver/geometry"
	"github.com/pthm-cable/weaver/landscape"
	"github.com/pthm-cable/weaver/patch"
	"github.com/pthm-cable/weaver/systems"
)

type runRow struct {
	RunID        string `db:"run_id"`
	Seed         string `db:"seed"`
	Day          int    `db:"day"`
	NextAnimalID int64  `db:"next_animal_id"`
	NextPriority int64  `db:"next_priority"`
	RNG          []byte `db:"rng"`
}

type sourceRow struct {
	ID                 int     `db:"id"`
	TemperatureCycle   string  `db:"temperature_cycle"`
	HumidityCycle      string  `db:"humidity_cycle"`
	MaxCapacityDensity float64 `db:"max_capacity_density"`
}

type cellRow struct {
	ID               int32         `db:"id"`
	Kind             uint8         `db:"kind"`
	Parent           int32         `db:"parent"`
	Pos              string        `db:"pos"`
	Area             string        `db:"area"`
	Children         string        `db:"children"`
	Obstacle         bool          `db:"obstacle"`
	FullObstacle     bool          `db:"full_obstacle"`
	ObstaclePriority int           `db:"obstacle_priority"`
	SourceID         sql.NullInt64 `db:"source_id"`
	Temperature      float64       `db:"temperature"`
	Humidity         float64       `db:"humidity"`
	MoisturePriority int           `db:"moisture_priority"`
	HabitatExcluded  string        `db:"habitat_excluded"`
	HabitatPriority  int           `db:"habitat_priority"`
}

type resourceRow struct {
	CellID        int32   `db:"cell_id"`
	Species       int     `db:"species"`
	Biomass       float64 `db:"biomass"`
	Capacity      float64 `db:"capacity"`
	MinimumEdible float64 `db:"minimum_edible"`
	Priority      int     `db:"priority"`
}

type animalRow struct {
	Temperature float64 `db:"temperature"`
	Animal      string  `db:"animal_json"`
	Position    string  `db:"position_json"`
	Genome      string  `db:"genome_json"`
	Memory      string  `db:"memory_json"`
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// Only plain data structs are encoded here.
		panic(err)
	}
	return string(b)
}

// SaveCheckpoint replaces the stored state with cp in one transaction.
func (db *DB) SaveCheckpoint(cp *game.Checkpoint) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"run", "moisture_sources", "cells", "cell_resources", "animals", "predation"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return errors.Wrapf(err, "clear %s", table)
		}
	}

	if _, err := tx.Exec(`INSERT INTO run (id, run_id, seed, day, next_animal_id, next_priority, rng)
		VALUES (1, ?, ?, ?, ?, ?, ?)`,
		cp.RunID, strconv.FormatUint(cp.Seed, 10), cp.Day, int64(cp.NextAnimalID), int64(cp.NextPriority), cp.RNG); err != nil {
		return errors.Wrap(err, "insert run")
	}

	for id, src := range cp.Sources {
		if _, err := tx.Exec(`INSERT INTO moisture_sources (id, temperature_cycle, humidity_cycle, max_capacity_density)
			VALUES (?, ?, ?, ?)`,
			id, mustJSON(src.TemperatureCycle), mustJSON(src.RelativeHumidityCycle), src.MaxResourceCapacityDensity); err != nil {
			return errors.Wrapf(err, "insert moisture source %d", id)
		}
	}

	cellStmt, err := tx.Preparex(`INSERT INTO cells
		(id, kind, parent, pos, area, children, obstacle, full_obstacle, obstacle_priority,
		 source_id, temperature, humidity, moisture_priority, habitat_excluded, habitat_priority)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer cellStmt.Close()

	resStmt, err := tx.Preparex(`INSERT INTO cell_resources
		(cell_id, species, biomass, capacity, minimum_edible, priority) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer resStmt.Close()

	for i := range cp.Cells {
		c := &cp.Cells[i]
		var source sql.NullInt64
		if c.Moisture.Source != nil {
			source = sql.NullInt64{Int64: int64(c.Moisture.Source.ID), Valid: true}
		}
		children := c.Children
		if children == nil {
			children = []landscape.CellID{}
		}
		_, err := cellStmt.Exec(
			c.ID, c.Kind, c.Parent, mustJSON(c.Pos), mustJSON(c.Area), mustJSON(children),
			c.Obstacle.Obstacle, c.Obstacle.Full, c.Obstacle.Priority,
			source, c.Moisture.Temperature, c.Moisture.Humidity, c.Moisture.Priority,
			mustJSON(c.Habitat.Excluded), c.Habitat.Priority,
		)
		if err != nil {
			return errors.Wrapf(err, "insert cell %d", c.ID)
		}
		for sp, r := range c.Resources {
			if _, err := resStmt.Exec(c.ID, sp, r.Biomass, r.Capacity, r.MinimumEdible, r.Priority); err != nil {
				return errors.Wrapf(err, "insert resource %d of cell %d", sp, c.ID)
			}
		}
	}

	animalStmt, err := tx.Preparex(`INSERT INTO animals
		(seq, id, species, stage, instar, cell, temperature, animal_json, position_json, genome_json, memory_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer animalStmt.Close()

	for seq, st := range cp.Animals {
		a := &st.Animal
		_, err := animalStmt.Exec(
			seq, int64(a.ID), a.Species, a.Stage, a.Instar, st.Position.Cell, st.Temperature,
			mustJSON(a), mustJSON(st.Position), mustJSON(st.Genome), mustJSON(st.Memory),
		)
		if err != nil {
			return errors.Wrapf(err, "insert animal %d", a.ID)
		}
	}

	for _, ps := range cp.Predation {
		if _, err := tx.Exec("INSERT INTO predation (hunter, prey, state_json) VALUES (?, ?, ?)",
			ps.Hunter, ps.Prey, mustJSON(ps)); err != nil {
			return errors.Wrapf(err, "insert predation %d->%d", ps.Hunter, ps.Prey)
		}
	}

	for k, v := range map[string]string{
		"format_version": FormatVersion,
		"saved_at":       time.Now().UTC().Format(time.RFC3339),
	} {
		if _, err := tx.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadCheckpoint reads the stored state.
func (db *DB) LoadCheckpoint() (*game.Checkpoint, error) {
	version, err := db.GetMeta("format_version")
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("database holds no checkpoint")
		}
		return nil, err
	}
	if version != FormatVersion {
		return nil, errors.Errorf("checkpoint format %s, want %s", version, FormatVersion)
	}

	var run runRow
	if err := db.conn.Get(&run, "SELECT run_id, seed, day, next_animal_id, next_priority, rng FROM run WHERE id = 1"); err != nil {
		return nil, errors.Wrap(err, "read run")
	}
	seed, err := strconv.ParseUint(run.Seed, 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "parse seed")
	}
	cp := &game.Checkpoint{
		RunID:        run.RunID,
		Seed:         seed,
		Day:          run.Day,
		NextAnimalID: uint64(run.NextAnimalID),
		NextPriority: uint64(run.NextPriority),
		RNG:          run.RNG,
		Sources:      make(map[int]*patch.MoistureSource),
	}

	var sources []sourceRow
	if err := db.conn.Select(&sources, "SELECT * FROM moisture_sources ORDER BY id"); err != nil {
		return nil, errors.Wrap(err, "read moisture sources")
	}
	for _, r := range sources {
		src := &patch.MoistureSource{ID: r.ID, MaxResourceCapacityDensity: r.MaxCapacityDensity}
		if err := json.Unmarshal([]byte(r.TemperatureCycle), &src.TemperatureCycle); err != nil {
			return nil, errors.Wrapf(err, "moisture source %d", r.ID)
		}
		if err := json.Unmarshal([]byte(r.HumidityCycle), &src.RelativeHumidityCycle); err != nil {
			return nil, errors.Wrapf(err, "moisture source %d", r.ID)
		}
		cp.Sources[r.ID] = src
	}

	if err := db.loadCells(cp); err != nil {
		return nil, err
	}

	var animals []animalRow
	if err := db.conn.Select(&animals, `SELECT temperature, animal_json, position_json, genome_json, memory_json
		FROM animals ORDER BY seq`); err != nil {
		return nil, errors.Wrap(err, "read animals")
	}
	cp.Animals = make([]game.AnimalState, len(animals))
	for i, r := range animals {
		st := &cp.Animals[i]
		st.Temperature = r.Temperature
		if err := decodeAll(
			r.Animal, &st.Animal,
			r.Position, &st.Position,
			r.Genome, &st.Genome,
			r.Memory, &st.Memory,
		); err != nil {
			return nil, errors.Wrapf(err, "animal row %d", i)
		}
	}

	var states []string
	if err := db.conn.Select(&states, "SELECT state_json FROM predation ORDER BY hunter, prey"); err != nil {
		return nil, errors.Wrap(err, "read predation")
	}
	for _, s := range states {
		var ps systems.PredationState
		if err := json.Unmarshal([]byte(s), &ps); err != nil {
			return nil, errors.Wrap(err, "predation state")
		}
		cp.Predation = append(cp.Predation, ps)
	}
	return cp, nil
}

func (db *DB) loadCells(cp *game.Checkpoint) error {
	var rows []cellRow
	if err := db.conn.Select(&rows, "SELECT * FROM cells ORDER BY id"); err != nil {
		return errors.Wrap(err, "read cells")
	}
	cp.Cells = make([]landscape.Cell, len(rows))
	for i, r := range rows {
		c := &cp.Cells[i]
		c.ID = landscape.CellID(r.ID)
		c.Kind = landscape.Kind(r.Kind)
		c.Parent = landscape.CellID(r.Parent)
		c.Obstacle = landscape.ObstacleElement{Obstacle: r.Obstacle, Full: r.FullObstacle, Priority: r.ObstaclePriority}
		c.Moisture = landscape.MoistureElement{Temperature: r.Temperature, Humidity: r.Humidity, Priority: r.MoisturePriority}
		c.Habitat.Priority = r.HabitatPriority
		if r.SourceID.Valid {
			src, ok := cp.Sources[int(r.SourceID.Int64)]
			if !ok {
				return errors.Errorf("cell %d references missing moisture source %d", r.ID, r.SourceID.Int64)
			}
			c.Moisture.Source = src
		}

		var pos geometry.Point
		var area geometry.Box
		var children []landscape.CellID
		var excluded []bool
		if err := decodeAll(r.Pos, &pos, r.Area, &area, r.Children, &children, r.HabitatExcluded, &excluded); err != nil {
			return errors.Wrapf(err, "cell %d", r.ID)
		}
		c.Pos, c.Area, c.Habitat.Excluded = pos, area, excluded
		if len(children) > 0 {
			c.Children = children
		}
	}

	var resources []resourceRow
	if err := db.conn.Select(&resources, "SELECT * FROM cell_resources ORDER BY cell_id, species"); err != nil {
		return errors.Wrap(err, "read cell resources")
	}
	for _, r := range resources {
		if int(r.CellID) >= len(cp.Cells) || r.CellID < 0 {
			return errors.Errorf("resource row for unknown cell %d", r.CellID)
		}
		c := &cp.Cells[r.CellID]
		if r.Species != len(c.Resources) {
			return errors.Errorf("cell %d: resource %d out of order", r.CellID, r.Species)
		}
		c.Resources = append(c.Resources, landscape.CellResource{
			Biomass:       r.Biomass,
			Capacity:      r.Capacity,
			MinimumEdible: r.MinimumEdible,
			Priority:      r.Priority,
		})
	}
	return nil
}

// decodeAll unmarshals pairs of JSON text and destination.
func decodeAll(pairs ...any) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := json.Unmarshal([]byte(pairs[i].(string)), pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// Save writes a checkpoint of the simulation to path.
func Save(path string, sim *game.Simulation) error {
	start := time.Now()
	cp, err := sim.Checkpoint()
	if err != nil {
		return err
	}
	db, err := Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SaveCheckpoint(cp); err != nil {
		return errors.Wrapf(err, "save checkpoint to %s", path)
	}
	slog.Info("checkpoint saved",
		"path", path,
		"day", cp.Day,
		"animals", humanize.Comma(int64(len(cp.Animals))),
		"cells", humanize.Comma(int64(len(cp.Cells))),
		"took", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// Load restores a simulation from the checkpoint at path.
func Load(path string, cfg *config.Config, opts game.Options) (*game.Simulation, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	cp, err := db.LoadCheckpoint()
	if err != nil {
		return nil, errors.Wrapf(err, "load checkpoint from %s", path)
	}
	if err := checkSpecies(cfg, cp); err != nil {
		return nil, err
	}
	sim, err := game.Restore(cfg, opts, cp)
	if err != nil {
		return nil, err
	}
	slog.Info("checkpoint loaded", "path", path, "day", cp.Day, "animals", humanize.Comma(int64(len(cp.Animals))))
	return sim, nil
}

// checkSpecies rejects checkpoints written under a config with fewer species.
func checkSpecies(cfg *config.Config, cp *game.Checkpoint) error {
	nAnimals := components.SpeciesID(len(cfg.AnimalSpecies))
	for _, st := range cp.Animals {
		if st.Animal.Species >= nAnimals {
			return errors.Errorf("checkpoint animal %d has species %d, config defines %d", st.Animal.ID, st.Animal.Species, nAnimals)
		}
	}
	for _, c := range cp.Cells {
		if len(c.Resources) != len(cfg.ResourceSpecies) {
			return errors.Errorf("checkpoint cell %d has %d resources, config defines %d", c.ID, len(c.Resources), len(cfg.ResourceSpecies))
		}
		if len(c.Habitat.Excluded) != 0 && len(c.Habitat.Excluded) != len(cfg.AnimalSpecies) {
			return errors.Errorf("checkpoint cell %d has %d habitat flags, config defines %d animal species", c.ID, len(c.Habitat.Excluded), len(cfg.AnimalSpecies))
		}
	}
	return nil
}
