// Package persistence stores simulation checkpoints in SQLite.
package persistence

import (
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// FormatVersion is bumped whenever the schema changes incompatibly.
const FormatVersion = "1"

// DB wraps a SQLite connection holding one checkpoint.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a checkpoint database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "migrate")
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		run_id TEXT NOT NULL,
		seed TEXT NOT NULL,
		day INTEGER NOT NULL,
		next_animal_id INTEGER NOT NULL,
		next_priority INTEGER NOT NULL,
		rng BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS moisture_sources (
		id INTEGER PRIMARY KEY,
		temperature_cycle TEXT NOT NULL,
		humidity_cycle TEXT NOT NULL,
		max_capacity_density REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cells (
		id INTEGER PRIMARY KEY,
		kind INTEGER NOT NULL,
		parent INTEGER NOT NULL,
		pos TEXT NOT NULL,
		area TEXT NOT NULL,
		children TEXT NOT NULL,
		obstacle INTEGER NOT NULL,
		full_obstacle INTEGER NOT NULL,
		obstacle_priority INTEGER NOT NULL,
		source_id INTEGER,
		temperature REAL NOT NULL,
		humidity REAL NOT NULL,
		moisture_priority INTEGER NOT NULL,
		habitat_excluded TEXT NOT NULL,
		habitat_priority INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cell_resources (
		cell_id INTEGER NOT NULL,
		species INTEGER NOT NULL,
		biomass REAL NOT NULL,
		capacity REAL NOT NULL,
		minimum_edible REAL NOT NULL,
		priority INTEGER NOT NULL,
		PRIMARY KEY (cell_id, species)
	);

	CREATE TABLE IF NOT EXISTS animals (
		seq INTEGER PRIMARY KEY,
		id INTEGER NOT NULL,
		species INTEGER NOT NULL,
		stage INTEGER NOT NULL,
		instar INTEGER NOT NULL,
		cell INTEGER NOT NULL,
		temperature REAL NOT NULL,
		animal_json TEXT NOT NULL,
		position_json TEXT NOT NULL,
		genome_json TEXT NOT NULL,
		memory_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS predation (
		hunter INTEGER NOT NULL,
		prey INTEGER NOT NULL,
		state_json TEXT NOT NULL,
		PRIMARY KEY (hunter, prey)
	);

	CREATE INDEX IF NOT EXISTS idx_animals_cell ON animals(cell);
	CREATE INDEX IF NOT EXISTS idx_animals_species ON animals(species, stage);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", key, value)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}

// AnimalCount returns the number of stored animals.
func (db *DB) AnimalCount() (int, error) {
	var n int
	err := db.conn.Get(&n, "SELECT COUNT(*) FROM animals")
	return n, err
}

// SpeciesCounts returns stored animals per species id and life stage.
func (db *DB) SpeciesCounts() ([]StageCount, error) {
	var out []StageCount
	err := db.conn.Select(&out, `SELECT species, stage, COUNT(*) AS n FROM animals
		GROUP BY species, stage ORDER BY species, stage`)
	return out, err
}

// StageCount is one row of SpeciesCounts.
type StageCount struct {
	Species int `db:"species"`
	Stage   int `db:"stage"`
	N       int `db:"n"`
}
