package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Register driver
)

// DB wraps the sql.DB connection.
type DB struct {
	*sql.DB
}

// Init opens the database and runs migrations.
func Init(path string) (*DB, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// Enable WAL mode for better concurrency and set busy timeout
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000;"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	d := &DB{db}
	// Enforce single connection to avoid SQLITE_BUSY errors during concurrent writes
	db.SetMaxOpenConns(1)

	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return d, nil
}

// PruneFlights removes flights that ended before the cutoff, with their
// telemetry and events. It returns the number of flights removed.
func (d *DB) PruneFlights(olderThan time.Duration) (int64, error) {
	deadline := time.Now().Add(-olderThan).UTC().Format(TimeLayout)

	tx, err := d.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	old := `SELECT run_id FROM flights WHERE ended_at IS NOT NULL AND ended_at < ?`
	for _, table := range []string{"telemetry", "events"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE run_id IN ("+old+")", deadline); err != nil {
			return 0, fmt.Errorf("failed to prune %s: %w", table, err)
		}
	}
	res, err := tx.Exec("DELETE FROM flights WHERE ended_at IS NOT NULL AND ended_at < ?", deadline)
	if err != nil {
		return 0, fmt.Errorf("failed to prune flights: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// TimeLayout is the sortable UTC layout used for all timestamp columns.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

func (d *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS flights (
			run_id TEXT PRIMARY KEY,
			mission_id INTEGER,
			started_at TEXT,
			ended_at TEXT,
			final_status TEXT,
			waypoints INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS telemetry (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			ts TEXT,
			lat REAL,
			lon REAL,
			alt REAL,
			speed REAL,
			battery REAL,
			heading REAL,
			gps_fix INTEGER,
			sats INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_telemetry_run ON telemetry(run_id, ts);`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			ts TEXT,
			status TEXT,
			level TEXT,
			message TEXT,
			current INTEGER,
			total INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, ts);`,
	}

	for _, q := range queries {
		if _, err := d.Exec(q); err != nil {
			return fmt.Errorf("exec error: %w query: %s", err, q)
		}
	}

	return nil
}
