package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dronesim/pkg/db"
	"dronesim/pkg/geo"
	"dronesim/pkg/model"
)

// SQLiteStore implements FlightStore.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(d *db.DB) *SQLiteStore {
	return &SQLiteStore{db: d}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(db.TimeLayout)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(db.TimeLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// --- Flights ---

func (s *SQLiteStore) SaveFlight(ctx context.Context, f *Flight) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flights (run_id, mission_id, started_at, waypoints)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			mission_id=excluded.mission_id, started_at=excluded.started_at, waypoints=excluded.waypoints`,
		f.RunID, f.MissionID, formatTime(f.StartedAt), f.Waypoints)
	return err
}

func (s *SQLiteStore) FinishFlight(ctx context.Context, runID string, endedAt time.Time, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE flights SET ended_at = ?, final_status = ? WHERE run_id = ?`,
		formatTime(endedAt), status, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("flight %s not found", runID)
	}
	return nil
}

const flightColumns = `f.run_id, f.mission_id, f.started_at, f.ended_at, f.final_status, f.waypoints,
	(SELECT count(*) FROM telemetry t WHERE t.run_id = f.run_id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlight(row rowScanner) (*Flight, error) {
	var f Flight
	var started string
	var ended, status sql.NullString
	if err := row.Scan(&f.RunID, &f.MissionID, &started, &ended, &status, &f.Waypoints, &f.Samples); err != nil {
		return nil, err
	}
	f.StartedAt = parseTime(started)
	if ended.Valid {
		t := parseTime(ended.String)
		f.EndedAt = &t
	}
	f.FinalStatus = status.String
	return &f, nil
}

// ListFlights returns the most recently started flights first.
func (s *SQLiteStore) ListFlights(ctx context.Context, limit int) ([]Flight, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+flightColumns+` FROM flights f ORDER BY f.started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flights := []Flight{}
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, *f)
	}
	return flights, rows.Err()
}

// GetFlight returns nil, nil when the run is unknown.
func (s *SQLiteStore) GetFlight(ctx context.Context, runID string) (*Flight, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+flightColumns+` FROM flights f WHERE f.run_id = ?`, runID)
	f, err := scanFlight(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return f, err
}

// --- Telemetry ---

func (s *SQLiteStore) InsertTelemetry(ctx context.Context, t *model.Telemetry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO telemetry (run_id, ts, lat, lon, alt, speed, battery, heading, gps_fix, sats)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, formatTime(t.Timestamp.Time()), t.Latitude, t.Longitude, t.AltitudeM,
		t.SpeedMS, t.BatteryPercent, t.HeadingDeg, t.GPSFixType, t.SatellitesVisible)
	return err
}

// Track returns the recorded positions of a run in time order.
func (s *SQLiteStore) Track(ctx context.Context, runID string) ([]geo.Point, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT lat, lon FROM telemetry WHERE run_id = ? ORDER BY ts, id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var track []geo.Point
	for rows.Next() {
		var p geo.Point
		if err := rows.Scan(&p.Lat, &p.Lon); err != nil {
			return nil, err
		}
		track = append(track, p)
	}
	return track, rows.Err()
}

// --- Events ---

func (s *SQLiteStore) InsertEvent(ctx context.Context, ev *model.StatusEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (run_id, ts, status, level, message, current, total)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.RunID, formatTime(ev.Timestamp.Time()), ev.Status, ev.Level, ev.Message,
		ev.CurrentWaypoint, ev.TotalWaypoints)
	return err
}

// Events returns the lifecycle events of a run in time order.
func (s *SQLiteStore) Events(ctx context.Context, runID string) ([]model.StatusEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.ts, e.status, e.level, e.message, e.current, e.total, COALESCE(f.mission_id, 0)
		FROM events e LEFT JOIN flights f ON f.run_id = e.run_id
		WHERE e.run_id = ? ORDER BY e.ts, e.id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []model.StatusEvent{}
	for rows.Next() {
		var ev model.StatusEvent
		var ts string
		if err := rows.Scan(&ts, &ev.Status, &ev.Level, &ev.Message, &ev.CurrentWaypoint, &ev.TotalWaypoints, &ev.MissionID); err != nil {
			return nil, err
		}
		ev.Timestamp = model.Timestamp(parseTime(ts))
		ev.RunID = runID
		events = append(events, ev)
	}
	return events, rows.Err()
}
