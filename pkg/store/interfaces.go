package store

import (
	"context"
	"time"

	"dronesim/pkg/geo"
	"dronesim/pkg/model"
)

// Flight is one recorded mission run.
type Flight struct {
	RunID       string     `json:"run_id"`
	MissionID   int64      `json:"mission_id"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	FinalStatus string     `json:"final_status,omitempty"`
	Waypoints   int        `json:"waypoints"`
	Samples     int        `json:"telemetry_samples"`
}

// FlightStore persists the flight log.
type FlightStore interface {
	SaveFlight(ctx context.Context, f *Flight) error
	FinishFlight(ctx context.Context, runID string, endedAt time.Time, status string) error
	InsertTelemetry(ctx context.Context, t *model.Telemetry) error
	InsertEvent(ctx context.Context, ev *model.StatusEvent) error
	ListFlights(ctx context.Context, limit int) ([]Flight, error)
	GetFlight(ctx context.Context, runID string) (*Flight, error)
	Track(ctx context.Context, runID string) ([]geo.Point, error)
	Events(ctx context.Context, runID string) ([]model.StatusEvent, error)
}
