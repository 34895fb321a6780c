package sim

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"dronesim/pkg/geo"
	"dronesim/pkg/model"
)

// Status is the lifecycle state of a mission run.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
)

// Lifecycle event names carried in mission_status messages.
const (
	EventStarted         = "started"
	EventPaused          = "paused"
	EventResumed         = "resumed"
	EventAborted         = "aborted"
	EventWaypointReached = "waypoint_reached"
	EventCompleted       = "completed"
)

// Terminal reports whether no further commands except start apply.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAborted
}

// CanStart reports whether a new run may replace the current one.
func (s Status) CanStart() bool {
	return s == StatusIdle || s.Terminal()
}

// MissionRun is the execution context of one started mission.
type MissionRun struct {
	RunID     string
	MissionID int64
	Waypoints []model.Waypoint
	Cursor    int
	Status    Status
	StartedAt time.Time
	EndedAt   time.Time
	Route     geo.Route

	fence *geo.Fence
	dwell float64 // seconds hovered at the current waypoint
}

// NewMissionRun validates the descriptor and builds a running mission.
// The descriptor's waypoints are copied.
func NewMissionRun(d model.MissionDescriptor, now time.Time) (*MissionRun, int, error) {
	dropped, err := d.Normalize()
	if err != nil {
		return nil, dropped, err
	}

	var fence *geo.Fence
	if len(d.Boundary) > 0 && string(d.Boundary) != "null" {
		fence, err = geo.ParseFence(d.Boundary)
		if err != nil {
			return nil, dropped, fmt.Errorf("invalid mission boundary: %w", err)
		}
	}

	wps := make([]model.Waypoint, len(d.Waypoints))
	copy(wps, d.Waypoints)

	points := make([]geo.Point, len(wps))
	for i := range wps {
		points[i] = geo.Point{Lat: wps[i].Latitude, Lon: wps[i].Longitude}
	}

	return &MissionRun{
		RunID:     uuid.NewString(),
		MissionID: d.MissionID,
		Waypoints: wps,
		Status:    StatusRunning,
		StartedAt: now,
		Route:     geo.SummarizeRoute(points),
		fence:     fence,
	}, dropped, nil
}

// Total returns the number of waypoints.
func (r *MissionRun) Total() int { return len(r.Waypoints) }

// Progress returns the completed share in percent. Reported only; completion
// is decided by cursor exhaustion.
func (r *MissionRun) Progress() float64 {
	if len(r.Waypoints) == 0 {
		return 0
	}
	return float64(r.Cursor) / float64(len(r.Waypoints)) * 100
}

// Target returns the active waypoint, or nil once the cursor is exhausted.
func (r *MissionRun) Target() *model.Waypoint {
	if r.Cursor >= len(r.Waypoints) {
		return nil
	}
	return &r.Waypoints[r.Cursor]
}

// Inside reports whether p is within the mission boundary, if any.
func (r *MissionRun) Inside(p geo.Point) bool {
	return r.fence.Contains(p)
}

// Pause moves running to paused. It reports whether the transition happened.
func (r *MissionRun) Pause() bool {
	if r.Status != StatusRunning {
		return false
	}
	r.Status = StatusPaused
	return true
}

// Resume moves paused to running.
func (r *MissionRun) Resume() bool {
	if r.Status != StatusPaused {
		return false
	}
	r.Status = StatusRunning
	return true
}

// Abort ends a running or paused mission.
func (r *MissionRun) Abort(now time.Time) bool {
	if r.Status != StatusRunning && r.Status != StatusPaused {
		return false
	}
	r.Status = StatusAborted
	r.EndedAt = now
	return true
}

// complete marks the current waypoint done and advances the cursor.
// It reports whether the cursor is now exhausted.
func (r *MissionRun) complete() bool {
	r.Waypoints[r.Cursor].Completed = true
	r.Cursor++
	r.dwell = 0
	return r.Cursor >= len(r.Waypoints)
}

func (r *MissionRun) finish(now time.Time) {
	r.Status = StatusCompleted
	r.EndedAt = now
}
