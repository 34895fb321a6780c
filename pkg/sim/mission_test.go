package sim

import (
	"testing"
	"time"

	"dronesim/pkg/model"
)

func TestStatusTransitions(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name   string
		from   Status
		apply  func(r *MissionRun) bool
		ok     bool
		expect Status
	}{
		{"Pause running", StatusRunning, (*MissionRun).Pause, true, StatusPaused},
		{"Pause paused", StatusPaused, (*MissionRun).Pause, false, StatusPaused},
		{"Resume paused", StatusPaused, (*MissionRun).Resume, true, StatusRunning},
		{"Resume running", StatusRunning, (*MissionRun).Resume, false, StatusRunning},
		{"Resume completed", StatusCompleted, (*MissionRun).Resume, false, StatusCompleted},
		{"Abort running", StatusRunning, func(r *MissionRun) bool { return r.Abort(now) }, true, StatusAborted},
		{"Abort paused", StatusPaused, func(r *MissionRun) bool { return r.Abort(now) }, true, StatusAborted},
		{"Abort completed", StatusCompleted, func(r *MissionRun) bool { return r.Abort(now) }, false, StatusCompleted},
		{"Abort aborted", StatusAborted, func(r *MissionRun) bool { return r.Abort(now) }, false, StatusAborted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &MissionRun{Status: tt.from}
			if got := tt.apply(r); got != tt.ok {
				t.Errorf("transition ok = %v, want %v", got, tt.ok)
			}
			if r.Status != tt.expect {
				t.Errorf("status = %s, want %s", r.Status, tt.expect)
			}
		})
	}
}

func TestStatus_CanStart(t *testing.T) {
	for st, want := range map[Status]bool{
		StatusIdle:      true,
		StatusRunning:   false,
		StatusPaused:    false,
		StatusCompleted: true,
		StatusAborted:   true,
	} {
		if got := st.CanStart(); got != want {
			t.Errorf("%s.CanStart() = %v, want %v", st, got, want)
		}
	}
}

func TestNewMissionRun(t *testing.T) {
	d := model.MissionDescriptor{
		MissionID: 12,
		Waypoints: []model.Waypoint{
			{Latitude: 40.0, Longitude: -74.0, AltitudeM: 30},
			{Latitude: 91, Longitude: 0},
			{Latitude: 40.001, Longitude: -74.0, AltitudeM: 30, Completed: true},
		},
	}

	r, dropped, err := NewMissionRun(d, time.Now())
	if err != nil {
		t.Fatalf("NewMissionRun() error = %v", err)
	}
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	if r.Total() != 2 || r.Status != StatusRunning || r.Cursor != 0 {
		t.Errorf("unexpected run: total=%d status=%s cursor=%d", r.Total(), r.Status, r.Cursor)
	}
	if r.Waypoints[1].Completed {
		t.Error("completed flag carried over from descriptor")
	}
	if r.RunID == "" {
		t.Error("run id not assigned")
	}
	if r.Route.LengthM < 100 || r.Route.LengthM > 120 {
		t.Errorf("route length = %.1f, want ~111m", r.Route.LengthM)
	}

	if done := r.complete(); done {
		t.Error("complete() reported exhaustion after first waypoint")
	}
	if r.Progress() != 50 {
		t.Errorf("Progress() = %v, want 50", r.Progress())
	}
	if done := r.complete(); !done {
		t.Error("complete() did not report exhaustion")
	}
	if r.Target() != nil {
		t.Error("Target() should be nil once exhausted")
	}
	if !r.Waypoints[0].Completed || !r.Waypoints[1].Completed {
		t.Error("waypoints not marked completed")
	}

	if _, _, err := NewMissionRun(model.MissionDescriptor{}, time.Now()); err == nil {
		t.Error("expected error for empty descriptor")
	}
}
