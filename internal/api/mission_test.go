package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dronesim/pkg/model"
	"dronesim/pkg/sim"
)

func TestMissionHandler_HandleMission(t *testing.T) {
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fs := &fakeSim{snap: sim.Snapshot{
		Status:          sim.StatusRunning,
		MissionID:       7,
		RunID:           "run-1",
		CurrentWaypoint: 1,
		TotalWaypoints:  4,
		Progress:        25,
		RouteLengthM:    1234.56,
		StartedAt:       started,
	}}
	h := NewMissionHandler(fs)

	w := httptest.NewRecorder()
	h.HandleMission(w, httptest.NewRequest("GET", "/api/mission", http.NoBody))

	var resp MissionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.MissionID != 7 || resp.Status != "running" || resp.CurrentWaypoint != 1 || resp.TotalWaypoints != 4 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.RouteLengthM != 1234.6 || resp.RouteLength != "1.2 km" {
		t.Errorf("route length = %v / %q", resp.RouteLengthM, resp.RouteLength)
	}
	if resp.StartedAt == nil || !resp.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v", resp.StartedAt)
	}
	if resp.Waypoints == nil {
		t.Error("waypoints should be an empty list, not null")
	}
}

func TestMissionHandler_HandleCommand(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		accept     bool
		wantStatus int
		wantAction string
	}{
		{
			name:       "Start",
			body:       `{"action":"start","mission_id":3,"waypoints":[{"lat":40.7,"lng":-74.0,"alt":50}]}`,
			accept:     true,
			wantStatus: http.StatusAccepted,
			wantAction: model.ActionStart,
		},
		{
			name:       "Pause",
			body:       `{"action":"pause"}`,
			accept:     true,
			wantStatus: http.StatusAccepted,
			wantAction: model.ActionPause,
		},
		{
			name:       "UnknownAction",
			body:       `{"action":"land"}`,
			accept:     true,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "MalformedJSON",
			body:       `{"action":`,
			accept:     true,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "QueueFull",
			body:       `{"action":"abort"}`,
			accept:     false,
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fakeSim{accept: tt.accept}
			h := NewMissionHandler(fs)

			req := httptest.NewRequest("POST", "/api/command", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			h.HandleCommand(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantAction == "" {
				if len(fs.commands) != 0 {
					t.Errorf("expected no commands submitted, got %d", len(fs.commands))
				}
				return
			}
			if len(fs.commands) != 1 || fs.commands[0].Action != tt.wantAction {
				t.Fatalf("submitted %+v", fs.commands)
			}
		})
	}
}

func TestMissionHandler_HandleCommand_StartPayload(t *testing.T) {
	fs := &fakeSim{accept: true}
	h := NewMissionHandler(fs)

	body := `{"action":"start","mission_id":9,"waypoints":[{"latitude":1,"longitude":2,"altitude":30},{"lat":3,"lon":4}]}`
	w := httptest.NewRecorder()
	h.HandleCommand(w, httptest.NewRequest("POST", "/api/command", bytes.NewBufferString(body)))

	if w.Code != http.StatusAccepted {
		t.Fatalf("got status %d", w.Code)
	}
	cmd := fs.commands[0]
	if cmd.MissionDescriptor.MissionID != 9 || len(cmd.Waypoints) != 2 {
		t.Fatalf("unexpected descriptor: %+v", cmd.MissionDescriptor)
	}
	if cmd.Waypoints[0].AltitudeM != 30 || cmd.Waypoints[1].Longitude != 4 {
		t.Errorf("waypoint aliases not decoded: %+v", cmd.Waypoints)
	}
}

func TestMissionHandler_HandleBattery(t *testing.T) {
	fs := &fakeSim{}
	h := NewMissionHandler(fs)

	w := httptest.NewRecorder()
	h.HandleBattery(w, httptest.NewRequest("POST", "/api/fault/battery", bytes.NewBufferString(`{"percent": 3}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d", w.Code)
	}
	if fs.battery == nil || *fs.battery != 3 {
		t.Errorf("battery not overridden: %v", fs.battery)
	}

	w = httptest.NewRecorder()
	h.HandleBattery(w, httptest.NewRequest("POST", "/api/fault/battery", bytes.NewBufferString(`{}`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing percent: got status %d, want 400", w.Code)
	}
}
