package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"dronesim/pkg/model"
)

// MissionResponse describes the current mission run.
type MissionResponse struct {
	MissionID       int64            `json:"mission_id"`
	RunID           string           `json:"run_id,omitempty"`
	Status          string           `json:"status"`
	CurrentWaypoint int              `json:"current_waypoint"`
	TotalWaypoints  int              `json:"total_waypoints"`
	Progress        float64          `json:"progress"`
	RouteLengthM    float64          `json:"route_length_m"`
	RouteLength     string           `json:"route_length"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	Waypoints       []model.Waypoint `json:"waypoints"`
}

type MissionHandler struct {
	sim Simulator
}

func NewMissionHandler(s Simulator) *MissionHandler {
	return &MissionHandler{sim: s}
}

func (h *MissionHandler) HandleMission(w http.ResponseWriter, r *http.Request) {
	snap := h.sim.Snapshot()
	resp := MissionResponse{
		MissionID:       snap.MissionID,
		RunID:           snap.RunID,
		Status:          string(snap.Status),
		CurrentWaypoint: snap.CurrentWaypoint,
		TotalWaypoints:  snap.TotalWaypoints,
		Progress:        model.RoundTo(snap.Progress, 1),
		RouteLengthM:    model.RoundTo(snap.RouteLengthM, 1),
		RouteLength:     humanize.SIWithDigits(snap.RouteLengthM, 1, "m"),
		Waypoints:       snap.Waypoints,
	}
	if !snap.StartedAt.IsZero() {
		started := snap.StartedAt.UTC()
		resp.StartedAt = &started
	}
	if resp.Waypoints == nil {
		resp.Waypoints = []model.Waypoint{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleCommand accepts the data object of a command message and queues it
// on the simulator, exactly as if it had arrived over the link.
func (h *MissionHandler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var cmd model.Command
	if err := json.Unmarshal(body, &cmd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid command: "+err.Error())
		return
	}

	switch cmd.Action {
	case model.ActionStart, model.ActionPause, model.ActionResume, model.ActionAbort:
	default:
		writeError(w, http.StatusBadRequest, "unknown action: "+cmd.Action)
		return
	}

	if !h.sim.Submit(cmd) {
		writeError(w, http.StatusServiceUnavailable, "command queue full")
		return
	}
	slog.Info("Command submitted via API", "action", cmd.Action)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// BatteryRequest overrides the battery level for fault testing.
type BatteryRequest struct {
	Percent *float64 `json:"percent"`
}

func (h *MissionHandler) HandleBattery(w http.ResponseWriter, r *http.Request) {
	var req BatteryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Percent == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"percent\": <0-100>}")
		return
	}
	h.sim.SetBattery(*req.Percent)
	slog.Warn("Battery level overridden via API", "percent", *req.Percent)
	writeJSON(w, http.StatusOK, map[string]float64{"percent": *req.Percent})
}
