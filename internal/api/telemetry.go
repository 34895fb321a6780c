package api

import (
	"net/http"

	"dronesim/pkg/model"
)

// TelemetryResponse is the API response structure.
type TelemetryResponse struct {
	Telemetry *model.Telemetry `json:"telemetry"` // nil until a mission has started
	Status    string           `json:"status"`
	Link      string           `json:"link"`
}

type TelemetryHandler struct {
	sim  Simulator
	link LinkStatus
}

func NewTelemetryHandler(s Simulator, l LinkStatus) *TelemetryHandler {
	return &TelemetryHandler{sim: s, link: l}
}

func (h *TelemetryHandler) HandleTelemetry(w http.ResponseWriter, r *http.Request) {
	snap := h.sim.Snapshot()
	resp := TelemetryResponse{
		Status: string(snap.Status),
		Link:   h.link.State(),
	}
	if snap.HasTelemetry {
		resp.Telemetry = &snap.Telemetry
	}
	writeJSON(w, http.StatusOK, resp)
}
