package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"dronesim/pkg/geo"
	"dronesim/pkg/model"
	"dronesim/pkg/store"
)

const maxFlightsLimit = 500

// FlightReader is the read side of the flight log.
type FlightReader interface {
	ListFlights(ctx context.Context, limit int) ([]store.Flight, error)
	GetFlight(ctx context.Context, runID string) (*store.Flight, error)
	Track(ctx context.Context, runID string) ([]geo.Point, error)
	Events(ctx context.Context, runID string) ([]model.StatusEvent, error)
}

type FlightsHandler struct {
	store FlightReader
}

func NewFlightsHandler(s FlightReader) *FlightsHandler {
	return &FlightsHandler{store: s}
}

func (h *FlightsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxFlightsLimit)
	}

	flights, err := h.store.ListFlights(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list flights", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list flights")
		return
	}
	writeJSON(w, http.StatusOK, flights)
}

// lookup writes a 404 and returns nil when the flight is unknown.
func (h *FlightsHandler) lookup(w http.ResponseWriter, r *http.Request) *store.Flight {
	id := r.PathValue("id")
	f, err := h.store.GetFlight(r.Context(), id)
	if err != nil {
		slog.Error("Failed to load flight", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load flight")
		return nil
	}
	if f == nil {
		writeError(w, http.StatusNotFound, "flight not found")
		return nil
	}
	return f
}

func (h *FlightsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if f := h.lookup(w, r); f != nil {
		writeJSON(w, http.StatusOK, f)
	}
}

// HandleTrack returns the flown path as a GeoJSON FeatureCollection.
func (h *FlightsHandler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	f := h.lookup(w, r)
	if f == nil {
		return
	}
	points, err := h.store.Track(r.Context(), f.RunID)
	if err != nil {
		slog.Error("Failed to load track", "run_id", f.RunID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load track")
		return
	}

	fc := geojson.NewFeatureCollection()
	props := map[string]any{
		"run_id":     f.RunID,
		"mission_id": f.MissionID,
		"status":     f.FinalStatus,
		"length_m":   model.RoundTo(geo.SummarizeRoute(points).LengthM, 1),
	}
	if feat := geo.TrackFeature(points, props); feat != nil {
		fc.Append(feat)
	}
	w.Header().Set("Content-Type", "application/geo+json")
	data, err := fc.MarshalJSON()
	if err != nil {
		slog.Error("Failed to encode track", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(data)
}

func (h *FlightsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	f := h.lookup(w, r)
	if f == nil {
		return
	}
	events, err := h.store.Events(r.Context(), f.RunID)
	if err != nil {
		slog.Error("Failed to load events", "run_id", f.RunID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}
