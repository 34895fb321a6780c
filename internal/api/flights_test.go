package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dronesim/pkg/geo"
	"dronesim/pkg/model"
	"dronesim/pkg/store"
)

func newFlightsMux(h *FlightsHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/flights", h.HandleList)
	mux.HandleFunc("GET /api/flights/{id}", h.HandleGet)
	mux.HandleFunc("GET /api/flights/{id}/track", h.HandleTrack)
	mux.HandleFunc("GET /api/flights/{id}/events", h.HandleEvents)
	return mux
}

func sampleFlights() *fakeFlights {
	return &fakeFlights{
		flights: []store.Flight{
			{RunID: "run-1", MissionID: 1, StartedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), Waypoints: 2, FinalStatus: "completed"},
		},
		track:  []geo.Point{{Lat: 40.7128, Lon: -74.006}, {Lat: 40.7138, Lon: -74.006}},
		events: []model.StatusEvent{{Status: "started"}, {Status: "completed"}},
	}
}

func TestFlightsHandler_List(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		fake       *fakeFlights
		wantStatus int
		wantLimit  int
	}{
		{"Default", "", sampleFlights(), http.StatusOK, 20},
		{"Limit", "?limit=5", sampleFlights(), http.StatusOK, 5},
		{"LimitCapped", "?limit=100000", sampleFlights(), http.StatusOK, maxFlightsLimit},
		{"BadLimit", "?limit=abc", sampleFlights(), http.StatusBadRequest, 0},
		{"ZeroLimit", "?limit=0", sampleFlights(), http.StatusBadRequest, 0},
		{"StoreError", "", &fakeFlights{err: errBoom}, http.StatusInternalServerError, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newFlightsMux(NewFlightsHandler(tt.fake))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest("GET", "/api/flights"+tt.query, http.NoBody))

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.fake.limit != tt.wantLimit {
				t.Errorf("store limit = %d, want %d", tt.fake.limit, tt.wantLimit)
			}
			if tt.wantStatus == http.StatusOK {
				var flights []store.Flight
				if err := json.NewDecoder(w.Body).Decode(&flights); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if len(flights) != 1 || flights[0].RunID != "run-1" {
					t.Errorf("unexpected flights: %+v", flights)
				}
			}
		})
	}
}

func TestFlightsHandler_Get(t *testing.T) {
	mux := newFlightsMux(NewFlightsHandler(sampleFlights()))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/api/flights/run-1", http.NoBody))
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d", w.Code)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/api/flights/unknown", http.NoBody))
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown flight: got status %d, want 404", w.Code)
	}
}

func TestFlightsHandler_Track(t *testing.T) {
	mux := newFlightsMux(NewFlightsHandler(sampleFlights()))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/api/flights/run-1/track", http.NoBody))
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string      `json:"type"`
				Coordinates [][]float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.NewDecoder(w.Body).Decode(&fc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 1 {
		t.Fatalf("unexpected collection: %+v", fc)
	}
	f := fc.Features[0]
	if f.Geometry.Type != "LineString" || len(f.Geometry.Coordinates) != 2 {
		t.Errorf("unexpected geometry: %+v", f.Geometry)
	}
	if f.Properties["run_id"] != "run-1" {
		t.Errorf("unexpected properties: %v", f.Properties)
	}
	if l, _ := f.Properties["length_m"].(float64); l < 100 || l > 120 {
		t.Errorf("length_m = %v, want ~111", f.Properties["length_m"])
	}
}

func TestFlightsHandler_EmptyTrack(t *testing.T) {
	fake := sampleFlights()
	fake.track = nil
	mux := newFlightsMux(NewFlightsHandler(fake))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/api/flights/run-1/track", http.NoBody))

	var fc struct {
		Features []json.RawMessage `json:"features"`
	}
	if err := json.NewDecoder(w.Body).Decode(&fc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(fc.Features) != 0 {
		t.Errorf("expected no features, got %d", len(fc.Features))
	}
}

func TestFlightsHandler_Events(t *testing.T) {
	mux := newFlightsMux(NewFlightsHandler(sampleFlights()))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/api/flights/run-1/events", http.NoBody))
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d", w.Code)
	}
	var events []model.StatusEvent
	if err := json.NewDecoder(w.Body).Decode(&events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 2 || events[1].Status != "completed" {
		t.Errorf("unexpected events: %+v", events)
	}
}
