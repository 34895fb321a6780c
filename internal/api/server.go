package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"dronesim/pkg/link"
	"dronesim/pkg/model"
	"dronesim/pkg/sim"
	"dronesim/pkg/version"
)

// Simulator is the part of sim.Simulator the API depends on.
type Simulator interface {
	Snapshot() sim.Snapshot
	Submit(cmd model.Command) bool
	SetBattery(pct float64)
}

// LinkStatus reports the control-plane connection. Implemented by link.Client.
type LinkStatus interface {
	State() string
	Stats() link.Stats
	LastError() error
}

// NewServer creates and configures the HTTP server.
// flights may be nil when the flight recorder is disabled.
func NewServer(addr string, tel *TelemetryHandler, mission *MissionHandler, flights *FlightsHandler, stats *StatsHandler, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health Endpoint
	mux.HandleFunc("GET /health", handleHealth)

	// 2. Telemetry Endpoint
	mux.HandleFunc("GET /api/telemetry", tel.HandleTelemetry)

	// 2b. Version Endpoint
	mux.HandleFunc("GET /api/version", handleVersion)

	// 2c. Mission Endpoints
	mux.HandleFunc("GET /api/mission", mission.HandleMission)
	mux.HandleFunc("POST /api/command", mission.HandleCommand)
	mux.HandleFunc("POST /api/fault/battery", mission.HandleBattery)

	// 2d. Stats Endpoint
	mux.Handle("GET /api/stats", stats)

	// 2e. Logs Endpoint
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)

	// 2f. Flight Log Endpoints
	if flights != nil {
		mux.HandleFunc("GET /api/flights", flights.HandleList)
		mux.HandleFunc("GET /api/flights/{id}", flights.HandleGet)
		mux.HandleFunc("GET /api/flights/{id}/track", flights.HandleTrack)
		mux.HandleFunc("GET /api/flights/{id}/events", flights.HandleEvents)
	}

	// 3. Shutdown Endpoint
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
