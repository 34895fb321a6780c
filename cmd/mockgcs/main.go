// Command mockgcs is a minimal ground control station for local testing. It
// accepts the simulator's websocket, starts a mission and prints the stream.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"dronesim/pkg/geo"
	"dronesim/pkg/model"
)

var (
	addr        = flag.String("addr", "localhost:8000", "Listen address")
	missionFile = flag.String("mission", "", "Mission descriptor JSON (default: a square around the start point)")
	side        = flag.Float64("side", 200, "Side length in meters of the default square mission")
	every       = flag.Int("every", 10, "Print every Nth telemetry frame")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	flag.Parse()

	mission, err := loadMission()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load mission: %v\n", err)
		os.Exit(1)
	}

	http.HandleFunc("/ws/simulator", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("Upgrade failed", "error", err)
			return
		}
		defer conn.Close()
		serve(conn, mission)
	})

	slog.Info("Mock ground station listening", "addr", *addr, "path", "/ws/simulator")
	if err := http.ListenAndServe(*addr, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		os.Exit(1)
	}
}

func loadMission() (model.MissionDescriptor, error) {
	if *missionFile == "" {
		return squareMission(geo.Point{Lat: 40.7128, Lon: -74.0060}, *side), nil
	}
	var d model.MissionDescriptor
	data, err := os.ReadFile(*missionFile)
	if err != nil {
		return d, err
	}
	return d, json.Unmarshal(data, &d)
}

// squareMission flies a closed square at 50 m starting and ending at origin.
func squareMission(origin geo.Point, sideM float64) model.MissionDescriptor {
	corners := []geo.Point{
		origin,
		geo.Offset(origin, sideM, 0),
		geo.Offset(origin, sideM, sideM),
		geo.Offset(origin, 0, sideM),
		origin,
	}
	d := model.MissionDescriptor{MissionID: time.Now().Unix() % 100000}
	for _, c := range corners {
		d.Waypoints = append(d.Waypoints, model.Waypoint{Latitude: c.Lat, Longitude: c.Lon, AltitudeM: 50})
	}
	return d
}

func serve(conn *websocket.Conn, d model.MissionDescriptor) {
	slog.Info("Simulator connected", "remote", conn.RemoteAddr().String())

	id := d.MissionID
	msg, err := model.NewEnvelope(model.TypeCommand, model.Command{Action: model.ActionStart, MissionID: &id, MissionDescriptor: d})
	if err != nil {
		slog.Error("Failed to encode start command", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		slog.Error("Failed to send start command", "error", err)
		return
	}
	route := make([]geo.Point, len(d.Waypoints))
	for i, wp := range d.Waypoints {
		route[i] = geo.Point{Lat: wp.Latitude, Lon: wp.Longitude}
	}
	slog.Info("Mission sent", "mission_id", id, "waypoints", len(d.Waypoints),
		"route", humanize.SIWithDigits(geo.SummarizeRoute(route).LengthM, 1, "m"))

	var frames int
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			slog.Info("Simulator disconnected", "frames", humanize.Comma(int64(frames)), "error", err)
			return
		}
		var env model.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			slog.Warn("Malformed message", "error", err)
			continue
		}

		switch env.Type {
		case model.TypeTelemetry:
			frames++
			if *every > 0 && frames%*every != 0 {
				continue
			}
			var t model.Telemetry
			if err := json.Unmarshal(env.Data, &t); err != nil {
				slog.Warn("Malformed telemetry", "error", err)
				continue
			}
			fmt.Printf("%s  %.6f,%.6f  alt %s  speed %.1f m/s  hdg %05.1f  batt %.1f%%  sats %d\n",
				t.Timestamp.Time().Format("15:04:05.000"), t.Latitude, t.Longitude,
				humanize.SIWithDigits(t.AltitudeM, 1, "m"), t.SpeedMS, t.HeadingDeg,
				t.BatteryPercent, t.SatellitesVisible)
		case model.TypeMissionStatus:
			var ev model.StatusEvent
			if err := json.Unmarshal(env.Data, &ev); err != nil {
				slog.Warn("Malformed status", "error", err)
				continue
			}
			fmt.Printf(">> [%s] %s (%d/%d) %s\n", ev.Level, ev.Status, ev.CurrentWaypoint, ev.TotalWaypoints, ev.Message)
		default:
			slog.Debug("Ignoring message", "type", env.Type)
		}
	}
}
