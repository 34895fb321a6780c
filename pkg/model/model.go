package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// Message types exchanged with the control plane.
const (
	TypeCommand       = "command"
	TypeTelemetry     = "telemetry"
	TypeMissionStatus = "mission_status"
)

// Command actions.
const (
	ActionStart  = "start"
	ActionPause  = "pause"
	ActionResume = "resume"
	ActionAbort  = "abort"
)

// Status event levels.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// ErrNoWaypoints is returned when a mission descriptor has no usable waypoints.
var ErrNoWaypoints = errors.New("mission has no usable waypoints")

// Waypoint is one leg target of a mission.
type Waypoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	AltitudeM float64 `json:"altitude_m"`
	Action    string  `json:"action,omitempty"`   // "photo", "spray", "land", ...
	DurationS float64 `json:"duration_s,omitempty"` // Dwell time on arrival
	Completed bool    `json:"completed"`
}

// UnmarshalJSON accepts the short keys (lat/lng/alt) the control plane sends
// as well as the long form. Missing numeric fields default to 0.
func (w *Waypoint) UnmarshalJSON(data []byte) error {
	var raw struct {
		Lat       *float64 `json:"lat"`
		Latitude  *float64 `json:"latitude"`
		Lng       *float64 `json:"lng"`
		Lon       *float64 `json:"lon"`
		Longitude *float64 `json:"longitude"`
		Alt       *float64 `json:"alt"`
		Altitude  *float64 `json:"altitude"`
		AltitudeM *float64 `json:"altitude_m"`
		Action    string   `json:"action"`
		DurationS *float64 `json:"duration_s"`
		Duration  *float64 `json:"duration"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*w = Waypoint{
		Latitude:  firstOf(raw.Lat, raw.Latitude),
		Longitude: firstOf(raw.Lng, raw.Lon, raw.Longitude),
		AltitudeM: firstOf(raw.Alt, raw.Altitude, raw.AltitudeM),
		Action:    raw.Action,
		DurationS: firstOf(raw.DurationS, raw.Duration),
	}
	return nil
}

func firstOf(vals ...*float64) float64 {
	for _, v := range vals {
		if v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) {
			return *v
		}
	}
	return 0
}

// Usable reports whether the waypoint coordinates are within WGS84 bounds.
func (w *Waypoint) Usable() bool {
	return w.Latitude >= -90 && w.Latitude <= 90 &&
		w.Longitude >= -180 && w.Longitude <= 180
}

// MissionDescriptor is the input to a mission start.
type MissionDescriptor struct {
	MissionID int64           `json:"mission_id"`
	Waypoints []Waypoint      `json:"waypoints"`
	Boundary  json.RawMessage `json:"boundary,omitempty"` // Optional GeoJSON polygon
}

// Normalize drops unusable waypoints, clamps negative altitudes to 0 and
// resets completion flags. It returns ErrNoWaypoints if nothing is left.
func (d *MissionDescriptor) Normalize() (dropped int, err error) {
	usable := make([]Waypoint, 0, len(d.Waypoints))
	for _, wp := range d.Waypoints {
		if !wp.Usable() {
			dropped++
			continue
		}
		if wp.AltitudeM < 0 {
			wp.AltitudeM = 0
		}
		if wp.DurationS < 0 {
			wp.DurationS = 0
		}
		wp.Completed = false
		usable = append(usable, wp)
	}
	d.Waypoints = usable
	if len(usable) == 0 {
		return dropped, ErrNoWaypoints
	}
	return dropped, nil
}

// Command is an inbound control command. For "start" it carries the mission
// descriptor fields inline.
type Command struct {
	Action    string `json:"action"`
	MissionID *int64 `json:"mission_id,omitempty"`
	MissionDescriptor
}

// UnmarshalJSON decodes the flat command layout. mission_id is kept as a
// pointer so that pause/resume/abort without an id apply to any run.
func (c *Command) UnmarshalJSON(data []byte) error {
	var raw struct {
		Action    string          `json:"action"`
		MissionID *int64          `json:"mission_id"`
		Waypoints []Waypoint      `json:"waypoints"`
		Boundary  json.RawMessage `json:"boundary"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Command{
		Action:    raw.Action,
		MissionID: raw.MissionID,
		MissionDescriptor: MissionDescriptor{
			Waypoints: raw.Waypoints,
			Boundary:  raw.Boundary,
		},
	}
	if raw.MissionID != nil {
		c.MissionDescriptor.MissionID = *raw.MissionID
	}
	return nil
}

// Envelope is the outer frame of every message on the duplex channel.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewEnvelope marshals v as the data of a typed envelope.
func NewEnvelope(msgType string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", msgType, err)
	}
	return json.Marshal(Envelope{Type: msgType, Data: data})
}

// ParseCommand decodes a raw message and returns the command it carries.
// ok is false when the message is valid JSON but not a command.
func ParseCommand(msg []byte) (cmd Command, ok bool, err error) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return Command{}, false, fmt.Errorf("invalid envelope: %w", err)
	}
	if env.Type != TypeCommand {
		return Command{}, false, nil
	}
	if len(env.Data) == 0 {
		return Command{}, false, fmt.Errorf("command without data")
	}
	if err := json.Unmarshal(env.Data, &cmd); err != nil {
		return Command{}, false, fmt.Errorf("invalid command data: %w", err)
	}
	return cmd, true, nil
}

// StatusEvent reports a mission lifecycle transition.
type StatusEvent struct {
	MissionID       int64     `json:"mission_id"`
	Status          string    `json:"status"`
	Message         string    `json:"message"`
	Level           string    `json:"level"`
	Timestamp       Timestamp `json:"timestamp"`
	CurrentWaypoint int       `json:"current_waypoint"`
	TotalWaypoints  int       `json:"total_waypoints"`

	RunID string `json:"-"`
}

// Timestamp marshals as ISO-8601 UTC with microsecond precision.
type Timestamp time.Time

const timestampLayout = "2006-01-02T15:04:05.000000Z"

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(timestampLayout))
}

// UnmarshalJSON implements json.Unmarshaler. It accepts RFC 3339 and the
// naive ISO form without zone (treated as UTC).
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = Timestamp(parsed.UTC())
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

// Time returns the underlying time.
func (t Timestamp) Time() time.Time { return time.Time(t) }
