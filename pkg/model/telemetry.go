package model

import "math"

// Telemetry is the per-tick snapshot sent to the control plane.
// Values are rounded by Round before transmission.
type Telemetry struct {
	MissionID         int64     `json:"mission_id"`
	Timestamp         Timestamp `json:"timestamp"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	AltitudeM         float64   `json:"altitude_m"`
	SpeedMS           float64   `json:"speed_ms"`
	BatteryPercent    float64   `json:"battery_percent"`
	HeadingDeg        float64   `json:"heading_deg"`
	RollDeg           float64   `json:"roll_deg"`
	PitchDeg          float64   `json:"pitch_deg"`
	YawDeg            float64   `json:"yaw_deg"`
	GPSFixType        int       `json:"gps_fix_type"`
	SatellitesVisible int       `json:"satellites_visible"`
	GroundSpeedMS     float64   `json:"ground_speed_ms"`
	VerticalSpeedMS   float64   `json:"vertical_speed_ms"`

	RunID  string `json:"-"`
	Status string `json:"-"`
}

// Round applies the transport precision: position 8 places, altitude and
// speeds 2, battery and attitude 1.
func (t *Telemetry) Round() {
	t.Latitude = RoundTo(t.Latitude, 8)
	t.Longitude = RoundTo(t.Longitude, 8)
	t.AltitudeM = RoundTo(t.AltitudeM, 2)
	t.SpeedMS = RoundTo(t.SpeedMS, 2)
	t.GroundSpeedMS = RoundTo(t.GroundSpeedMS, 2)
	t.VerticalSpeedMS = RoundTo(t.VerticalSpeedMS, 2)
	t.BatteryPercent = RoundTo(t.BatteryPercent, 1)
	t.HeadingDeg = RoundTo(t.HeadingDeg, 1)
	t.RollDeg = RoundTo(t.RollDeg, 1)
	t.PitchDeg = RoundTo(t.PitchDeg, 1)
	t.YawDeg = RoundTo(t.YawDeg, 1)
}

// RoundTo rounds v half away from zero to the given number of decimals.
func RoundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	r := math.Round(v*p) / p
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}
