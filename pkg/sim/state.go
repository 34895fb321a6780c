// Package sim implements the drone flight model and mission executor.
package sim

import (
	"math/rand"

	"dronesim/pkg/geo"
)

// Default vehicle position before any mission is loaded.
const (
	DefaultLatitude  = 40.7128
	DefaultLongitude = -74.0060
)

// VehicleState is the instantaneous physical and systems condition of the vehicle.
// It is owned by the Simulator; readers get copies.
type VehicleState struct {
	Latitude  float64 // Degrees WGS84
	Longitude float64 // Degrees WGS84
	AltitudeM float64 // Meters above ground reference

	HeadingDeg float64
	RollDeg    float64
	PitchDeg   float64
	YawDeg     float64

	SpeedMS         float64 // Horizontal airspeed
	GroundSpeedMS   float64
	VerticalSpeedMS float64

	BatteryPercent    float64
	GPSFixType        int // 0-5, 3 = 3D fix
	SatellitesVisible int

	IsFlying      bool
	IsArmed       bool
	MissionActive bool

	// Wind is sampled once per mission and held constant.
	WindSpeedMS      float64
	WindDirectionDeg float64
}

// NewVehicleState returns a vehicle parked at the default position with a full battery.
func NewVehicleState(rng *rand.Rand, maxWind float64) VehicleState {
	s := VehicleState{
		Latitude:          DefaultLatitude,
		Longitude:         DefaultLongitude,
		BatteryPercent:    100,
		GPSFixType:        3,
		SatellitesVisible: 12,
	}
	s.SampleWind(rng, maxWind)
	return s
}

// SampleWind draws a new wind speed in [0, maxSpeed) and direction in [0, 360).
func (s *VehicleState) SampleWind(rng *rand.Rand, maxSpeed float64) {
	s.WindSpeedMS = rng.Float64() * maxSpeed
	s.WindDirectionDeg = rng.Float64() * 360
}

// Position returns the horizontal position.
func (s *VehicleState) Position() geo.Point {
	return geo.Point{Lat: s.Latitude, Lon: s.Longitude}
}
