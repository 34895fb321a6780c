package sim

import (
	"math"

	"dronesim/pkg/config"
	"dronesim/pkg/geo"
	"dronesim/pkg/model"
)

// Limits bounds the kinematic response of a single navigation step.
type Limits struct {
	MaxSpeed         float64 // m/s horizontal
	MaxVerticalSpeed float64 // m/s
	TurnRate         float64 // deg/s
	Tolerance        float64 // arrival radius in meters
	WindDrift        float64 // fraction of wind speed applied as drift
}

// LimitsFrom extracts navigation limits from the sim config.
func LimitsFrom(cfg *config.SimConfig) Limits {
	return Limits{
		MaxSpeed:         cfg.MaxSpeed,
		MaxVerticalSpeed: cfg.MaxVerticalSpeed,
		TurnRate:         cfg.TurnRate,
		Tolerance:        cfg.ArrivalTolerance.Meters(),
		WindDrift:        cfg.Wind.DriftFactor,
	}
}

const (
	maxRollDeg  = 15.0
	maxPitchDeg = 10.0
	rollGain    = 0.3
	pitchGain   = 0.5
	levelDecay  = 0.9
	hoverSpeed  = 1.0 // below this the attitude levels out
)

// Step advances s towards wp by dt seconds and reports whether the waypoint
// is within the arrival radius. Arrival is checked before any motion, so a
// reached waypoint leaves the state untouched. dt <= 0 is a no-op.
func Step(s *VehicleState, wp *model.Waypoint, dt float64, lim Limits) bool {
	target := geo.Point{Lat: wp.Latitude, Lon: wp.Longitude}
	dist := geo.Distance(s.Position(), target)
	if dist <= lim.Tolerance {
		return true
	}
	if dt <= 0 {
		return false
	}

	// Turn towards the target at a bounded rate
	bearingDiff := geo.NormalizeAngle(geo.Bearing(s.Position(), target) - s.HeadingDeg)
	maxTurn := lim.TurnRate * dt
	turn := math.Max(-maxTurn, math.Min(maxTurn, bearingDiff))
	s.HeadingDeg = geo.NormalizeHeading(s.HeadingDeg + turn)

	// Proportional approach: slow down inside 2x max speed
	hSpeed := math.Min(lim.MaxSpeed, dist/2)
	vSpeed := math.Max(-lim.MaxVerticalSpeed, math.Min(lim.MaxVerticalSpeed, (wp.AltitudeM-s.AltitudeM)/2))

	hdg := s.HeadingDeg * (math.Pi / 180.0)
	north := hSpeed * math.Cos(hdg)
	east := hSpeed * math.Sin(hdg)

	// Wind drift is independent of heading
	wind := s.WindDirectionDeg * (math.Pi / 180.0)
	north += s.WindSpeedMS * math.Cos(wind) * lim.WindDrift
	east += s.WindSpeedMS * math.Sin(wind) * lim.WindDrift

	p := geo.Offset(s.Position(), north*dt, east*dt)
	s.Latitude, s.Longitude = p.Lat, p.Lon
	s.AltitudeM += vSpeed * dt

	s.SpeedMS = hSpeed
	s.GroundSpeedMS = math.Hypot(north, east)
	s.VerticalSpeedMS = vSpeed

	if hSpeed > hoverSpeed {
		s.RollDeg = math.Max(-maxRollDeg, math.Min(maxRollDeg, bearingDiff*rollGain))
		s.PitchDeg = math.Max(-maxPitchDeg, math.Min(maxPitchDeg, -hSpeed*pitchGain))
	} else {
		s.RollDeg *= levelDecay
		s.PitchDeg *= levelDecay
	}
	s.YawDeg = s.HeadingDeg

	return false
}

// Hover holds horizontal position over a reached waypoint while still
// correcting altitude. Used during waypoint dwell.
func Hover(s *VehicleState, wp *model.Waypoint, dt float64, lim Limits) {
	if dt <= 0 {
		return
	}
	vSpeed := math.Max(-lim.MaxVerticalSpeed, math.Min(lim.MaxVerticalSpeed, (wp.AltitudeM-s.AltitudeM)/2))
	s.AltitudeM += vSpeed * dt
	s.SpeedMS = 0
	s.GroundSpeedMS = 0
	s.VerticalSpeedMS = vSpeed
	s.RollDeg *= levelDecay
	s.PitchDeg *= levelDecay
	s.YawDeg = s.HeadingDeg
}
