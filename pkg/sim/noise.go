package sim

import (
	"math"
	"math/rand"

	"dronesim/pkg/config"
	"dronesim/pkg/geo"
)

const (
	minSatellites = 6
	maxSatellites = 20
)

// fixChoices is weighted towards a nominal 3D fix.
var fixChoices = [...]int{2, 3, 3, 3, 3}

// Noise perturbs sensor readings so consumers see realistic jitter.
type Noise struct {
	cfg config.NoiseConfig
	rng *rand.Rand
}

// NewNoise creates a noise model drawing from rng.
func NewNoise(cfg config.NoiseConfig, rng *rand.Rand) *Noise {
	return &Noise{cfg: cfg, rng: rng}
}

// Apply perturbs one tick of sensor state.
func (n *Noise) Apply(s *VehicleState) {
	s.Latitude += n.gauss(n.cfg.GPSStdDeg)
	s.Longitude += n.gauss(n.cfg.GPSStdDeg)
	s.AltitudeM += n.gauss(n.cfg.AltitudeStdM)

	s.RollDeg += n.gauss(n.cfg.AttitudeStdDeg)
	s.PitchDeg += n.gauss(n.cfg.AttitudeStdDeg)
	s.HeadingDeg = geo.NormalizeHeading(s.HeadingDeg + n.gauss(n.cfg.HeadingStdDeg))

	s.SpeedMS = math.Max(0, s.SpeedMS+n.gauss(n.cfg.SpeedStd))
	s.GroundSpeedMS = math.Max(0, s.GroundSpeedMS+n.gauss(n.cfg.SpeedStd))

	if n.cfg.SatelliteChangeProb > 0 && n.rng.Float64() < n.cfg.SatelliteChangeProb {
		sats := s.SatellitesVisible + n.rng.Intn(5) - 2
		s.SatellitesVisible = max(minSatellites, min(maxSatellites, sats))
	}
	if n.cfg.FixChangeProb > 0 && n.rng.Float64() < n.cfg.FixChangeProb {
		s.GPSFixType = fixChoices[n.rng.Intn(len(fixChoices))]
	}
}

func (n *Noise) gauss(std float64) float64 {
	if std <= 0 {
		return 0
	}
	return n.rng.NormFloat64() * std
}
