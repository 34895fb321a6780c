package sim

import (
	"math"

	"dronesim/pkg/config"
)

// DrainRate returns the battery consumption in percent per minute for the
// current motion and wind. Stress factors compound multiplicatively.
func DrainRate(s *VehicleState, cfg *config.BatteryConfig) float64 {
	rate := cfg.DrainRate
	if s.SpeedMS > cfg.FastSpeed {
		rate *= cfg.FastFactor
	}
	if math.Abs(s.VerticalSpeedMS) > cfg.ClimbSpeed {
		rate *= cfg.ClimbFactor
	}
	if cfg.WindResistanceDiv > 0 {
		rate *= 1 + s.WindSpeedMS/cfg.WindResistanceDiv
	}
	return rate
}

// DrainBattery subtracts dt seconds of consumption, floored at 0.
func DrainBattery(s *VehicleState, cfg *config.BatteryConfig, dt float64) {
	if dt <= 0 {
		return
	}
	drop := DrainRate(s, cfg) * dt / 60
	s.BatteryPercent = math.Max(0, math.Min(100, s.BatteryPercent-drop))
}
