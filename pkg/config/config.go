package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	DB       DBConfig       `yaml:"db"`
	Server   ServerConfig   `yaml:"server"`
	Link     LinkConfig     `yaml:"link"`
	Sim      SimConfig      `yaml:"sim"`
	Recorder RecorderConfig `yaml:"recorder"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	Events   LogSettings `yaml:"events"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds flight log database settings.
type DBConfig struct {
	Path      string   `yaml:"path"`
	Retention Duration `yaml:"retention"` // 0 keeps flights forever
}

// ServerConfig holds local HTTP API settings. An empty address disables it.
type ServerConfig struct {
	Address        string `yaml:"address"`
	MaxConnections int    `yaml:"max_connections"` // 0 = unlimited
}

// LinkConfig holds settings for the control-plane websocket.
type LinkConfig struct {
	URL              string        `yaml:"url"` // empty = standalone
	HandshakeTimeout Duration      `yaml:"handshake_timeout"`
	WriteTimeout     Duration      `yaml:"write_timeout"`
	Heartbeat        Duration      `yaml:"heartbeat"`
	QueueSize        int           `yaml:"queue_size"`
	Backoff          BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay   Duration `yaml:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay"`
	MaxAttempts int      `yaml:"max_attempts"` // failures before standalone mode is announced
}

// SimConfig holds the flight model parameters.
type SimConfig struct {
	TickRateHz       float64       `yaml:"tick_rate_hz"`
	MaxTickDt        Duration      `yaml:"max_tick_dt"`
	MaxSpeed         float64       `yaml:"max_speed_ms"`
	MaxVerticalSpeed float64       `yaml:"max_vertical_speed_ms"`
	TurnRate         float64       `yaml:"turn_rate_deg_s"`
	ArrivalTolerance Distance      `yaml:"arrival_tolerance"`
	StartOffsetDeg   float64       `yaml:"start_offset_deg"`
	CommandQueueSize int           `yaml:"command_queue_size"`
	Seed             int64         `yaml:"seed"` // 0 = seed from clock
	Battery          BatteryConfig `yaml:"battery"`
	Wind             WindConfig    `yaml:"wind"`
	Noise            NoiseConfig   `yaml:"noise"`
}

// BatteryConfig holds the consumption model settings.
type BatteryConfig struct {
	DrainRate         float64 `yaml:"drain_rate_pct_min"`
	CriticalPercent   float64 `yaml:"critical_percent"`
	FastSpeed         float64 `yaml:"fast_speed_ms"`
	FastFactor        float64 `yaml:"fast_factor"`
	ClimbSpeed        float64 `yaml:"climb_speed_ms"`
	ClimbFactor       float64 `yaml:"climb_factor"`
	WindResistanceDiv float64 `yaml:"wind_resistance_div"`
}

// WindConfig controls the per-mission wind sample.
type WindConfig struct {
	MaxSpeed    float64 `yaml:"max_speed_ms"`
	DriftFactor float64 `yaml:"drift_factor"`
}

// NoiseConfig holds sensor noise settings. Zero values disable a source.
type NoiseConfig struct {
	GPSStdDeg           float64 `yaml:"gps_std_deg"`
	AltitudeStdM        float64 `yaml:"altitude_std_m"`
	AttitudeStdDeg      float64 `yaml:"attitude_std_deg"`
	HeadingStdDeg       float64 `yaml:"heading_std_deg"`
	SpeedStd            float64 `yaml:"speed_std_ms"`
	SatelliteChangeProb float64 `yaml:"satellite_change_prob"`
	FixChangeProb       float64 `yaml:"fix_change_prob"`
}

// RecorderConfig holds flight log settings.
type RecorderConfig struct {
	Enabled       bool `yaml:"enabled"`
	QueueSize     int  `yaml:"queue_size"`
	TelemetryEach int  `yaml:"telemetry_each"` // record every Nth telemetry frame
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
			Events: LogSettings{
				Path:  "./logs/events.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path:      "./data/flights.db",
			Retention: Duration(30 * Day),
		},
		Server: ServerConfig{
			Address:        "localhost:8001",
			MaxConnections: 64,
		},
		Link: LinkConfig{
			URL:              "ws://localhost:8000/ws/simulator",
			HandshakeTimeout: Duration(5 * time.Second),
			WriteTimeout:     Duration(2 * time.Second),
			Heartbeat:        Duration(30 * time.Second),
			QueueSize:        256,
			Backoff: BackoffConfig{
				BaseDelay:   Duration(1 * time.Second),
				MaxDelay:    Duration(30 * time.Second),
				MaxAttempts: 5,
			},
		},
		Sim: SimConfig{
			TickRateHz:       10,
			MaxTickDt:        Duration(1 * time.Second),
			MaxSpeed:         15.0,
			MaxVerticalSpeed: 5.0,
			TurnRate:         45.0,
			ArrivalTolerance: Distance(2.0),
			StartOffsetDeg:   0.00001,
			CommandQueueSize: 64,
			Battery: BatteryConfig{
				DrainRate:         0.1,
				CriticalPercent:   5.0,
				FastSpeed:         10.0,
				FastFactor:        1.5,
				ClimbSpeed:        2.0,
				ClimbFactor:       1.3,
				WindResistanceDiv: 20.0,
			},
			Wind: WindConfig{
				MaxSpeed:    5.0,
				DriftFactor: 0.1,
			},
			Noise: NoiseConfig{
				GPSStdDeg:           0.00001,
				AltitudeStdM:        0.5,
				AttitudeStdDeg:      0.5,
				HeadingStdDeg:       0.2,
				SpeedStd:            0.1,
				SatelliteChangeProb: 0.01,
				FixChangeProb:       0.001,
			},
		},
		Recorder: RecorderConfig{
			Enabled:       true,
			QueueSize:     1024,
			TelemetryEach: 1,
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// Environment overrides are applied after parsing and never written back.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv("DRONESIM_LINK_URL"); ok {
		cfg.Link.URL = v
	}
	if v, ok := os.LookupEnv("DRONESIM_SERVER_ADDRESS"); ok {
		cfg.Server.Address = v
	}
	if v := os.Getenv("DRONESIM_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid DRONESIM_SEED %q: %w", v, err)
		}
		cfg.Sim.Seed = seed
	}
	return nil
}

// Validate checks values the simulator cannot run with.
func (c *Config) Validate() error {
	if c.Sim.TickRateHz <= 0 {
		return fmt.Errorf("sim.tick_rate_hz must be positive, got %v", c.Sim.TickRateHz)
	}
	if c.Sim.MaxSpeed <= 0 || c.Sim.MaxVerticalSpeed <= 0 {
		return fmt.Errorf("sim speed limits must be positive")
	}
	if c.Sim.ArrivalTolerance <= 0 {
		return fmt.Errorf("sim.arrival_tolerance must be positive")
	}
	if c.Link.QueueSize <= 0 {
		return fmt.Errorf("link.queue_size must be positive, got %d", c.Link.QueueSize)
	}
	return nil
}

// TickInterval returns the fixed interval between simulation ticks.
func (s *SimConfig) TickInterval() time.Duration {
	return time.Duration(float64(time.Second) / s.TickRateHz)
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Drone Simulator Configuration
# -----------------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers), ft (feet), nm (nautical miles)

`)
	data = append(header, data...)

	reURL := regexp.MustCompile(`(?m)^(\s+)url:`)
	data = reURL.ReplaceAll(data, []byte("${1}# Empty runs the simulator standalone\n${1}url:"))

	reSeed := regexp.MustCompile(`(?m)^(\s+)seed:`)
	data = reSeed.ReplaceAll(data, []byte("${1}# 0 seeds the noise model from the clock\n${1}seed:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
