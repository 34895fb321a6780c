package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"dronesim/pkg/config"
	"dronesim/pkg/geo"
	"dronesim/pkg/logging"
	"dronesim/pkg/model"
)

const defaultCommandQueue = 64

// Snapshot is a consistent copy of simulator state for readers outside the tick loop.
type Snapshot struct {
	Status          Status
	MissionID       int64
	RunID           string
	CurrentWaypoint int
	TotalWaypoints  int
	Progress        float64
	RouteLengthM    float64
	StartedAt       time.Time
	Waypoints       []model.Waypoint
	Vehicle         VehicleState
	Telemetry       model.Telemetry
	HasTelemetry    bool
}

// Simulator owns the vehicle and mission state and advances them on a fixed tick.
// The tick loop is the only writer; commands are queued through Submit and
// applied between physics steps.
type Simulator struct {
	cfg    config.SimConfig
	limits Limits
	sink   EventSink
	rng    *rand.Rand
	noise  *Noise
	now    func() time.Time

	commands chan model.Command

	mu        sync.RWMutex
	state     VehicleState
	run       *MissionRun
	telemetry model.Telemetry
	hasTel    bool
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithSink sets the event sink. Defaults to discarding events.
func WithSink(sink EventSink) Option {
	return func(s *Simulator) { s.sink = sink }
}

// WithRand sets the random source for wind, start offset and noise.
func WithRand(rng *rand.Rand) Option {
	return func(s *Simulator) { s.rng = rng }
}

// WithClock sets the time source used for dt and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// New creates a simulator with a default-constructed vehicle and no mission.
func New(cfg *config.SimConfig, opts ...Option) *Simulator {
	s := &Simulator{
		cfg:    *cfg,
		limits: LimitsFrom(cfg),
		sink:   nopSink{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		s.rng = rand.New(rand.NewSource(seed))
	}
	queue := cfg.CommandQueueSize
	if queue <= 0 {
		queue = defaultCommandQueue
	}
	s.commands = make(chan model.Command, queue)
	s.noise = NewNoise(cfg.Noise, s.rng)
	s.state = NewVehicleState(s.rng, cfg.Wind.MaxSpeed)
	return s
}

// Submit queues a command for the next tick without blocking.
// It returns false if the queue is full and the command was dropped.
func (s *Simulator) Submit(cmd model.Command) bool {
	select {
	case s.commands <- cmd:
		return true
	default:
		slog.Warn("Command queue full, dropping command", "action", cmd.Action)
		return false
	}
}

// Run ticks the simulation until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) error {
	interval := s.cfg.TickInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("Simulator running", "tick", interval, "max_speed", s.cfg.MaxSpeed)

	last := s.now()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Simulator stopped")
			return nil
		case <-ticker.C:
			now := s.now()
			dt := now.Sub(last).Seconds()
			last = now
			s.Tick(dt)
		}
	}
}

// Tick applies queued commands, then advances the mission by dt seconds and
// publishes the resulting events followed by one telemetry snapshot.
func (s *Simulator) Tick(dt float64) {
	if limit := s.cfg.MaxTickDt.Std().Seconds(); limit > 0 && dt > limit {
		dt = limit
	}

	var out outbox
	s.mu.Lock()
	s.drainCommands(&out)
	s.step(dt, &out)
	if s.run != nil && (s.run.Status == StatusRunning || s.run.Status == StatusPaused) {
		s.telemetry = s.buildTelemetry()
		s.hasTel = true
		t := s.telemetry
		out.telemetry = &t
	}
	s.mu.Unlock()

	// Events precede the telemetry that reflects them.
	for i := range out.events {
		s.sink.PublishStatus(&out.events[i])
	}
	if out.telemetry != nil {
		s.sink.PublishTelemetry(out.telemetry)
	}
}

type outbox struct {
	events    []model.StatusEvent
	telemetry *model.Telemetry
}

func (s *Simulator) drainCommands(out *outbox) {
	for {
		select {
		case cmd := <-s.commands:
			s.apply(cmd, out)
		default:
			return
		}
	}
}

func (s *Simulator) apply(cmd model.Command, out *outbox) {
	action := strings.ToLower(strings.TrimSpace(cmd.Action))
	if action != model.ActionStart && s.run != nil && cmd.MissionID != nil && *cmd.MissionID != s.run.MissionID {
		slog.Warn("Ignoring command for another mission", "action", action, "mission_id", *cmd.MissionID, "active", s.run.MissionID)
		return
	}

	switch action {
	case model.ActionStart:
		s.start(cmd.MissionDescriptor, out)
	case model.ActionPause:
		if s.run == nil || !s.run.Pause() {
			slog.Warn("Ignoring pause", "status", s.status())
			return
		}
		slog.Info("Mission paused", "mission_id", s.run.MissionID)
		s.emit(out, EventPaused, "Mission paused", model.LevelInfo)
	case model.ActionResume:
		if s.run == nil || !s.run.Resume() {
			slog.Warn("Ignoring resume", "status", s.status())
			return
		}
		slog.Info("Mission resumed", "mission_id", s.run.MissionID)
		s.emit(out, EventResumed, "Mission resumed", model.LevelInfo)
	case model.ActionAbort:
		if s.run == nil || !s.run.Abort(s.now()) {
			slog.Warn("Ignoring abort", "status", s.status())
			return
		}
		s.state.MissionActive = false
		slog.Info("Mission aborted", "mission_id", s.run.MissionID)
		s.emit(out, EventAborted, "Mission aborted by user", model.LevelInfo)
	default:
		slog.Warn("Unknown command", "action", cmd.Action)
	}
}

func (s *Simulator) start(d model.MissionDescriptor, out *outbox) {
	if st := s.status(); !st.CanStart() {
		slog.Warn("Mission already in progress, ignoring start", "status", st, "mission_id", s.run.MissionID)
		return
	}

	run, dropped, err := NewMissionRun(d, s.now())
	if err != nil {
		slog.Error("Cannot start mission", "mission_id", d.MissionID, "dropped", dropped, "error", err)
		return
	}
	if dropped > 0 {
		slog.Warn("Dropped unusable waypoints", "mission_id", d.MissionID, "dropped", dropped)
	}
	s.run = run

	first := run.Waypoints[0]
	off := s.cfg.StartOffsetDeg
	s.state = VehicleState{
		Latitude:          first.Latitude + (s.rng.Float64()*2-1)*off,
		Longitude:         first.Longitude + (s.rng.Float64()*2-1)*off,
		HeadingDeg:        s.state.HeadingDeg,
		YawDeg:            s.state.HeadingDeg,
		BatteryPercent:    100,
		GPSFixType:        s.state.GPSFixType,
		SatellitesVisible: s.state.SatellitesVisible,
		IsFlying:          true,
		IsArmed:           true,
		MissionActive:     true,
	}
	s.state.SampleWind(s.rng, s.cfg.Wind.MaxSpeed)

	slog.Info("Mission started",
		"mission_id", run.MissionID,
		"run_id", run.RunID,
		"waypoints", run.Total(),
		"route", humanize.SIWithDigits(run.Route.LengthM, 1, "m"),
		"wind", fmt.Sprintf("%.1fm/s@%03.0f", s.state.WindSpeedMS, s.state.WindDirectionDeg),
	)
	s.emit(out, EventStarted, "Mission started", model.LevelInfo)
}

// step advances one tick of a running mission. Paused missions freeze
// motion, battery and noise.
func (s *Simulator) step(dt float64, out *outbox) {
	run := s.run
	if run == nil || run.Status != StatusRunning || dt <= 0 {
		return
	}

	if s.advance(run, dt, out) {
		return
	}

	DrainBattery(&s.state, &s.cfg.Battery, dt)
	s.noise.Apply(&s.state)

	if s.state.BatteryPercent < s.cfg.Battery.CriticalPercent {
		s.endRun(run, out, EventAborted, fmt.Sprintf("Emergency landing: battery critical (%.1f%%)", s.state.BatteryPercent), model.LevelWarning)
		slog.Warn("Emergency landing due to low battery", "mission_id", run.MissionID, "battery", s.state.BatteryPercent)
		return
	}

	if !run.Inside(s.state.Position()) {
		s.endRun(run, out, EventAborted, "Geofence breach: vehicle left the mission boundary", model.LevelError)
		slog.Error("Geofence breach", "mission_id", run.MissionID, "lat", s.state.Latitude, "lon", s.state.Longitude)
		return
	}

	logging.TraceDefault("Tick",
		"mission_id", run.MissionID,
		"wp", run.Cursor,
		"lat", s.state.Latitude,
		"lon", s.state.Longitude,
		"alt", s.state.AltitudeM,
		"battery", s.state.BatteryPercent,
	)
}

// advance moves towards the active waypoint and handles arrival. It reports
// whether the mission completed during this tick.
func (s *Simulator) advance(run *MissionRun, dt float64, out *outbox) bool {
	wp := run.Target()
	if wp == nil {
		s.endRun(run, out, EventCompleted, "All waypoints reached", model.LevelInfo)
		return true
	}

	if !Step(&s.state, wp, dt, s.limits) {
		return false
	}

	if wp.DurationS > 0 && run.dwell < wp.DurationS {
		Hover(&s.state, wp, dt, s.limits)
		run.dwell += dt
		if run.dwell < wp.DurationS {
			return false
		}
	}

	done := run.complete()
	slog.Info("Waypoint reached", "mission_id", run.MissionID, "waypoint", run.Cursor, "total", run.Total(), "action", wp.Action)
	s.emit(out, EventWaypointReached, fmt.Sprintf("Reached waypoint %d/%d", run.Cursor, run.Total()), model.LevelInfo)
	if done {
		s.endRun(run, out, EventCompleted, "Mission completed successfully", model.LevelInfo)
		return true
	}
	return false
}

func (s *Simulator) endRun(run *MissionRun, out *outbox, event, msg, level string) {
	now := s.now()
	if event == EventCompleted {
		run.finish(now)
		slog.Info("Mission completed", "mission_id", run.MissionID, "duration", now.Sub(run.StartedAt).Round(time.Second))
	} else {
		run.Status = StatusAborted
		run.EndedAt = now
	}
	s.state.MissionActive = false
	s.emit(out, event, msg, level)
}

func (s *Simulator) emit(out *outbox, status, msg, level string) {
	ev := model.StatusEvent{
		Status:    status,
		Message:   msg,
		Level:     level,
		Timestamp: model.Timestamp(s.now().UTC()),
	}
	if s.run != nil {
		ev.MissionID = s.run.MissionID
		ev.RunID = s.run.RunID
		ev.CurrentWaypoint = s.run.Cursor
		ev.TotalWaypoints = s.run.Total()
	}
	out.events = append(out.events, ev)
}

func (s *Simulator) status() Status {
	if s.run == nil {
		return StatusIdle
	}
	return s.run.Status
}

func (s *Simulator) buildTelemetry() model.Telemetry {
	st := &s.state
	t := model.Telemetry{
		MissionID:         s.run.MissionID,
		Timestamp:         model.Timestamp(s.now().UTC()),
		Latitude:          st.Latitude,
		Longitude:         st.Longitude,
		AltitudeM:         st.AltitudeM,
		SpeedMS:           st.SpeedMS,
		BatteryPercent:    st.BatteryPercent,
		HeadingDeg:        st.HeadingDeg,
		RollDeg:           st.RollDeg,
		PitchDeg:          st.PitchDeg,
		YawDeg:            st.YawDeg,
		GPSFixType:        st.GPSFixType,
		SatellitesVisible: st.SatellitesVisible,
		GroundSpeedMS:     st.GroundSpeedMS,
		VerticalSpeedMS:   st.VerticalSpeedMS,
		RunID:             s.run.RunID,
		Status:            string(s.run.Status),
	}
	t.Round()
	return t
}

// Snapshot returns a consistent copy of the current state.
func (s *Simulator) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Status:       s.status(),
		Vehicle:      s.state,
		Telemetry:    s.telemetry,
		HasTelemetry: s.hasTel,
	}
	if r := s.run; r != nil {
		snap.MissionID = r.MissionID
		snap.RunID = r.RunID
		snap.CurrentWaypoint = r.Cursor
		snap.TotalWaypoints = r.Total()
		snap.Progress = r.Progress()
		snap.RouteLengthM = r.Route.LengthM
		snap.StartedAt = r.StartedAt
		snap.Waypoints = append([]model.Waypoint(nil), r.Waypoints...)
	}
	return snap
}

// Status returns the current mission status.
func (s *Simulator) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status()
}

// SetBattery overrides the battery level. Intended for fault injection.
func (s *Simulator) SetBattery(pct float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.BatteryPercent = max(0, min(100, pct))
}

// Vehicle returns a copy of the vehicle state.
func (s *Simulator) Vehicle() VehicleState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Position is a convenience accessor for the vehicle position.
func (s *Simulator) Position() geo.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Position()
}
