package store

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"dronesim/pkg/config"
	"dronesim/pkg/model"
	"dronesim/pkg/sim"
)

type record struct {
	tel *model.Telemetry
	ev  *model.StatusEvent
}

// Recorder implements sim.EventSink and writes the simulator's outbound stream to the flight log.
// Publishing never blocks; records beyond the queue size are dropped.
type Recorder struct {
	store FlightStore
	queue chan record
	every int64

	frames  atomic.Int64
	dropped atomic.Int64
	written atomic.Int64
	done    chan struct{}
}

var _ sim.EventSink = (*Recorder)(nil)

// NewRecorder creates a recorder backed by s. Call Run to start writing.
func NewRecorder(s FlightStore, cfg *config.RecorderConfig) *Recorder {
	size := cfg.QueueSize
	if size <= 0 {
		size = 1
	}
	every := int64(cfg.TelemetryEach)
	if every <= 0 {
		every = 1
	}
	return &Recorder{
		store: s,
		queue: make(chan record, size),
		every: every,
		done:  make(chan struct{}),
	}
}

// PublishTelemetry implements sim.EventSink.
func (r *Recorder) PublishTelemetry(t *model.Telemetry) {
	if t.RunID == "" {
		return
	}
	if (r.frames.Add(1)-1)%r.every != 0 {
		return
	}
	cp := *t
	r.enqueue(record{tel: &cp})
}

// PublishStatus implements sim.EventSink.
func (r *Recorder) PublishStatus(ev *model.StatusEvent) {
	if ev.RunID == "" {
		return
	}
	cp := *ev
	r.enqueue(record{ev: &cp})
}

func (r *Recorder) enqueue(rec record) {
	select {
	case r.queue <- rec:
	default:
		if n := r.dropped.Add(1); n == 1 || n%100 == 0 {
			slog.Warn("Flight recorder queue full, dropping records", "dropped_total", n)
		}
	}
}

// Run writes queued records until ctx is cancelled, then flushes what is
// already queued.
func (r *Recorder) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case rec := <-r.queue:
			r.write(ctx, rec)
		case <-ctx.Done():
			r.flush()
			return
		}
	}
}

// Done is closed once Run has returned.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

func (r *Recorder) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case rec := <-r.queue:
			r.write(ctx, rec)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, rec record) {
	var err error
	switch {
	case rec.tel != nil:
		err = r.store.InsertTelemetry(ctx, rec.tel)
	case rec.ev != nil:
		err = r.writeEvent(ctx, rec.ev)
	}
	if err != nil {
		slog.Error("Failed to write flight log", "error", err)
		return
	}
	r.written.Add(1)
}

func (r *Recorder) writeEvent(ctx context.Context, ev *model.StatusEvent) error {
	ts := ev.Timestamp.Time()
	if ev.Status == sim.EventStarted {
		if err := r.store.SaveFlight(ctx, &Flight{
			RunID:     ev.RunID,
			MissionID: ev.MissionID,
			StartedAt: ts,
			Waypoints: ev.TotalWaypoints,
		}); err != nil {
			return err
		}
	}
	if err := r.store.InsertEvent(ctx, ev); err != nil {
		return err
	}
	if ev.Status == sim.EventCompleted || ev.Status == sim.EventAborted {
		return r.store.FinishFlight(ctx, ev.RunID, ts, ev.Status)
	}
	return nil
}

// Dropped returns the number of records lost to a full queue.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Written returns the number of records persisted.
func (r *Recorder) Written() int64 { return r.written.Load() }
