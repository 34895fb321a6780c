package api

import (
	"context"
	"errors"
	"sync"

	"dronesim/pkg/geo"
	"dronesim/pkg/link"
	"dronesim/pkg/model"
	"dronesim/pkg/sim"
	"dronesim/pkg/store"
)

type fakeSim struct {
	mu       sync.Mutex
	snap     sim.Snapshot
	accept   bool
	commands []model.Command
	battery  *float64
}

func (f *fakeSim) Snapshot() sim.Snapshot { return f.snap }

func (f *fakeSim) Submit(cmd model.Command) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.accept {
		return false
	}
	f.commands = append(f.commands, cmd)
	return true
}

func (f *fakeSim) SetBattery(pct float64) { f.battery = &pct }

type fakeLink struct {
	state string
	stats link.Stats
	err   error
}

func (f *fakeLink) State() string     { return f.state }
func (f *fakeLink) Stats() link.Stats { return f.stats }
func (f *fakeLink) LastError() error  { return f.err }

type fakeFlights struct {
	flights []store.Flight
	track   []geo.Point
	events  []model.StatusEvent
	err     error
	limit   int
}

func (f *fakeFlights) ListFlights(ctx context.Context, limit int) ([]store.Flight, error) {
	f.limit = limit
	return f.flights, f.err
}

func (f *fakeFlights) GetFlight(ctx context.Context, runID string) (*store.Flight, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.flights {
		if f.flights[i].RunID == runID {
			return &f.flights[i], nil
		}
	}
	return nil, nil
}

func (f *fakeFlights) Track(ctx context.Context, runID string) ([]geo.Point, error) {
	return f.track, nil
}

func (f *fakeFlights) Events(ctx context.Context, runID string) ([]model.StatusEvent, error) {
	return f.events, nil
}

var errBoom = errors.New("boom")
