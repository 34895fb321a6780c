package sim

import "dronesim/pkg/model"

// EventSink receives the simulator's outbound stream. Implementations are
// called from the tick loop and must not block.
type EventSink interface {
	PublishTelemetry(t *model.Telemetry)
	PublishStatus(ev *model.StatusEvent)
}

// MultiSink fans events out to several sinks in order.
type MultiSink []EventSink

// PublishTelemetry implements EventSink.
func (m MultiSink) PublishTelemetry(t *model.Telemetry) {
	for _, s := range m {
		s.PublishTelemetry(t)
	}
}

// PublishStatus implements EventSink.
func (m MultiSink) PublishStatus(ev *model.StatusEvent) {
	for _, s := range m {
		s.PublishStatus(ev)
	}
}

type nopSink struct{}

func (nopSink) PublishTelemetry(*model.Telemetry) {}
func (nopSink) PublishStatus(*model.StatusEvent)  {}
