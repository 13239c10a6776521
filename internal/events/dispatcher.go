// Package events delivers pipeline events to webhooks and the message bus.
package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/Onebillie/parsetastic/internal/models"
)

// Sink receives every drained event.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev models.Event) error
}

// Dispatcher fans events out to its sinks. Delivery failures are logged, never returned.
type Dispatcher struct {
	sinks []Sink
}

// NewDispatcher ignores nil sinks so optional integrations can be passed unconditionally.
func NewDispatcher(sinks ...Sink) *Dispatcher {
	d := &Dispatcher{}
	for _, s := range sinks {
		if s != nil {
			d.sinks = append(d.sinks, s)
		}
	}
	return d
}

// Drain delivers events in order.
func (d *Dispatcher) Drain(ctx context.Context, evs []models.Event) {
	if d == nil {
		return
	}
	for _, ev := range evs {
		for _, s := range d.sinks {
			if err := s.Send(ctx, ev); err != nil {
				zap.L().Warn("event delivery failed",
					zap.String("sink", s.Name()),
					zap.String("event", ev.Type),
					zap.String("document_id", ev.DocumentID),
					zap.Error(err),
				)
			}
		}
	}
}
