package workers

import (
	"chat-client/contract"
	"chat-client/domain/event"
	"context"
	"log/slog"
	"time"
)

const defaultSinkTimeout = 2 * time.Second

// EventFanout broadcasts session events to the permanent sinks (cache,
// search) and to the subscribers currently held by the registry.
//
// Delivery is best effort: a sink error is logged and the next sink still
// gets the event. Each sink call is bounded by sinkTimeout.
type EventFanout struct {
	log         *slog.Logger
	events      <-chan event.DomainEvent
	registry    contract.IRegistry
	sinkTimeout time.Duration
	sinks       []contract.EventSink
}

func NewEventFanout(log *slog.Logger, events <-chan event.DomainEvent, registry contract.IRegistry, sinkTimeout time.Duration) *EventFanout {
	if sinkTimeout <= 0 {
		sinkTimeout = defaultSinkTimeout
	}
	return &EventFanout{log: log, events: events, registry: registry, sinkTimeout: sinkTimeout}
}

func (w *EventFanout) Add(sinks ...contract.EventSink) *EventFanout {
	w.sinks = append(w.sinks, sinks...)
	return w
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt, ok := <-w.events:
			if !ok {
				w.log.Debug("Event channel closed, stopping fanout")
				return nil
			}
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.drain(context.WithoutCancel(ctx))
			w.log.Debug("Context done, stopping fanout")
			return nil
		}
	}
}

// drain delivers what is still buffered, so that the last events of a
// session (logout included) reach the sinks.
func (w *EventFanout) drain(ctx context.Context) {
	for {
		select {
		case evt, ok := <-w.events:
			if !ok {
				return
			}
			w.Fanout(ctx, evt)
		default:
			return
		}
	}
}

// Fanout delivers one event to every sink, permanent sinks first.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	sinks := w.sinks
	if w.registry != nil {
		sinks = append(append([]contract.EventSink(nil), w.sinks...), w.registry.Sinks()...)
	}
	for _, sink := range sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.log.Warn("Sink failed to consume event", "event", evt.Name(), "error", err)
		}
		cancel()
	}
}
