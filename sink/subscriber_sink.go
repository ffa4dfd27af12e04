package sink

import (
	"chat-client/domain/event"
	"context"
)

// SubscriberSink hands events over to a view reading Events.
// When the view lags behind and the buffer is full, the event is dropped:
// the next snapshot supersedes it.
type SubscriberSink struct {
	events chan event.DomainEvent
}

func NewSubscriberSink(bufferSize int) *SubscriberSink {
	return &SubscriberSink{events: make(chan event.DomainEvent, bufferSize)}
}

func (s *SubscriberSink) Events() <-chan event.DomainEvent {
	return s.events
}

func (s *SubscriberSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
