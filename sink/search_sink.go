package sink

import (
	"chat-client/domain/event"
	"chat-client/infrastructure/search"
	"context"
)

// SearchSink keeps the full-text index aligned with the conversations.
type SearchSink struct {
	index *search.Index
}

func NewSearchSink(index *search.Index) SearchSink {
	return SearchSink{index: index}
}

func (s SearchSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageAppended:
		return s.index.Add(evt.Contact, evt.Message)
	case event.ConversationReplaced:
		return s.index.Replace(evt.Contact, evt.Messages)
	case event.SessionClosed:
		return s.index.Clear()
	}
	return nil
}
