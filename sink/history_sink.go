package sink

import (
	"chat-client/contract"
	"chat-client/domain/event"
	"context"
	"fmt"
	"log/slog"
)

// HistorySink mirrors every conversation change into the local history cache.
type HistorySink struct {
	repository contract.IHistoryRepository
	log        *slog.Logger
}

func NewHistorySink(repository contract.IHistoryRepository, log *slog.Logger) HistorySink {
	return HistorySink{repository: repository, log: log}
}

func (h HistorySink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageAppended:
		return h.repository.StoreConversation(evt.Owner, evt.Contact, evt.Conversation)
	case event.ConversationReplaced:
		return h.repository.StoreConversation(evt.Owner, evt.Contact, evt.Messages)
	case event.SessionClosed:
		h.log.Debug("Dropping cached history", "owner", evt.Owner)
		return h.repository.DropOwner(evt.Owner)
	default:
		h.log.Debug(fmt.Sprintf("Not handled event : %s", e.Name()))
		return nil
	}
}
