//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-client/domain/chat"
	"chat-client/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry holds the dynamic subscribers of the session (UI views).
type IRegistry interface {
	Subscribe(subscriberID string, sink EventSink)
	Unsubscribe(subscriberID string)
	Sinks() []EventSink
}

// IChatAPI is the request/response side of the server.
type IChatAPI interface {
	History(ctx context.Context, contactID chat.UserID) ([]chat.Message, error)
	Contacts(ctx context.Context) ([]chat.Contact, error)
	Logout(ctx context.Context) error
}

// IHistoryRepository caches conversation views between runs.
type IHistoryRepository interface {
	StoreConversation(owner, contact chat.UserID, messages []chat.Message) error
	LoadConversation(owner, contact chat.UserID) ([]chat.Message, error)
	DropOwner(owner chat.UserID) error
}

// ISession is the outward API of the running session.
type ISession interface {
	SelectConversation(ctx context.Context, contactID chat.UserID) error
	Send(ctx context.Context, text string, file *chat.OutboundFile) error
	Logout(ctx context.Context) error
	Snapshot(ctx context.Context) (chat.Snapshot, error)
}
