package event

import (
	"chat-client/domain/chat"
	"time"
)

type DomainEvent interface {
	Name() string
}

// ConnectionStateChanged is emitted by the transport on every transition.
// Err is set when the transition was caused by a failure.
type ConnectionStateChanged struct {
	State chat.ConnectionState
	Err   error
	At    time.Time
}

func (ConnectionStateChanged) Name() string { return "connection_state_changed" }

// PresenceReceived is a classified presence frame.
type PresenceReceived struct {
	Snapshot chat.PresenceSnapshot
}

func (PresenceReceived) Name() string { return "presence_received" }

// MessageReceived is a classified chat frame.
type MessageReceived struct {
	Message chat.Message
}

func (MessageReceived) Name() string { return "message_received" }

// FrameRejected reports an inbound frame that was dropped.
type FrameRejected struct {
	Raw []byte
	Err error
}

func (FrameRejected) Name() string { return "frame_rejected" }

type PresenceUpdated struct {
	Online map[chat.UserID]string
}

func (PresenceUpdated) Name() string { return "presence_updated" }

// MessageAppended carries the appended message together with the resulting
// conversation so that consumers never need to query the session back.
type MessageAppended struct {
	Owner        chat.UserID
	Contact      chat.UserID
	Message      chat.Message
	Conversation []chat.Message
}

func (MessageAppended) Name() string { return "message_appended" }

type ConversationReplaced struct {
	Owner    chat.UserID
	Contact  chat.UserID
	Messages []chat.Message
}

func (ConversationReplaced) Name() string { return "conversation_replaced" }

type FetchFailed struct {
	Resource string
	Contact  chat.UserID
	Err      error
}

func (FetchFailed) Name() string { return "fetch_failed" }

type LogoutFailed struct {
	Err error
}

func (LogoutFailed) Name() string { return "logout_failed" }

type SessionUpdated struct {
	Snapshot chat.Snapshot
}

func (SessionUpdated) Name() string { return "session_updated" }

type SessionClosed struct {
	Owner chat.UserID
	At    time.Time
}

func (SessionClosed) Name() string { return "session_closed" }
