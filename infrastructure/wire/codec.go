// Package wire converts between JSON frames of the chat server and domain types.
package wire

import (
	"chat-client/domain/chat"
	"chat-client/domain/event"
	"chat-client/errors"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

var validate = validator.New()

type Contact struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type Presence struct {
	Online []Contact `json:"online"`
}

// Message is a persisted or pushed chat message as the server writes it.
type Message struct {
	ID        ID     `json:"_id" validate:"required"`
	Sender    string `json:"sender" validate:"required"`
	Recipient string `json:"recipient" validate:"required"`
	Text      string `json:"text"`
	File      string `json:"file,omitempty"`
}

// DirectoryEntry is one element of GET /people.
type DirectoryEntry struct {
	ID       ID     `json:"_id" validate:"required"`
	Username string `json:"username"`
}

// ID accepts both string and numeric identifiers.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	switch r.Type {
	case gjson.String, gjson.Number:
		*id = ID(r.String())
		return nil
	case gjson.Null:
		*id = ""
		return nil
	default:
		return fmt.Errorf("unsupported id %s", r.Raw)
	}
}

// Classify turns one inbound frame into a domain event.
// A frame with an "online" key is a presence snapshot, a frame with a "text"
// key is a chat message. Anything else is rejected.
func Classify(data []byte, at time.Time) (event.DomainEvent, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid json", errors.ErrMalformedFrame)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: not an object", errors.ErrMalformedFrame)
	}

	switch {
	case root.Get("online").Exists():
		if !root.Get("online").IsArray() {
			return nil, fmt.Errorf("%w: online is not a list", errors.ErrMalformedFrame)
		}
		var frame Presence
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("%w: %w", errors.ErrMalformedFrame, err)
		}
		return event.PresenceReceived{Snapshot: ToSnapshot(frame)}, nil
	case root.Get("text").Exists():
		var frame Message
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("%w: %w", errors.ErrMalformedFrame, err)
		}
		if err := validate.Struct(frame); err != nil {
			return nil, fmt.Errorf("%w: %w", errors.ErrMalformedFrame, err)
		}
		return event.MessageReceived{Message: ToMessage(frame, chat.ProvenancePushed, at)}, nil
	default:
		return nil, errors.ErrUnknownFrame
	}
}

// DecodeHistory parses a history body. Entries without the fields needed for
// reconciliation are skipped and counted.
func DecodeHistory(data []byte, at time.Time) ([]chat.Message, int, error) {
	var frames []Message
	if err := json.Unmarshal(data, &frames); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", errors.ErrMalformedFrame, err)
	}
	valid := lo.Filter(frames, func(m Message, _ int) bool {
		return validate.Struct(m) == nil
	})
	messages := lo.Map(valid, func(m Message, _ int) chat.Message {
		return ToMessage(m, chat.ProvenanceFetched, at)
	})
	return messages, len(frames) - len(valid), nil
}

// DecodeDirectory parses GET /people.
func DecodeDirectory(data []byte) ([]chat.Contact, error) {
	var entries []DirectoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrMalformedFrame, err)
	}
	valid := lo.Filter(entries, func(e DirectoryEntry, _ int) bool {
		return validate.Struct(e) == nil
	})
	return lo.Map(valid, func(e DirectoryEntry, _ int) chat.Contact {
		return chat.Contact{ID: chat.UserID(e.ID), DisplayName: e.Username}
	}), nil
}

// EncodeOutbound validates and serializes a send frame.
func EncodeOutbound(frame chat.OutboundFrame) ([]byte, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(frame)
}

func ToSnapshot(frame Presence) chat.PresenceSnapshot {
	return chat.PresenceSnapshot{
		Entries: lo.Map(frame.Online, func(c Contact, _ int) chat.Contact {
			return chat.Contact{ID: chat.UserID(c.UserID), DisplayName: c.Username}
		}),
	}
}

func ToMessage(frame Message, provenance chat.Provenance, at time.Time) chat.Message {
	msg := chat.Message{
		ID:         string(frame.ID),
		Sender:     chat.UserID(frame.Sender),
		Recipient:  chat.UserID(frame.Recipient),
		Text:       frame.Text,
		Provenance: provenance,
		ReceivedAt: at,
	}
	if frame.File != "" {
		msg.File = &chat.FileRef{Name: frame.File}
	}
	return msg
}
