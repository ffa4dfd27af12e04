// Package projection builds local views from observed events.
// Handles ordering, deduplication, and presence.
// Does not emit events or interact with UI directly.
package projection

import (
	"chat-client/domain/chat"
)

// Timeline holds one conversation in first-seen order, unique by message id.
type Timeline struct {
	Contact  chat.UserID
	Messages []chat.Message
	seen     map[string]struct{}
}

func NewTimeline(contact chat.UserID) *Timeline {
	return &Timeline{
		Contact: contact,
		seen:    make(map[string]struct{}),
	}
}

// Append keeps the first arrival of an id and reports whether msg was inserted.
// A duplicate never moves the existing entry.
func (t *Timeline) Append(msg chat.Message) bool {
	if _, ok := t.seen[msg.ID]; ok {
		return false
	}
	t.seen[msg.ID] = struct{}{}
	t.Messages = append(t.Messages, msg)
	return true
}

// Replace drops the accumulated sequence and imposes the given order.
// Repeated ids inside messages keep their first occurrence.
func (t *Timeline) Replace(messages []chat.Message) {
	t.Messages = make([]chat.Message, 0, len(messages))
	t.seen = make(map[string]struct{}, len(messages))
	for _, msg := range messages {
		t.Append(msg)
	}
}

// View returns a copy safe to hand outside the owning goroutine.
func (t *Timeline) View() []chat.Message {
	return append([]chat.Message(nil), t.Messages...)
}

func (t *Timeline) Len() int { return len(t.Messages) }
