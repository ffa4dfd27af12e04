package projection

import (
	"chat-client/domain/chat"

	"github.com/samber/lo"
)

// Reconciler merges optimistic echoes, pushed frames and fetched histories
// into one timeline per conversation partner.
// It is not safe for concurrent use; the session loop owns it.
type Reconciler struct {
	self      chat.UserID
	timelines map[chat.UserID]*Timeline
}

func NewReconciler(self chat.UserID) *Reconciler {
	return &Reconciler{self: self, timelines: make(map[chat.UserID]*Timeline)}
}

// AppendLocalOptimistic inserts a message sent by the local user under its
// client-assigned id.
func (r *Reconciler) AppendLocalOptimistic(msg chat.Message) bool {
	msg.Provenance = chat.ProvenanceLocal
	return r.timeline(msg.Partner(r.self)).Append(msg)
}

// AppendIncoming inserts a pushed or confirmed message. It returns false when
// the id is already known to the conversation.
func (r *Reconciler) AppendIncoming(msg chat.Message) bool {
	if msg.Provenance == chat.ProvenanceLocal || msg.Provenance == chat.ProvenanceUnknown {
		msg.Provenance = chat.ProvenancePushed
	}
	return r.timeline(msg.Partner(r.self)).Append(msg)
}

// ReplaceAll applies an authoritative history for contact. Entries that do not
// belong to the conversation are ignored. Unconfirmed optimistic messages
// are discarded: the last full fetch wins.
func (r *Reconciler) ReplaceAll(contact chat.UserID, messages []chat.Message) {
	owned := lo.Filter(messages, func(m chat.Message, _ int) bool {
		return m.Involves(contact)
	})
	r.timeline(contact).Replace(owned)
}

// Conversation returns the ordered messages exchanged with contact.
func (r *Reconciler) Conversation(contact chat.UserID) []chat.Message {
	t, ok := r.timelines[contact]
	if !ok {
		return nil
	}
	return t.View()
}

func (r *Reconciler) Contacts() []chat.UserID {
	return lo.Keys(r.timelines)
}

func (r *Reconciler) Reset() {
	r.timelines = make(map[chat.UserID]*Timeline)
}

func (r *Reconciler) timeline(contact chat.UserID) *Timeline {
	t, ok := r.timelines[contact]
	if !ok {
		t = NewTimeline(contact)
		r.timelines[contact] = t
	}
	return t
}
