package projection

import (
	"chat-client/domain/chat"
	"testing"

	"github.com/stretchr/testify/require"
)

const self chat.UserID = "u1"

func TestReconciler_AppendIncoming_IsIdempotent(t *testing.T) {
	req := require.New(t)
	once := NewReconciler(self)
	twice := NewReconciler(self)
	msg := chat.Message{ID: "m", Sender: "u2", Recipient: self, Text: "a"}

	// When the same message is appended once on one side and twice on the other
	once.AppendIncoming(msg)
	twice.AppendIncoming(msg)
	inserted := twice.AppendIncoming(msg)

	// Then both sequences are identical
	req.False(inserted)
	req.Equal(once.Conversation("u2"), twice.Conversation("u2"))
}

func TestReconciler_DuplicateFrames_YieldOneEntry(t *testing.T) {
	req := require.New(t)
	reconciler := NewReconciler("u2")

	// Given two identical frames from u1 to u2
	frame := chat.Message{ID: "1", Text: "a", Sender: "u1", Recipient: "u2", Provenance: chat.ProvenancePushed}
	reconciler.AppendIncoming(frame)
	reconciler.AppendIncoming(frame)

	// Then the conversation with u1 has a single message
	req.Len(reconciler.Conversation("u1"), 1)
}

func TestReconciler_OptimisticThenConfirmation(t *testing.T) {
	t.Run("same id is a duplicate", func(t *testing.T) {
		req := require.New(t)
		reconciler := NewReconciler(self)
		local := chat.Message{ID: "x", Sender: self, Recipient: "u2", Text: "hi"}

		req.True(reconciler.AppendLocalOptimistic(local))
		req.False(reconciler.AppendIncoming(local))

		conversation := reconciler.Conversation("u2")
		req.Len(conversation, 1)
		req.Equal(chat.ProvenanceLocal, conversation[0].Provenance)
	})

	t.Run("distinct ids are never merged", func(t *testing.T) {
		req := require.New(t)
		reconciler := NewReconciler(self)

		// Given a local echo and a server copy with the same text but a server id
		reconciler.AppendLocalOptimistic(chat.Message{ID: "local-1", Sender: self, Recipient: "u2", Text: "hi"})
		reconciler.AppendIncoming(chat.Message{ID: "srv-1", Sender: self, Recipient: "u2", Text: "hi"})

		// Then both are present in arrival order
		conversation := reconciler.Conversation("u2")
		req.Equal([]string{"local-1", "srv-1"}, ids(conversation))
		req.Equal(chat.ProvenanceLocal, conversation[0].Provenance)
		req.Equal(chat.ProvenancePushed, conversation[1].Provenance)
	})
}

func TestReconciler_SameTextDistinctIds_BothKept(t *testing.T) {
	req := require.New(t)
	reconciler := NewReconciler(self)

	reconciler.AppendIncoming(chat.Message{ID: "1", Sender: "u2", Recipient: self, Text: "ok"})
	reconciler.AppendIncoming(chat.Message{ID: "2", Sender: "u2", Recipient: self, Text: "ok"})

	req.Len(reconciler.Conversation("u2"), 2)
}

func TestReconciler_ReplaceAll_LastFullFetchWins(t *testing.T) {
	req := require.New(t)
	reconciler := NewReconciler(self)

	// Given an optimistic message and a message in another conversation
	reconciler.AppendLocalOptimistic(chat.Message{ID: "local", Sender: self, Recipient: "u2", Text: "pending"})
	reconciler.AppendIncoming(chat.Message{ID: "other", Sender: "u3", Recipient: self, Text: "hey"})

	// When the history of u2 arrives, including a stray message
	reconciler.ReplaceAll("u2", []chat.Message{
		{ID: "s2", Sender: "u2", Recipient: self, Text: "second"},
		{ID: "s1", Sender: self, Recipient: "u2", Text: "first"},
		{ID: "stray", Sender: "u3", Recipient: self, Text: "not here"},
	})

	// Then u2 shows exactly the server order without the optimistic entry
	req.Equal([]string{"s2", "s1"}, ids(reconciler.Conversation("u2")))
	// And the other conversation is untouched
	req.Equal([]string{"other"}, ids(reconciler.Conversation("u3")))
}

func TestReconciler_Reset(t *testing.T) {
	req := require.New(t)
	reconciler := NewReconciler(self)
	reconciler.AppendIncoming(chat.Message{ID: "1", Sender: "u2", Recipient: self})

	reconciler.Reset()

	req.Empty(reconciler.Conversation("u2"))
	req.Empty(reconciler.Contacts())
}

func TestReconciler_AppendIncoming_UnknownProvenanceIsPushed(t *testing.T) {
	req := require.New(t)
	reconciler := NewReconciler(self)

	req.True(reconciler.AppendIncoming(chat.Message{ID: "1", Sender: "u2", Recipient: self, Text: "hey"}))

	req.Equal(chat.ProvenancePushed, reconciler.Conversation("u2")[0].Provenance)
}
