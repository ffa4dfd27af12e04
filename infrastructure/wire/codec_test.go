package wire

import (
	"chat-client/domain/chat"
	"chat-client/domain/event"
	"chat-client/errors"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("presence frame", func(t *testing.T) {
		req := require.New(t)
		evt, err := Classify([]byte(`{"online":[{"userId":"a","username":"Ann"},{"userId":"b","username":"Ben"}]}`), at)
		req.NoError(err)

		presence, ok := evt.(event.PresenceReceived)
		req.True(ok)
		req.Equal([]chat.Contact{{ID: "a", DisplayName: "Ann"}, {ID: "b", DisplayName: "Ben"}}, presence.Snapshot.Entries)
	})

	t.Run("empty presence frame", func(t *testing.T) {
		req := require.New(t)
		evt, err := Classify([]byte(`{"online":[]}`), at)
		req.NoError(err)
		req.Empty(evt.(event.PresenceReceived).Snapshot.Entries)
	})

	t.Run("chat frame with file and numeric id", func(t *testing.T) {
		req := require.New(t)
		evt, err := Classify([]byte(`{"_id":1712,"text":"look","sender":"u1","recipient":"u2","file":"cat.png"}`), at)
		req.NoError(err)

		msg := evt.(event.MessageReceived).Message
		req.Equal("1712", msg.ID)
		req.Equal(chat.UserID("u1"), msg.Sender)
		req.Equal(chat.UserID("u2"), msg.Recipient)
		req.Equal("look", msg.Text)
		req.Equal(&chat.FileRef{Name: "cat.png"}, msg.File)
		req.Equal(chat.ProvenancePushed, msg.Provenance)
		req.Equal(at, msg.ReceivedAt)
	})

	t.Run("chat frame with empty text is still chat", func(t *testing.T) {
		req := require.New(t)
		evt, err := Classify([]byte(`{"_id":"9","text":"","sender":"u1","recipient":"u2","file":"a.pdf"}`), at)
		req.NoError(err)
		req.IsType(event.MessageReceived{}, evt)
	})

	rejected := []struct {
		name  string
		frame string
		err   error
	}{
		{"not json", `{"online":`, errors.ErrMalformedFrame},
		{"not an object", `["online"]`, errors.ErrMalformedFrame},
		{"online not a list", `{"online":"a"}`, errors.ErrMalformedFrame},
		{"chat without id", `{"text":"a","sender":"u1","recipient":"u2"}`, errors.ErrMalformedFrame},
		{"chat without sender", `{"_id":"1","text":"a","recipient":"u2"}`, errors.ErrMalformedFrame},
		{"chat with object id", `{"_id":{"x":1},"text":"a","sender":"u1","recipient":"u2"}`, errors.ErrMalformedFrame},
		{"neither presence nor chat", `{"hello":"world"}`, errors.ErrUnknownFrame},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Classify([]byte(tt.frame), at)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestDecodeHistory_SkipsUnusableEntries(t *testing.T) {
	req := require.New(t)
	body := `[
		{"_id":"a","sender":"u1","recipient":"u2","text":"one","createdAt":"2026-01-01T00:00:00Z"},
		{"sender":"u1","recipient":"u2","text":"no id"},
		{"_id":"b","sender":"u2","recipient":"u1","text":"two"}
	]`

	messages, skipped, err := DecodeHistory([]byte(body), time.Now())

	req.NoError(err)
	req.Equal(1, skipped)
	req.Len(messages, 2)
	req.Equal("a", messages[0].ID)
	req.Equal("b", messages[1].ID)
	req.Equal(chat.ProvenanceFetched, messages[1].Provenance)
}

func TestDecodeHistory_RejectsNonArray(t *testing.T) {
	_, _, err := DecodeHistory([]byte(`{"error":"nope"}`), time.Now())
	require.ErrorIs(t, err, errors.ErrMalformedFrame)
}

func TestDecodeDirectory(t *testing.T) {
	req := require.New(t)

	contacts, err := DecodeDirectory([]byte(`[{"_id":"u1","username":"alice"},{"username":"ghost"},{"_id":"u2","username":"bob"}]`))

	req.NoError(err)
	req.Equal([]chat.Contact{{ID: "u1", DisplayName: "alice"}, {ID: "u2", DisplayName: "bob"}}, contacts)
}

func TestEncodeOutbound(t *testing.T) {
	t.Run("text only", func(t *testing.T) {
		req := require.New(t)
		data, err := EncodeOutbound(chat.OutboundFrame{Recipient: "u2", Text: "hi"})
		req.NoError(err)
		req.JSONEq(`{"recipient":"u2","text":"hi"}`, string(data))
	})

	t.Run("with file as data url", func(t *testing.T) {
		req := require.New(t)
		file := chat.NewOutboundFile("note.txt", []byte("hello world"))
		data, err := EncodeOutbound(chat.OutboundFrame{Recipient: "u2", File: &file})
		req.NoError(err)

		var decoded struct {
			File struct {
				Name string `json:"name"`
				Data string `json:"data"`
			} `json:"file"`
		}
		req.NoError(json.Unmarshal(data, &decoded))
		req.Equal("note.txt", decoded.File.Name)
		req.True(strings.HasPrefix(decoded.File.Data, "data:text/plain;base64,"))
	})

	t.Run("missing recipient", func(t *testing.T) {
		_, err := EncodeOutbound(chat.OutboundFrame{Text: "hi"})
		require.ErrorIs(t, err, errors.ErrInvalidOutbound)
	})

	t.Run("nothing to send", func(t *testing.T) {
		_, err := EncodeOutbound(chat.OutboundFrame{Recipient: "u2", Text: "   "})
		require.ErrorIs(t, err, errors.ErrEmptyMessage)
	})
}
