package storage

import (
	"chat-client/domain/chat"
	goerrors "errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/samber/lo"
)

const historyPrefix = "history:"

// HistoryRepository keeps the last known view of each conversation so that
// selecting a contact shows something before the server answers.
type HistoryRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewHistoryRepository(db *badger.DB, log *slog.Logger, limitMessages *int) HistoryRepository {
	return HistoryRepository{db: db, log: log, limitMessages: limitMessages}
}

type DiskMessage struct {
	ID         string `cbor:"1,keyasint"`
	Sender     string `cbor:"2,keyasint"`
	Recipient  string `cbor:"3,keyasint"`
	Text       string `cbor:"4,keyasint"`
	File       string `cbor:"5,keyasint,omitempty"`
	Provenance int    `cbor:"6,keyasint"`
	ReceivedAt int64  `cbor:"7,keyasint"`
}

type DiskConversation struct {
	Owner    string        `cbor:"1,keyasint"`
	Contact  string        `cbor:"2,keyasint"`
	StoredAt int64         `cbor:"3,keyasint"`
	Messages []DiskMessage `cbor:"4,keyasint"`
}

// ConversationSummary describes one cached conversation.
type ConversationSummary struct {
	Owner    chat.UserID
	Contact  chat.UserID
	Count    int
	StoredAt time.Time
}

// StoreConversation overwrites the cached view of the conversation.
// The key is "history:{owner}:{contact}". When limitMessages is set only the
// newest messages are kept.
func (h HistoryRepository) StoreConversation(owner, contact chat.UserID, messages []chat.Message) error {
	if h.limitMessages != nil && len(messages) > *h.limitMessages {
		messages = messages[len(messages)-*h.limitMessages:]
	}
	bytes, err := cbor.Marshal(DiskConversation{
		Owner:    string(owner),
		Contact:  string(contact),
		StoredAt: time.Now().UnixNano(),
		Messages: lo.Map(messages, func(m chat.Message, _ int) DiskMessage { return fromMessage(m) }),
	})
	if err != nil {
		return err
	}
	return h.db.Update(func(txn *badger.Txn) error {
		return txn.Set(conversationKey(owner, contact), bytes)
	})
}

// LoadConversation returns nil without error when nothing is cached.
func (h HistoryRepository) LoadConversation(owner, contact chat.UserID) ([]chat.Message, error) {
	var conversation DiskConversation
	err := h.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(conversationKey(owner, contact))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return cbor.Unmarshal(value, &conversation)
		})
	})
	if goerrors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lo.Map(conversation.Messages, func(m DiskMessage, _ int) chat.Message { return toMessage(m) }), nil
}

// DropOwner removes every conversation cached for owner.
func (h HistoryRepository) DropOwner(owner chat.UserID) error {
	h.log.Debug("Dropping cached history", "owner", owner)
	return h.db.DropPrefix(ownerPrefix(owner))
}

// ListConversations scans every cached conversation, all owners included.
func (h HistoryRepository) ListConversations() ([]ConversationSummary, error) {
	var summaries []ConversationSummary
	err := h.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = []byte(historyPrefix)
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(value []byte) error {
				summary, err := DecodeSummary(value)
				if err != nil {
					return fmt.Errorf("corrupted entry %q: %w", item.Key(), err)
				}
				summaries = append(summaries, summary)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return summaries, err
}

// DecodeSummary reads the header of a stored conversation.
func DecodeSummary(value []byte) (ConversationSummary, error) {
	var conversation DiskConversation
	if err := cbor.Unmarshal(value, &conversation); err != nil {
		return ConversationSummary{}, err
	}
	return ConversationSummary{
		Owner:    chat.UserID(conversation.Owner),
		Contact:  chat.UserID(conversation.Contact),
		Count:    len(conversation.Messages),
		StoredAt: time.Unix(0, conversation.StoredAt).UTC(),
	}, nil
}

func conversationKey(owner, contact chat.UserID) []byte {
	return []byte(historyPrefix + escape(owner) + ":" + escape(contact))
}

func ownerPrefix(owner chat.UserID) []byte {
	return []byte(historyPrefix + escape(owner) + ":")
}

// escape keeps ids containing ':' or '%' from colliding in the key space.
func escape(id chat.UserID) string {
	return url.QueryEscape(string(id))
}

func fromMessage(m chat.Message) DiskMessage {
	disk := DiskMessage{
		ID:         m.ID,
		Sender:     string(m.Sender),
		Recipient:  string(m.Recipient),
		Text:       m.Text,
		Provenance: int(m.Provenance),
	}
	if !m.ReceivedAt.IsZero() {
		disk.ReceivedAt = m.ReceivedAt.UnixNano()
	}
	if m.File != nil {
		disk.File = m.File.Name
	}
	return disk
}

func toMessage(d DiskMessage) chat.Message {
	msg := chat.Message{
		ID:         d.ID,
		Sender:     chat.UserID(d.Sender),
		Recipient:  chat.UserID(d.Recipient),
		Text:       d.Text,
		Provenance: chat.Provenance(d.Provenance),
	}
	if d.ReceivedAt != 0 {
		msg.ReceivedAt = time.Unix(0, d.ReceivedAt).UTC()
	}
	if d.File != "" {
		msg.File = &chat.FileRef{Name: d.File}
	}
	return msg
}
