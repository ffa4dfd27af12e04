// Package search keeps a full-text index of the messages seen by the session.
package search

import (
	"chat-client/domain/chat"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/blugelabs/bluge"
	"github.com/samber/lo"
)

const (
	fieldText    = "text"
	fieldContact = "contact"
	fieldSender  = "sender"
	defaultLimit = 20
)

type Hit struct {
	MessageID string
	Contact   chat.UserID
	Sender    chat.UserID
	Text      string
	Score     float64
}

type Index struct {
	writer *bluge.Writer
	log    *slog.Logger

	mu      sync.Mutex
	indexed map[chat.UserID]map[string]struct{}
}

// NewInMemoryIndex opens an index that lives as long as the process.
func NewInMemoryIndex(log *slog.Logger) (*Index, error) {
	return open(log, bluge.InMemoryOnlyConfig())
}

// NewIndex opens an index persisted under path.
func NewIndex(log *slog.Logger, path string) (*Index, error) {
	return open(log, bluge.DefaultConfig(path))
}

func open(log *slog.Logger, config bluge.Config) (*Index, error) {
	writer, err := bluge.OpenWriter(config)
	if err != nil {
		return nil, fmt.Errorf("search index opening failed: %w", err)
	}
	return &Index{writer: writer, log: log, indexed: make(map[chat.UserID]map[string]struct{})}, nil
}

// Add indexes messages of the conversation with contact. Known ids are updated.
func (i *Index) Add(contact chat.UserID, messages ...chat.Message) error {
	if len(messages) == 0 {
		return nil
	}
	batch := bluge.NewBatch()
	for _, msg := range messages {
		doc := toDocument(contact, msg)
		batch.Update(doc.ID(), doc)
	}
	if err := i.writer.Batch(batch); err != nil {
		return fmt.Errorf("search index update failed: %w", err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	ids, ok := i.indexed[contact]
	if !ok {
		ids = make(map[string]struct{})
		i.indexed[contact] = ids
	}
	for _, msg := range messages {
		ids[msg.ID] = struct{}{}
	}
	return nil
}

// Replace makes the indexed conversation match messages exactly.
func (i *Index) Replace(contact chat.UserID, messages []chat.Message) error {
	keep := lo.SliceToMap(messages, func(m chat.Message) (string, struct{}) { return m.ID, struct{}{} })

	i.mu.Lock()
	stale := lo.Filter(lo.Keys(i.indexed[contact]), func(id string, _ int) bool {
		_, ok := keep[id]
		return !ok
	})
	i.mu.Unlock()

	if err := i.remove(contact, stale); err != nil {
		return err
	}
	return i.Add(contact, messages...)
}

// Clear removes everything indexed so far.
func (i *Index) Clear() error {
	i.mu.Lock()
	snapshot := i.indexed
	i.indexed = make(map[chat.UserID]map[string]struct{})
	i.mu.Unlock()

	batch := bluge.NewBatch()
	for _, ids := range snapshot {
		for id := range ids {
			batch.Delete(bluge.Identifier(id))
		}
	}
	return i.writer.Batch(batch)
}

// Search runs a match query on message text. An empty contact searches
// every conversation.
func (i *Index) Search(ctx context.Context, terms string, contact chat.UserID, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("search index reader failed: %w", err)
	}
	defer func() { _ = reader.Close() }()

	var query bluge.Query = bluge.NewMatchQuery(terms).SetField(fieldText)
	if contact != "" {
		query = bluge.NewBooleanQuery().
			AddMust(query).
			AddMust(bluge.NewTermQuery(string(contact)).SetField(fieldContact))
	}

	matches, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	var hits []Hit
	match, err := matches.Next()
	for err == nil && match != nil {
		hit := Hit{Score: match.Score}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case fieldText:
				hit.Text = string(value)
			case fieldContact:
				hit.Contact = chat.UserID(value)
			case fieldSender:
				hit.Sender = chat.UserID(value)
			}
			return true
		})
		if err != nil {
			break
		}
		hits = append(hits, hit)
		match, err = matches.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("search iteration failed: %w", err)
	}
	return hits, nil
}

func (i *Index) Close() error {
	return i.writer.Close()
}

func (i *Index) remove(contact chat.UserID, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	batch := bluge.NewBatch()
	for _, id := range ids {
		batch.Delete(bluge.Identifier(id))
	}
	if err := i.writer.Batch(batch); err != nil {
		return fmt.Errorf("search index delete failed: %w", err)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, id := range ids {
		delete(i.indexed[contact], id)
	}
	i.log.Debug("Removed stale messages from index", "contact_id", contact, "count", len(ids))
	return nil
}

func toDocument(contact chat.UserID, msg chat.Message) *bluge.Document {
	return bluge.NewDocument(msg.ID).
		AddField(bluge.NewTextField(fieldText, msg.Text).StoreValue()).
		AddField(bluge.NewKeywordField(fieldContact, string(contact)).StoreValue()).
		AddField(bluge.NewKeywordField(fieldSender, string(msg.Sender)).StoreValue())
}
