// Package chat contains the core concepts of the messaging client.
// Messages are immutable once created. A later arrival sharing the same id
// never replaces the first one, only a full history fetch does.
package chat

import (
	"net/url"
	"strings"
	"time"
)

type UserID string

// Provenance tells where a message entered the client from.
type Provenance int

const (
	ProvenanceUnknown Provenance = iota
	// ProvenanceLocal is an optimistic echo keyed by a client-assigned id.
	ProvenanceLocal
	// ProvenancePushed arrived on the live connection.
	ProvenancePushed
	// ProvenanceFetched came from an authoritative history fetch.
	ProvenanceFetched
)

func (p Provenance) String() string {
	switch p {
	case ProvenanceLocal:
		return "local"
	case ProvenancePushed:
		return "pushed"
	case ProvenanceFetched:
		return "fetched"
	default:
		return "unknown"
	}
}

// FileRef is the server-side name of a file attached to a persisted message.
type FileRef struct {
	Name string
}

// Locator returns the static path the server exposes the file under.
func (f FileRef) Locator(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/uploads/" + url.PathEscape(f.Name)
}

type Message struct {
	ID         string
	Sender     UserID
	Recipient  UserID
	Text       string
	File       *FileRef
	Provenance Provenance
	ReceivedAt time.Time
}

// Partner returns the other party of the message from self's point of view.
func (m Message) Partner(self UserID) UserID {
	if m.Sender == self {
		return m.Recipient
	}
	return m.Sender
}

// Involves reports whether the message belongs to the conversation with contact.
func (m Message) Involves(contact UserID) bool {
	return m.Sender == contact || m.Recipient == contact
}
