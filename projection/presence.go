package projection

import (
	"chat-client/domain/chat"
	"maps"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Presence holds the last presence snapshot as id -> display name.
// The local user is never part of it. There is no staleness detection:
// presence is exactly as fresh as the last snapshot.
type Presence struct {
	self   chat.UserID
	online map[chat.UserID]string
}

func NewPresence(self chat.UserID) *Presence {
	return &Presence{self: self, online: make(map[chat.UserID]string)}
}

// Update replaces the whole state, nothing from the previous snapshot survives.
func (p *Presence) Update(snapshot chat.PresenceSnapshot) {
	online := make(map[chat.UserID]string, len(snapshot.Entries))
	for _, entry := range snapshot.Entries {
		if entry.ID == "" || entry.ID == p.self {
			continue
		}
		online[entry.ID] = entry.DisplayName
	}
	p.online = online
}

func (p *Presence) CurrentOnline() map[chat.UserID]string {
	return maps.Clone(p.online)
}

func (p *Presence) IsOnline(id chat.UserID) bool {
	_, ok := p.online[id]
	return ok
}

// Offline returns the directory minus online contacts minus self,
// sorted by display name.
func (p *Presence) Offline(directory []chat.Contact) []chat.Contact {
	offline := lo.Filter(directory, func(c chat.Contact, _ int) bool {
		return c.ID != p.self && !p.IsOnline(c.ID)
	})
	offline = lo.UniqBy(offline, func(c chat.Contact) chat.UserID { return c.ID })
	slices.SortStableFunc(offline, func(a, b chat.Contact) int {
		return strings.Compare(strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName))
	})
	return offline
}

func (p *Presence) Reset() {
	p.online = make(map[chat.UserID]string)
}
