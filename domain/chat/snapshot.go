package chat

import "maps"

// Snapshot is an immutable view of the session published to subscribers
// after every processed event.
type Snapshot struct {
	State    ConnectionState
	Self     Identity
	Selected UserID
	Online   map[UserID]string
	Offline  []Contact
	Messages []Message
}

// Clone returns a deep copy so that a subscriber can keep it around.
func (s Snapshot) Clone() Snapshot {
	c := s
	c.Online = maps.Clone(s.Online)
	c.Offline = append([]Contact(nil), s.Offline...)
	c.Messages = append([]Message(nil), s.Messages...)
	return c
}
