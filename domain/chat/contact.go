package chat

// Contact is an entry of the server contact directory.
type Contact struct {
	ID          UserID
	DisplayName string
}

// Identity is the local user as carried by the session token.
type Identity struct {
	ID       UserID
	Username string
}

// PresenceSnapshot is a full statement of who is connected right now.
// It replaces the previous snapshot, it is never merged into it.
type PresenceSnapshot struct {
	Entries []Contact
}
