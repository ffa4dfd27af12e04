package runtime

import (
	"chat-client/contract"
	"chat-client/domain/chat"
	"chat-client/domain/event"
	"chat-client/errors"
	"chat-client/infrastructure/transport"
	"chat-client/projection"
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the running client: it owns the transport, feeds presence and
// messages into their projections and publishes a snapshot after every
// event.
//
// All session state is confined to the goroutine executing Run. Public
// methods hand a closure to that goroutine and wait for its answer; slow
// work (HTTP fetches, dialing) runs on the side and reports back through
// the same loop.
type Session struct {
	log       *slog.Logger
	self      chat.Identity
	transport *transport.Transport
	api       contract.IChatAPI
	cache     contract.IHistoryRepository
	events    chan<- event.DomainEvent

	// loop-confined
	ctx            context.Context
	presence       *projection.Presence
	reconciler     *projection.Reconciler
	directory      []chat.Contact
	selected       chat.UserID
	historySeq     uint64
	appliedHistory uint64
	directorySeq   uint64
	appliedDir     uint64
	closed         bool

	commands    chan command
	completions chan func()
	done        chan struct{}
	doneOnce    sync.Once
}

type command struct {
	run   func(ctx context.Context) error
	reply chan error
}

// NewSession wires a session. cache may be nil.
func NewSession(
	log *slog.Logger,
	self chat.Identity,
	tr *transport.Transport,
	api contract.IChatAPI,
	cache contract.IHistoryRepository,
	events chan<- event.DomainEvent,
) *Session {
	return &Session{
		log:         log,
		self:        self,
		transport:   tr,
		api:         api,
		cache:       cache,
		events:      events,
		presence:    projection.NewPresence(self.ID),
		reconciler:  projection.NewReconciler(self.ID),
		commands:    make(chan command),
		completions: make(chan func(), 16),
		done:        make(chan struct{}),
	}
}

func (s *Session) Self() chat.Identity { return s.self }

// Done is closed once the session ended, by logout or cancellation.
func (s *Session) Done() <-chan struct{} { return s.done }

// Run starts the session: it connects the transport, loads the contact
// directory and processes events until logout (returns nil) or until ctx
// ends (returns the context error).
func (s *Session) Run(ctx context.Context) error {
	if s.closed {
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.ctx = loopCtx

	s.transport.SetHandler(s.onTransportEvent)
	s.transport.Connect(loopCtx)
	s.refreshDirectory()
	s.publishSnapshot()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return ctx.Err()
		case sig := <-s.transport.Signals():
			s.transport.Dispatch(loopCtx, sig)
		case cmd := <-s.commands:
			cmd.reply <- cmd.run(loopCtx)
		case complete := <-s.completions:
			complete()
		}
		if s.closed {
			s.shutdown()
			return nil
		}
	}
}

// SelectConversation makes contactID the active conversation and fetches
// its history. A cached view, if any, is shown until the fetch answers.
func (s *Session) SelectConversation(ctx context.Context, contactID chat.UserID) error {
	return s.do(ctx, func(context.Context) error {
		if contactID == "" {
			return errors.ErrNoConversationSelected
		}
		s.selected = contactID
		s.seedFromCache(contactID)
		s.fetchHistory(contactID)
		s.publishSnapshot()
		return nil
	})
}

// Send writes a message to the selected contact. Text is echoed locally once
// the transport accepted the frame. A file is not echoed: the conversation is
// fetched again to obtain the server-side file reference.
func (s *Session) Send(ctx context.Context, text string, file *chat.OutboundFile) error {
	return s.do(ctx, func(context.Context) error {
		if s.selected == "" {
			return errors.ErrNoConversationSelected
		}
		recipient := s.selected
		if err := s.transport.Send(chat.OutboundFrame{Recipient: recipient, Text: text, File: file}); err != nil {
			return err
		}
		if file != nil {
			s.fetchHistory(recipient)
			return nil
		}
		s.append(chat.Message{
			ID:         uuid.Must(uuid.NewV7()).String(),
			Sender:     s.self.ID,
			Recipient:  recipient,
			Text:       text,
			Provenance: chat.ProvenanceLocal,
			ReceivedAt: time.Now().UTC(),
		}, true)
		return nil
	})
}

// Logout terminates the server session, then tears the local one down even
// if the server call failed. Run returns once teardown is done.
func (s *Session) Logout(ctx context.Context) error {
	select {
	case <-s.done:
		return errors.ErrSessionClosed
	default:
	}
	logoutErr := s.api.Logout(ctx)
	return s.do(context.WithoutCancel(ctx), func(context.Context) error {
		if logoutErr != nil {
			s.log.Warn("Server logout failed, tearing down locally", "error", logoutErr)
			s.publish(event.LogoutFailed{Err: logoutErr})
		}
		s.transport.Disconnect()
		s.presence.Reset()
		s.reconciler.Reset()
		s.directory = nil
		s.selected = ""
		s.closed = true
		s.publishSnapshot()
		s.publish(event.SessionClosed{Owner: s.self.ID, At: time.Now().UTC()})
		return nil
	})
}

func (s *Session) Snapshot(ctx context.Context) (chat.Snapshot, error) {
	var snapshot chat.Snapshot
	err := s.do(ctx, func(context.Context) error {
		snapshot = s.snapshot()
		return nil
	})
	return snapshot, err
}

func (s *Session) do(ctx context.Context, fn func(ctx context.Context) error) error {
	cmd := command{run: fn, reply: make(chan error, 1)}
	select {
	case s.commands <- cmd:
	case <-s.done:
		return errors.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-s.done:
		return errors.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) onTransportEvent(evt event.DomainEvent) {
	switch e := evt.(type) {
	case event.ConnectionStateChanged:
		s.publish(e)
		s.publishSnapshot()
	case event.PresenceReceived:
		before := s.presence.CurrentOnline()
		s.presence.Update(e.Snapshot)
		online := s.presence.CurrentOnline()
		s.publish(event.PresenceUpdated{Online: online})
		if !maps.Equal(before, online) {
			s.refreshDirectory()
		}
		s.publishSnapshot()
	case event.MessageReceived:
		s.append(e.Message, false)
	case event.FrameRejected:
		s.publish(e)
	}
}

func (s *Session) append(msg chat.Message, local bool) {
	var inserted bool
	if local {
		inserted = s.reconciler.AppendLocalOptimistic(msg)
	} else {
		inserted = s.reconciler.AppendIncoming(msg)
	}
	if !inserted {
		s.log.Debug("Duplicate message ignored", "message_id", msg.ID)
		return
	}
	contact := msg.Partner(s.self.ID)
	s.publish(event.MessageAppended{
		Owner:        s.self.ID,
		Contact:      contact,
		Message:      msg,
		Conversation: s.reconciler.Conversation(contact),
	})
	s.publishSnapshot()
}

func (s *Session) fetchHistory(contact chat.UserID) {
	s.historySeq++
	seq := s.historySeq
	ctx := s.ctx
	go func() {
		messages, err := s.api.History(ctx, contact)
		s.complete(func() { s.applyHistory(contact, seq, messages, err) })
	}()
}

// applyHistory only honors the newest fetch of the still selected contact.
func (s *Session) applyHistory(contact chat.UserID, seq uint64, messages []chat.Message, err error) {
	if contact != s.selected {
		s.log.Debug("Discarding history of a conversation no longer selected", "contact_id", contact)
		return
	}
	if seq <= s.appliedHistory {
		s.log.Debug("Discarding superseded history", "contact_id", contact, "seq", seq)
		return
	}
	if err != nil {
		s.log.Warn("History fetch failed, keeping current view", "contact_id", contact, "error", err)
		s.publish(event.FetchFailed{Resource: "messages", Contact: contact, Err: err})
		return
	}
	s.appliedHistory = seq
	s.reconciler.ReplaceAll(contact, messages)
	s.publish(event.ConversationReplaced{
		Owner:    s.self.ID,
		Contact:  contact,
		Messages: s.reconciler.Conversation(contact),
	})
	s.publishSnapshot()
}

func (s *Session) refreshDirectory() {
	s.directorySeq++
	seq := s.directorySeq
	ctx := s.ctx
	go func() {
		contacts, err := s.api.Contacts(ctx)
		s.complete(func() { s.applyDirectory(seq, contacts, err) })
	}()
}

func (s *Session) applyDirectory(seq uint64, contacts []chat.Contact, err error) {
	if s.closed || seq <= s.appliedDir {
		return
	}
	if err != nil {
		s.log.Warn("Contact directory fetch failed, keeping previous one", "error", err)
		s.publish(event.FetchFailed{Resource: "people", Err: err})
		return
	}
	s.appliedDir = seq
	s.directory = contacts
	s.publishSnapshot()
}

func (s *Session) seedFromCache(contact chat.UserID) {
	if s.cache == nil || len(s.reconciler.Conversation(contact)) > 0 {
		return
	}
	cached, err := s.cache.LoadConversation(s.self.ID, contact)
	if err != nil {
		s.log.Warn("Reading cached history failed", "contact_id", contact, "error", err)
		return
	}
	if len(cached) > 0 {
		s.reconciler.ReplaceAll(contact, cached)
	}
}

func (s *Session) complete(fn func()) {
	select {
	case s.completions <- fn:
	case <-s.done:
	}
}

func (s *Session) snapshot() chat.Snapshot {
	var messages []chat.Message
	if s.selected != "" {
		messages = s.reconciler.Conversation(s.selected)
	}
	return chat.Snapshot{
		State:    s.transport.State(),
		Self:     s.self,
		Selected: s.selected,
		Online:   s.presence.CurrentOnline(),
		Offline:  s.presence.Offline(s.directory),
		Messages: messages,
	}
}

func (s *Session) publishSnapshot() {
	s.publish(event.SessionUpdated{Snapshot: s.snapshot()})
}

// publish never blocks the loop. A dropped event is superseded by the next
// snapshot, which carries the full selected conversation.
func (s *Session) publish(evt event.DomainEvent) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- evt:
	default:
		s.log.Warn("Event buffer full, dropping event", "event", evt.Name())
	}
}

func (s *Session) shutdown() {
	s.transport.Close()
	s.doneOnce.Do(func() { close(s.done) })
}
