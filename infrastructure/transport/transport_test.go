package transport_test

import (
	"chat-client/domain/chat"
	"chat-client/domain/event"
	"chat-client/errors"
	"chat-client/infrastructure/transport"
	"chat-client/infrastructure/transport/wstest"
	"context"
	"encoding/json"
	goerrors "errors"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t      *testing.T
	ctx    context.Context
	tr     *transport.Transport
	dialer *wstest.Dialer
	events []event.DomainEvent
}

func newHarness(t *testing.T, failures int, delay time.Duration) *harness {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	dialer := wstest.NewDialer(failures)
	tr := transport.NewTransport(log, dialer, transport.Config{
		URL:    "ws://chat.test",
		Policy: transport.ConstantPolicy(delay),
	})
	h := &harness{t: t, ctx: context.Background(), tr: tr, dialer: dialer}
	tr.SetHandler(func(evt event.DomainEvent) { h.events = append(h.events, evt) })
	t.Cleanup(tr.Close)
	return h
}

// pumpUntil plays the owner goroutine until cond holds.
func (h *harness) pumpUntil(cond func() bool) {
	h.t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case sig := <-h.tr.Signals():
			h.tr.Dispatch(h.ctx, sig)
		case <-deadline:
			h.t.Fatalf("condition not reached, state is %s", h.tr.State())
		}
	}
}

// pumpFor plays the owner goroutine for a fixed duration.
func (h *harness) pumpFor(d time.Duration) {
	deadline := time.After(d)
	for {
		select {
		case sig := <-h.tr.Signals():
			h.tr.Dispatch(h.ctx, sig)
		case <-deadline:
			return
		}
	}
}

func (h *harness) connected() bool { return h.tr.State() == chat.Connected }

func (h *harness) states() []chat.ConnectionState {
	var states []chat.ConnectionState
	for _, evt := range h.events {
		if changed, ok := evt.(event.ConnectionStateChanged); ok {
			states = append(states, changed.State)
		}
	}
	return states
}

func (h *harness) count(match func(event.DomainEvent) bool) int {
	n := 0
	for _, evt := range h.events {
		if match(evt) {
			n++
		}
	}
	return n
}

func TestTransport_Connect(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, 0, 5*time.Millisecond)

	// When connecting
	h.tr.Connect(h.ctx)
	req.Equal(chat.Connecting, h.tr.State())
	h.pumpUntil(h.connected)

	// Then the transport went through Connecting to Connected
	req.Equal([]chat.ConnectionState{chat.Connecting, chat.Connected}, h.states())
	req.Equal(1, h.dialer.Attempts())
}

func TestTransport_Connect_IsIdempotent(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, 0, 5*time.Millisecond)
	h.dialer.Latency = 20 * time.Millisecond

	// Given a connect request already in progress
	h.tr.Connect(h.ctx)
	h.tr.Connect(h.ctx)
	h.pumpUntil(h.connected)

	// When connect is requested again while connected
	h.tr.Connect(h.ctx)
	h.pumpFor(30 * time.Millisecond)

	// Then a single dial happened
	req.Equal(1, h.dialer.Attempts())
	req.Equal(chat.Connected, h.tr.State())
}

func TestTransport_Send_WhileDisconnected(t *testing.T) {
	h := newHarness(t, 0, 5*time.Millisecond)

	err := h.tr.Send(chat.OutboundFrame{Recipient: "u2", Text: "hi"})

	require.ErrorIs(t, err, errors.ErrTransportUnavailable)
}

func TestTransport_Send_WritesFrame(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, 0, 5*time.Millisecond)
	h.tr.Connect(h.ctx)
	h.pumpUntil(h.connected)
	server := <-h.dialer.Accepted()

	// When a frame is sent
	req.NoError(h.tr.Send(chat.OutboundFrame{Recipient: "u2", Text: "hi"}))

	// Then the server receives the wire format
	select {
	case data := <-server.Sent():
		var frame map[string]any
		req.NoError(json.Unmarshal(data, &frame))
		req.Equal("u2", frame["recipient"])
		req.Equal("hi", frame["text"])
		req.NotContains(frame, "file")
	case <-time.After(time.Second):
		req.Fail("frame was not written")
	}
}

func TestTransport_Send_InvalidFrameIsRejectedBeforeWriting(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, 0, 5*time.Millisecond)
	h.tr.Connect(h.ctx)
	h.pumpUntil(h.connected)
	server := <-h.dialer.Accepted()

	err := h.tr.Send(chat.OutboundFrame{Text: "no recipient"})

	req.ErrorIs(err, errors.ErrInvalidOutbound)
	req.Empty(server.Sent())
}

func TestTransport_ReconnectEventuallySucceeds(t *testing.T) {
	req := require.New(t)
	// Given a server refusing the first three attempts
	h := newHarness(t, 3, 5*time.Millisecond)
	h.dialer.Latency = 2 * time.Millisecond

	// When connecting once, with no further intervention
	h.tr.Connect(h.ctx)
	h.pumpUntil(h.connected)

	// Then the fourth attempt succeeded, never two at a time
	req.Equal(4, h.dialer.Attempts())
	req.Equal(1, h.dialer.MaxInFlight())
	failures := h.count(func(evt event.DomainEvent) bool {
		changed, ok := evt.(event.ConnectionStateChanged)
		return ok && changed.State == chat.Disconnected && changed.Err != nil
	})
	req.Equal(3, failures)
}

func TestTransport_ReconnectAfterServerDrop(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, 0, 5*time.Millisecond)
	h.tr.Connect(h.ctx)
	h.pumpUntil(h.connected)
	first := <-h.dialer.Accepted()

	// When the server drops the connection
	first.Drop()
	h.pumpUntil(func() bool { return h.tr.State() == chat.Disconnected })

	// Then a new connection is opened after the delay
	h.pumpUntil(h.connected)
	second := <-h.dialer.Accepted()
	req.NotSame(first, second)
	req.Equal(2, h.dialer.Attempts())
	req.Equal([]chat.ConnectionState{
		chat.Connecting, chat.Connected, chat.Disconnected, chat.Connecting, chat.Connected,
	}, h.states())
}

func TestTransport_Disconnect_CancelsPendingReconnect(t *testing.T) {
	req := require.New(t)
	// Given a failed attempt with a reconnect scheduled
	h := newHarness(t, 1, 40*time.Millisecond)
	h.tr.Connect(h.ctx)
	h.pumpUntil(func() bool { return h.dialer.Attempts() == 1 && h.tr.State() == chat.Disconnected })

	// When disconnecting explicitly
	h.tr.Disconnect()
	h.pumpFor(100 * time.Millisecond)

	// Then no further attempt is made
	req.Equal(1, h.dialer.Attempts())
	req.Equal(chat.Disconnected, h.tr.State())

	// And an explicit connect works again
	h.tr.Connect(h.ctx)
	h.pumpUntil(h.connected)
	req.Equal(2, h.dialer.Attempts())
}

func TestTransport_Disconnect_ClosesConnectionAndDiscardsLateDial(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, 0, 5*time.Millisecond)
	h.dialer.Latency = 20 * time.Millisecond

	// Given a dial still in flight
	h.tr.Connect(h.ctx)

	// When disconnecting before it completes
	h.tr.Disconnect()
	h.pumpFor(60 * time.Millisecond)

	// Then the transport stays disconnected
	req.Equal(chat.Disconnected, h.tr.State())
	req.Equal(1, h.dialer.Attempts())
}

func TestTransport_InboundClassification(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, 0, 5*time.Millisecond)
	h.tr.Connect(h.ctx)
	h.pumpUntil(h.connected)
	server := <-h.dialer.Accepted()

	// When the server pushes a presence frame, garbage, and a chat frame
	server.Push(`{"online":[{"userId":"u2","username":"bob"}]}`)
	server.Push(`{"online":`)
	server.Push(`{"_id":"1","text":"a","sender":"u2","recipient":"u1"}`)

	isChat := func(evt event.DomainEvent) bool { _, ok := evt.(event.MessageReceived); return ok }
	h.pumpUntil(func() bool { return h.count(isChat) == 1 })

	// Then each frame produced its event and the garbage did not break the connection
	req.Equal(1, h.count(func(evt event.DomainEvent) bool { _, ok := evt.(event.PresenceReceived); return ok }))
	rejected := h.count(func(evt event.DomainEvent) bool {
		r, ok := evt.(event.FrameRejected)
		return ok && goerrors.Is(r.Err, errors.ErrMalformedFrame)
	})
	req.Equal(1, rejected)
	req.Equal(chat.Connected, h.tr.State())
	req.Equal(1, h.dialer.Attempts())
}
