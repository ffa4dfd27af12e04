// Package transport owns the single live connection to the chat server and
// its reconnect policy.
//
// A Transport is driven by one goroutine: the owner calls Connect, Send and
// Disconnect, and feeds every value received from Signals back into Dispatch.
// Dialing, reading and the reconnect timer run elsewhere and only ever post
// signals, so the connection state needs no lock.
package transport

import (
	"chat-client/domain/chat"
	"chat-client/domain/event"
	"chat-client/errors"
	"chat-client/infrastructure/wire"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultReconnectDelay = 2 * time.Second
	defaultDialTimeout    = 10 * time.Second
	signalBufferSize      = 64
)

// Handler receives every event the transport produces, on the owner goroutine.
type Handler func(evt event.DomainEvent)

type Config struct {
	URL         string
	DialTimeout time.Duration
	// Policy yields the delay before each reconnect attempt. It is reset once
	// a connection opens. backoff.Stop is never a give-up: FallbackDelay is used.
	Policy        backoff.BackOff
	FallbackDelay time.Duration
}

type Transport struct {
	log         *slog.Logger
	dialer      Dialer
	url         string
	dialTimeout time.Duration
	policy      backoff.BackOff
	fallback    time.Duration
	handler     Handler

	state      chat.ConnectionState
	conn       Conn
	gen        uint64
	wanted     bool
	retry      *time.Timer
	cancelDial context.CancelFunc

	signals   chan Signal
	quit      chan struct{}
	closeOnce sync.Once
}

func NewTransport(log *slog.Logger, dialer Dialer, config Config) *Transport {
	if config.DialTimeout <= 0 {
		config.DialTimeout = defaultDialTimeout
	}
	if config.FallbackDelay <= 0 {
		config.FallbackDelay = DefaultReconnectDelay
	}
	if config.Policy == nil {
		config.Policy = ConstantPolicy(config.FallbackDelay)
	}
	return &Transport{
		log:         log,
		dialer:      dialer,
		url:         config.URL,
		dialTimeout: config.DialTimeout,
		policy:      config.Policy,
		fallback:    config.FallbackDelay,
		state:       chat.Disconnected,
		signals:     make(chan Signal, signalBufferSize),
		quit:        make(chan struct{}),
	}
}

// ConstantPolicy retries after the same delay forever.
func ConstantPolicy(delay time.Duration) backoff.BackOff {
	return backoff.NewConstantBackOff(delay)
}

// ExponentialPolicy doubles the delay up to max, with jitter.
func ExponentialPolicy(initial, max time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	b.Reset()
	return b
}

func (t *Transport) SetHandler(h Handler) {
	t.handler = h
}

func (t *Transport) State() chat.ConnectionState {
	return t.state
}

// Signals delivers completions of background work. Every value must be
// passed to Dispatch by the owner goroutine.
func (t *Transport) Signals() <-chan Signal {
	return t.signals
}

// Connect starts a connection attempt. It is a no-op while Connecting or
// Connected. A pending reconnect is replaced by this attempt.
func (t *Transport) Connect(ctx context.Context) {
	t.wanted = true
	if t.state != chat.Disconnected {
		return
	}
	t.stopRetry()
	t.gen++
	gen := t.gen
	t.setState(chat.Connecting, nil)

	dialCtx, cancel := context.WithTimeout(ctx, t.dialTimeout)
	t.cancelDial = cancel
	go func() {
		defer cancel()
		conn, err := t.dialer.Dial(dialCtx, t.url)
		t.post(dialed{gen: gen, conn: conn, err: err})
	}()
}

// Send writes one frame. It fails with ErrTransportUnavailable unless
// Connected; nothing is queued.
func (t *Transport) Send(frame chat.OutboundFrame) error {
	data, err := wire.EncodeOutbound(frame)
	if err != nil {
		return err
	}
	if t.state != chat.Connected || t.conn == nil {
		return errors.ErrTransportUnavailable
	}
	if err := t.conn.WriteMessage(data); err != nil {
		// The reader observes the broken connection and reports the loss.
		_ = t.conn.Close()
		return fmt.Errorf("%w: %w", errors.ErrTransportUnavailable, err)
	}
	return nil
}

// Disconnect cancels any pending reconnect and closes the connection.
// The transport stays Disconnected until Connect is called again.
func (t *Transport) Disconnect() {
	t.wanted = false
	t.stopRetry()
	t.gen++
	if t.cancelDial != nil {
		t.cancelDial()
		t.cancelDial = nil
	}
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	if t.state != chat.Disconnected {
		t.setState(chat.Disconnected, nil)
	}
}

// Close disconnects and releases the background goroutines still trying to
// post signals. The transport cannot be used afterwards.
func (t *Transport) Close() {
	t.Disconnect()
	t.closeOnce.Do(func() { close(t.quit) })
}

// Dispatch applies a background completion. Signals from a superseded
// attempt or connection are ignored.
func (t *Transport) Dispatch(ctx context.Context, sig Signal) {
	if sig.generation() != t.gen {
		if d, ok := sig.(dialed); ok && d.conn != nil {
			_ = d.conn.Close()
		}
		return
	}

	switch s := sig.(type) {
	case dialed:
		if t.state != chat.Connecting {
			return
		}
		t.cancelDial = nil
		if s.err != nil {
			t.log.Warn("Connection attempt failed", "url", t.url, "error", s.err)
			t.lose(s.err)
			return
		}
		t.conn = s.conn
		t.policy.Reset()
		t.setState(chat.Connected, nil)
		go t.read(s.gen, s.conn)
	case received:
		if t.state != chat.Connected {
			return
		}
		t.deliver(s.data)
	case lost:
		if t.state != chat.Connected {
			return
		}
		t.log.Warn("Connection lost", "url", t.url, "error", s.err)
		_ = t.conn.Close()
		t.conn = nil
		t.lose(s.err)
	case retryDue:
		t.retry = nil
		if !t.wanted || t.state != chat.Disconnected {
			return
		}
		t.Connect(ctx)
	}
}

func (t *Transport) lose(err error) {
	t.setState(chat.Disconnected, err)
	t.scheduleRetry()
}

// scheduleRetry arms the single reconnect timer. Only the Disconnected state
// reaches it, and an already armed timer is kept.
func (t *Transport) scheduleRetry() {
	if !t.wanted || t.retry != nil {
		return
	}
	delay := t.policy.NextBackOff()
	if delay == backoff.Stop || delay < 0 {
		delay = t.fallback
	}
	gen := t.gen
	t.log.Info("Reconnect scheduled", "delay", delay)
	t.retry = time.AfterFunc(delay, func() {
		t.post(retryDue{gen: gen})
	})
}

func (t *Transport) stopRetry() {
	if t.retry != nil {
		t.retry.Stop()
		t.retry = nil
	}
}

func (t *Transport) read(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			t.post(lost{gen: gen, err: err})
			return
		}
		t.post(received{gen: gen, data: data})
	}
}

func (t *Transport) deliver(data []byte) {
	evt, err := wire.Classify(data, time.Now().UTC())
	if err != nil {
		t.log.Warn("Dropping inbound frame", "error", err, "size", len(data))
		t.emit(event.FrameRejected{Raw: data, Err: err})
		return
	}
	t.emit(evt)
}

func (t *Transport) setState(state chat.ConnectionState, err error) {
	previous := t.state
	t.state = state
	t.log.Info("Connection state changed", "from", previous, "to", state)
	t.emit(event.ConnectionStateChanged{State: state, Err: err, At: time.Now().UTC()})
}

func (t *Transport) emit(evt event.DomainEvent) {
	if t.handler != nil {
		t.handler(evt)
	}
}

func (t *Transport) post(s Signal) {
	select {
	case t.signals <- s:
	case <-t.quit:
	}
}
