// Package wstest provides an in-memory connection and a scripted dialer for
// exercising code built on transport.Transport without a network.
package wstest

import (
	"chat-client/infrastructure/transport"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrClosed  = fmt.Errorf("wstest: connection closed")
	ErrRefused = fmt.Errorf("wstest: connection refused")
)

// Conn is an in-memory connection. The client side uses the transport.Conn
// methods, the test plays the server with Push, Sent and Drop.
type Conn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func NewConn() *Conn {
	return &Conn{
		in:     make(chan []byte, 64),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *Conn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		return nil, ErrClosed
	}
}

func (c *Conn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	select {
	case c.out <- data:
		return nil
	case <-c.closed:
		return ErrClosed
	}
}

func (c *Conn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// Push delivers a frame to the client.
func (c *Conn) Push(frame string) {
	c.in <- []byte(frame)
}

// Sent exposes the frames written by the client.
func (c *Conn) Sent() <-chan []byte {
	return c.out
}

// Drop closes the connection from the server side.
func (c *Conn) Drop() {
	_ = c.Close()
}

func (c *Conn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Dialer refuses the first Failures attempts, then hands out new Conns.
type Dialer struct {
	Latency time.Duration

	mu       sync.Mutex
	failures int
	conns    chan *Conn

	attempts    atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func NewDialer(failures int) *Dialer {
	return &Dialer{failures: failures, conns: make(chan *Conn, 16)}
}

func (d *Dialer) Dial(ctx context.Context, _ string) (transport.Conn, error) {
	n := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	for {
		current := d.maxInFlight.Load()
		if n <= current || d.maxInFlight.CompareAndSwap(current, n) {
			break
		}
	}
	d.attempts.Add(1)

	if d.Latency > 0 {
		select {
		case <-time.After(d.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	refuse := d.failures > 0
	if refuse {
		d.failures--
	}
	d.mu.Unlock()
	if refuse {
		return nil, ErrRefused
	}

	conn := NewConn()
	d.conns <- conn
	return conn, nil
}

// FailNext makes the next n attempts fail.
func (d *Dialer) FailNext(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = n
}

// Accepted returns the server side of each successful dial, in order.
func (d *Dialer) Accepted() <-chan *Conn {
	return d.conns
}

func (d *Dialer) Attempts() int {
	return int(d.attempts.Load())
}

func (d *Dialer) MaxInFlight() int {
	return int(d.maxInFlight.Load())
}
