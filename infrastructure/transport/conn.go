package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one open duplex connection. ReadMessage is called by a single
// reader goroutine, WriteMessage by the goroutine driving the Transport.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

const (
	defaultWriteWait = 10 * time.Second
	defaultPongWait  = 60 * time.Second
)

// GorillaDialer opens websocket connections and keeps them alive with pings.
type GorillaDialer struct {
	Header       http.Header
	WriteTimeout time.Duration
	PongTimeout  time.Duration
	Log          *slog.Logger
}

func (d GorillaDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 45 * time.Second,
	}
	ws, resp, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	writeWait := d.WriteTimeout
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	pongWait := d.PongTimeout
	if pongWait <= 0 {
		pongWait = defaultPongWait
	}
	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	c := &gorillaConn{
		ws:        ws,
		writeWait: writeWait,
		pongWait:  pongWait,
		log:       log,
		done:      make(chan struct{}),
	}
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	go c.keepalive()
	return c, nil
}

type gorillaConn struct {
	ws        *websocket.Conn
	writeWait time.Duration
	pongWait  time.Duration
	log       *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

func (c *gorillaConn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *gorillaConn) WriteMessage(data []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *gorillaConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(c.writeWait)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = c.ws.Close()
	})
	return err
}

// keepalive pings at 9/10 of the pong wait. WriteControl may run
// concurrently with WriteMessage.
func (c *gorillaConn) keepalive() {
	ticker := time.NewTicker(c.pongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait)); err != nil {
				c.log.Debug("Ping failed, closing connection", "error", err)
				_ = c.ws.Close()
				return
			}
		}
	}
}
