package socket

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/netip"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendQueueSize  = 256
)

// ErrSlowConsumer is returned when a connection's send queue is full. The
// connection is closed.
var ErrSlowConsumer = errors.New("socket send queue full")

// ErrClosed is returned when emitting to a closed connection.
var ErrClosed = errors.New("socket closed")

// Conn is one connected client.
type Conn struct {
	id       string
	remoteIP string
	ws       *websocket.Conn
	send     chan []byte

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func newConn(id string, ws *websocket.Conn, r *http.Request) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		id:       id,
		remoteIP: remoteIP(r),
		ws:       ws,
		send:     make(chan []byte, sendQueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// RemoteIP returns the client address, IPv4-mapped addresses unwrapped.
func (c *Conn) RemoteIP() string { return c.remoteIP }

// Context is cancelled when the connection closes.
func (c *Conn) Context() context.Context { return c.ctx }

// Emit queues an event for this connection without blocking.
func (c *Conn) Emit(event string, data any) error {
	payload, err := encodeFrame(event, "", data, "")
	if err != nil {
		return err
	}
	return c.enqueue(payload)
}

func (c *Conn) enqueue(payload []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		c.close()
		return ErrSlowConsumer
	}
}

func (c *Conn) close() {
	c.once.Do(func() {
		c.cancel()
		_ = c.ws.Close()
	})
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case <-c.ctx.Done():
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return host
	}
	return addr.Unmap().String()
}
