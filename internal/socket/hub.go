package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"stagehand/internal/logging"
)

// HandlerFunc answers a request. The returned value becomes the ack data.
type HandlerFunc func(ctx context.Context, c *Conn, data json.RawMessage) (any, error)

// Hub tracks live connections and routes their frames.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu           sync.RWMutex
	conns        map[string]*Conn
	handlers     map[string]HandlerFunc
	disconnectFn []func(*Conn)
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:   logging.NewComponentLogger(logger, "socket"),
		conns:    make(map[string]*Conn),
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers fn for event, replacing any previous handler.
func (h *Hub) Handle(event string, fn HandlerFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[event] = fn
}

// OnDisconnect registers fn to run after a connection is removed.
func (h *Hub) OnDisconnect(fn func(*Conn)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnectFn = append(h.disconnectFn, fn)
}

// Broadcast queues event for every connection. Slow consumers are dropped.
func (h *Hub) Broadcast(event string, data any) {
	payload, err := encodeFrame(event, "", data, "")
	if err != nil {
		h.logger.Error("encode broadcast failed", logging.String("event", event), logging.Error(err))
		return
	}
	for _, c := range h.snapshot() {
		if err := c.enqueue(payload); errors.Is(err, ErrSlowConsumer) {
			logging.WarnWithContext(h.logger, "dropping slow socket client", "socket_slow_consumer",
				logging.String(logging.FieldSocketID, c.ID()),
				logging.String(logging.FieldImpact, "client will reconnect and resynchronise"),
			)
		}
	}
}

// Conn returns the live connection with id.
func (h *Hub) Conn(id string) (*Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[id]
	return c, ok
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close disconnects every client.
func (h *Hub) Close() {
	for _, c := range h.snapshot() {
		c.close()
	}
}

func (h *Hub) snapshot() []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	c := newConn(uuid.NewString(), ws, r)

	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
	h.logger.Debug("socket connected",
		logging.String(logging.FieldSocketID, c.id),
		logging.String("remote_ip", c.remoteIP),
	)

	go c.writePump()
	h.readPump(c)
	h.remove(c)
}

func (h *Hub) readPump(c *Conn) {
	defer c.close()
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				h.logger.Debug("socket read failed", logging.String(logging.FieldSocketID, c.id), logging.Error(err))
			}
			return
		}
		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
			h.logger.Debug("ignoring malformed frame", logging.String(logging.FieldSocketID, c.id))
			continue
		}
		h.dispatch(c, frame)
	}
}

func (h *Hub) dispatch(c *Conn, frame Frame) {
	h.mu.RLock()
	fn, ok := h.handlers[frame.Event]
	h.mu.RUnlock()

	var (
		result any
		err    error
	)
	if ok {
		result, err = fn(c.ctx, c, frame.Data)
	} else {
		err = fmt.Errorf("unknown event %q", frame.Event)
	}
	if err != nil {
		h.logger.Debug("socket request failed",
			logging.String(logging.FieldSocketID, c.id),
			logging.String("event", frame.Event),
			logging.Error(err),
		)
	}
	if frame.ID == "" {
		return
	}
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
		result = nil
	}
	payload, encErr := encodeFrame(EventAck, frame.ID, result, errMsg)
	if encErr != nil {
		h.logger.Error("encode ack failed", logging.String("event", frame.Event), logging.Error(encErr))
		return
	}
	_ = c.enqueue(payload)
}

func (h *Hub) remove(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c.id)
	listeners := make([]func(*Conn), len(h.disconnectFn))
	copy(listeners, h.disconnectFn)
	h.mu.Unlock()

	h.logger.Debug("socket disconnected", logging.String(logging.FieldSocketID, c.id))
	for _, fn := range listeners {
		fn(c)
	}
}
