package worker

import (
	"context"
	"net/http"
	"sync"

	"nhooyr.io/websocket"

	"github.com/duetapp/duet/internal/logging"
	"github.com/duetapp/duet/internal/message"
)

// Dispatcher consumes a foreground message and optionally produces a reply
// for the sending client alone. Broadcast traffic goes through the hub
// directly.
type Dispatcher interface {
	HandleMessage(ctx context.Context, m message.Message) (*message.Message, error)
}

// Hub owns the websocket side of the message protocol. Each connected
// foreground page is one client; decoded messages go to the dispatcher,
// broadcasts fan out to every client.
type Hub struct {
	log logging.Logger

	mu       sync.Mutex
	dispatch Dispatcher
	clients  map[*hubClient]struct{}
}

type hubClient struct {
	conn *websocket.Conn

	mu sync.Mutex // serializes writes
}

func (c *hubClient) send(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func NewHub(log logging.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: map[*hubClient]struct{}{},
	}
}

// SetDispatcher wires the message consumer in after construction; the hub
// and the orchestrator reference each other, so one of them has to be
// completed late.
func (h *Hub) SetDispatcher(d Dispatcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dispatch = d
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket accept failed", "error", err)
		return
	}

	c := &hubClient{conn: conn}
	h.add(c)
	defer func() {
		h.remove(c)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		m, err := message.Decode(data)
		if err != nil {
			h.log.Warn(ctx, "dropping undecodable message", "error", err)
			continue
		}

		d := h.dispatcher()
		if d == nil {
			continue
		}
		reply, err := d.HandleMessage(ctx, m)
		if err != nil {
			h.log.Warn(ctx, "message dispatch failed", "type", m.Type, "error", err)
			continue
		}
		if reply == nil {
			continue
		}
		out, err := message.Encode(*reply)
		if err != nil {
			h.log.Error(ctx, "failed to encode reply", "type", reply.Type, "error", err)
			continue
		}
		if err := c.send(ctx, out); err != nil {
			return
		}
	}
}

// Broadcast delivers a message to every connected client. Write failures
// affect only the failing client; the foreground is allowed to be absent.
func (h *Hub) Broadcast(ctx context.Context, m message.Message) {
	data, err := message.Encode(m)
	if err != nil {
		h.log.Error(ctx, "failed to encode broadcast", "type", m.Type, "error", err)
		return
	}

	for _, c := range h.snapshot() {
		if err := c.send(ctx, data); err != nil {
			h.log.Debug(ctx, "broadcast write failed", "type", m.Type, "error", err)
		}
	}
}

func (h *Hub) add(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func (h *Hub) snapshot() []*hubClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *Hub) dispatcher() Dispatcher {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dispatch
}
