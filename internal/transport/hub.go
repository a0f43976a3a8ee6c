package transport

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/ctubio/tribeca/internal/domain"
)

const (
	sendBuffer   = 256
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	readTimeout  = 90 * time.Second
	maxMsgSize   = 1 << 16
)

// envelope is a server-to-client frame.
type envelope struct {
	Topic string          `json:"topic"`
	Kind  string          `json:"kind"` // "snapshot" or "delta"
	Data  json.RawMessage `json:"data"`
}

// clientMessage is a client-to-server frame.
type clientMessage struct {
	Op    string          `json:"op"` // "subscribe" or "message"
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	subs map[string]bool
}

// Hub fans topic publishes out to subscribed websocket clients. Publishing
// happens on the engine loop; each client has its own writer goroutine so a
// slow consumer never blocks the loop. Snapshot functions and receiver
// handlers touch broker state, so the hub always runs them via post.
type Hub struct {
	log  *slog.Logger
	post func(func())

	upgrader websocket.Upgrader

	mu        sync.Mutex
	clients   map[*client]struct{}
	snapshots map[string]func() []json.RawMessage
	receivers map[string][]func(json.RawMessage)
}

// NewHub creates a hub whose snapshot and receiver callbacks run through
// post (normally engine.Loop.Post).
func NewHub(post func(func()), log *slog.Logger) *Hub {
	return &Hub{
		log:       log,
		post:      post,
		upgrader:  websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		clients:   make(map[*client]struct{}),
		snapshots: make(map[string]func() []json.RawMessage),
		receivers: make(map[string][]func(json.RawMessage)),
	}
}

// Handler returns the websocket endpoint.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(h.serveWS)
}

// Run serves the hub on addr until the listener fails.
func (h *Hub) Run(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", h.Handler())
	h.log.Info("transport hub listening", slog.String("addr", addr))
	return http.ListenAndServe(addr, mux)
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed",
			slog.Any("error", domain.NewNetworkError("upgrade", err)))
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		subs: make(map[string]bool),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer h.drop(c)
	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.log.Warn("malformed client message", slog.Any("error", err))
			continue
		}
		switch msg.Op {
		case "subscribe":
			h.subscribe(c, msg.Topic)
		case "message":
			h.dispatch(msg.Topic, msg.Data)
		default:
			h.log.Warn("unknown client op", slog.String("op", msg.Op))
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				c.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeTimeout))
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}

// subscribe marks the topic and sends its snapshot, taken on the loop so it
// observes a consistent broker state.
func (h *Hub) subscribe(c *client, topic string) {
	h.mu.Lock()
	c.subs[topic] = true
	snapshot := h.snapshots[topic]
	h.mu.Unlock()

	if snapshot == nil {
		return
	}
	h.post(func() {
		items := snapshot()
		for _, item := range items {
			h.sendTo(c, topic, "snapshot", item)
		}
	})
}

func (h *Hub) dispatch(topic string, data json.RawMessage) {
	h.mu.Lock()
	handlers := h.receivers[topic]
	h.mu.Unlock()
	for _, handler := range handlers {
		handler := handler
		h.post(func() { handler(data) })
	}
}

func (h *Hub) sendTo(c *client, topic, kind string, data json.RawMessage) {
	frame, err := json.Marshal(envelope{Topic: topic, Kind: kind, Data: data})
	if err != nil {
		h.log.Error("marshal envelope failed", slog.Any("error", err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- frame:
	default:
		// slow consumer: drop the connection rather than block the loop
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcast(topic string, data json.RawMessage) {
	frame, err := json.Marshal(envelope{Topic: topic, Kind: "delta", Data: data})
	if err != nil {
		h.log.Error("marshal envelope failed", slog.Any("error", err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.subs[topic] {
			continue
		}
		select {
		case c.send <- frame:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *Hub) registerSnapshot(topic string, fn func() []json.RawMessage) {
	h.mu.Lock()
	h.snapshots[topic] = fn
	h.mu.Unlock()
}

func (h *Hub) registerReceiver(topic string, fn func(json.RawMessage)) {
	h.mu.Lock()
	h.receivers[topic] = append(h.receivers[topic], fn)
	h.mu.Unlock()
}
