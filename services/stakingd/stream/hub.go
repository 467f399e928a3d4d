package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"stakeledger/core/events"
	"stakeledger/observability"
)

const wsWriteTimeout = 10 * time.Second

// Message is the JSON frame written to subscribers.
type Message struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Filter restricts a subscription. Empty fields match everything.
type Filter struct {
	Types   map[string]struct{}
	Account string
}

func (f Filter) match(msg Message) bool {
	if len(f.Types) > 0 {
		if _, ok := f.Types[msg.Type]; !ok {
			return false
		}
	}
	if f.Account != "" && msg.Attributes["account"] != f.Account {
		return false
	}
	return true
}

type subscriber struct {
	ch     chan Message
	filter Filter
}

// Hub fans committed events out to websocket subscribers. Slow subscribers
// lose messages rather than stalling the ledger.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	buffer int
	logger *slog.Logger
}

// NewHub constructs a hub with the given per-subscriber buffer.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{subs: make(map[*subscriber]struct{}), buffer: buffer, logger: logger}
}

// Emit implements events.Emitter.
func (h *Hub) Emit(evt events.Event) {
	raw, ok := events.Unwrap(evt)
	if !ok {
		return
	}
	msg := Message{Type: raw.Type, Attributes: raw.Attributes}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if !sub.filter.match(msg) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			observability.Events().RecordDropped("stream")
		}
	}
}

// Subscribe registers a listener. The returned cancel function must be called
// to release it.
func (h *Hub) Subscribe(filter Filter) (<-chan Message, func()) {
	sub := &subscriber{ch: make(chan Message, h.buffer), filter: filter}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			h.mu.Unlock()
		})
	}
}

// Subscribers reports the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// ParseFilter reads ?types=a,b&account=stake1... from a request.
func ParseFilter(r *http.Request) Filter {
	var filter Filter
	if raw := strings.TrimSpace(r.URL.Query().Get("types")); raw != "" {
		filter.Types = make(map[string]struct{})
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				filter.Types[part] = struct{}{}
			}
		}
	}
	filter.Account = strings.ToLower(strings.TrimSpace(r.URL.Query().Get("account")))
	return filter
}

// ServeHTTP upgrades the connection and streams matching events until either
// side goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filter := ParseFilter(r)
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	ctx := conn.CloseRead(r.Context())
	updates, cancel := h.Subscribe(filter)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-updates:
			if err := writeMessage(ctx, conn, msg); err != nil {
				if websocket.CloseStatus(err) == -1 {
					h.logger.Debug("stream write failed", slog.Any("error", err))
					_ = conn.Close(websocket.StatusInternalError, "stream error")
				}
				return
			}
		}
	}
}

func writeMessage(ctx context.Context, conn *websocket.Conn, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
