package admin

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/clipqueue/internal/protocol"
	"github.com/danmuck/clipqueue/internal/queue"
)

// Event is one observer notification as delivered to UI clients.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

const (
	EventStatus  = "status"
	EventMembers = "members"
	EventItem    = "item"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The admin surface binds to loopback; the tray UI is the only
	// expected origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// EventHub bridges queue observer notifications onto websocket
// subscribers. Delivery is fire and forget: a subscriber that cannot
// keep up is dropped.
type EventHub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	conn *websocket.Conn
	out  chan Event
	done chan struct{}
	once sync.Once
}

var _ queue.Observer = (*EventHub)(nil)

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[*subscriber]struct{})}
}

func (h *EventHub) NotifyStatus(status queue.Status) {
	h.broadcast(Event{Event: EventStatus, Data: status})
}

func (h *EventHub) NotifyMembers(members []protocol.Member) {
	h.broadcast(Event{Event: EventMembers, Data: members})
}

func (h *EventHub) NotifyItem(item protocol.ClipboardItem) {
	h.broadcast(Event{Event: EventItem, Data: item})
}

func (h *EventHub) broadcast(event Event) {
	h.mu.Lock()
	targets := make([]*subscriber, 0, len(h.subs))
	for sub := range h.subs {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.out <- event:
		default:
			h.drop(sub)
		}
	}
}

// Serve upgrades one HTTP request and streams events until the client
// goes away.
func (h *EventHub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("event stream upgrade failed")
		return
	}
	sub := &subscriber{
		conn: conn,
		out:  make(chan Event, 16),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go sub.writeLoop(h)
	sub.readLoop(h)
}

func (h *EventHub) drop(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
	sub.once.Do(func() { close(sub.done) })
	_ = sub.conn.Close()
}

func (h *EventHub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (s *subscriber) writeLoop(h *EventHub) {
	for {
		select {
		case event := <-s.out:
			if err := s.conn.WriteJSON(event); err != nil {
				h.drop(s)
				return
			}
		case <-s.done:
			return
		}
	}
}

// readLoop discards inbound messages; the stream is one way. It exists
// to notice the close handshake.
func (s *subscriber) readLoop(h *EventHub) {
	defer h.drop(s)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
