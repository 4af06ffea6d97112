package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans lifecycle events out to every connected websocket. The latest
// event of each type is kept so late subscribers see the current QR/state.
type Hub struct {
	log zerolog.Logger

	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan message
	done       chan struct{}

	subscribers map[*subscriber]struct{}
	last        map[string][]byte
	order       []string
}

type message struct {
	event   string
	payload []byte
	// expireQR drops the cached QR once the session is ready
	expireQR bool
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:         log.With().Str("component", "ws").Logger(),
		register:    make(chan *subscriber),
		unregister:  make(chan *subscriber),
		broadcast:   make(chan message, 64),
		done:        make(chan struct{}),
		subscribers: make(map[*subscriber]struct{}),
		last:        make(map[string][]byte),
	}
}

// Run owns all hub state until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for s := range h.subscribers {
				close(s.send)
				delete(h.subscribers, s)
			}
			return

		case s := <-h.register:
			h.subscribers[s] = struct{}{}
			for _, evt := range h.order {
				if !h.deliver(s, h.last[evt]) {
					break
				}
			}

		case s := <-h.unregister:
			if _, ok := h.subscribers[s]; ok {
				delete(h.subscribers, s)
				close(s.send)
			}

		case m := <-h.broadcast:
			if _, seen := h.last[m.event]; !seen {
				h.order = append(h.order, m.event)
			}
			h.last[m.event] = m.payload
			if m.expireQR {
				h.forget(EventQRGenerated)
			}
			for s := range h.subscribers {
				h.deliver(s, m.payload)
			}
		}
	}
}

func (h *Hub) forget(event string) {
	if _, ok := h.last[event]; !ok {
		return
	}
	delete(h.last, event)
	for i, e := range h.order {
		if e == event {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// deliver drops subscribers that cannot keep up instead of blocking the hub.
func (h *Hub) deliver(s *subscriber, payload []byte) bool {
	select {
	case s.send <- payload:
		return true
	default:
		h.log.Warn().Msg("dropping slow websocket subscriber")
		delete(h.subscribers, s)
		close(s.send)
		return false
	}
}

// Publish never blocks the caller; events are dropped if the hub is saturated.
func (h *Hub) Publish(evt WsEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		h.log.Error().Err(err).Str("event", evt.Event).Msg("failed to encode event")
		return
	}
	m := message{event: evt.Event, payload: payload}
	if data, ok := evt.Data.(SessionStateChangedData); ok && data.Ready {
		m.expireQR = true
	}
	select {
	case h.broadcast <- m:
	default:
		h.log.Warn().Str("event", evt.Event).Msg("hub saturated, event dropped")
	}
}

// Serve registers conn and blocks until the peer goes away.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn) {
	s := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}

	select {
	case h.register <- s:
	case <-ctx.Done():
		conn.Close()
		return
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(s)
	h.readPump(s)
}

// readPump only exists to process control frames and notice disconnects.
func (h *Hub) readPump(s *subscriber) {
	defer func() {
		select {
		case h.unregister <- s:
		case <-h.done:
		}
		s.conn.Close()
	}()

	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
