package events

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const (
	EventSessionStarted   = "gameSessionStarted"
	EventPressesUpdated   = "buttonPressesUpdated"
	EventSessionCompleted = "gameSessionCompleted"
)

// Event is a signal, not a data channel: receivers refetch authoritative
// session state keyed by (status, machineId). IsLive is an optimistic hint
// and may race with the authoritative read.
type Event struct {
	MachineID uint           `json:"machineId"`
	Type      string         `json:"type"`
	IsLive    bool           `json:"isLive"`
	Payload   map[string]any `json:"payload,omitempty"`
	At        time.Time      `json:"at"`
}

// Broadcaster fans session-lifecycle events out to every connected dashboard
// over websocket. Publishing is fire-and-forget: a full queue drops the
// event with a log line and never blocks or fails the triggering operation.
type Broadcaster struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]bool
	subs  map[chan Event]bool

	queue chan Event
	done  chan struct{}
}

func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 256
	}
	b := &Broadcaster{
		conns: make(map[*websocket.Conn]bool),
		subs:  make(map[chan Event]bool),
		queue: make(chan Event, buffer),
		done:  make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Publish enqueues an event for delivery. Never blocks.
func (b *Broadcaster) Publish(machineID uint, eventType string, isLive bool, payload map[string]any) {
	ev := Event{
		MachineID: machineID,
		Type:      eventType,
		IsLive:    isLive,
		Payload:   payload,
		At:        time.Now(),
	}
	select {
	case b.queue <- ev:
	default:
		log.Printf("⚠️  event queue full, dropping %s for machine %d", eventType, machineID)
	}
}

// Subscribe registers an in-process listener. The returned cancel func must
// be called when done.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	b.mu.Lock()
	b.subs[ch] = true
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}
	return ch, cancel
}

// Close stops the dispatcher and disconnects every client.
func (b *Broadcaster) Close() {
	close(b.done)
	b.mu.Lock()
	for conn := range b.conns {
		conn.Close()
		delete(b.conns, conn)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) dispatch() {
	for {
		select {
		case <-b.done:
			return
		case ev := <-b.queue:
			b.deliver(ev)
		}
	}
}

func (b *Broadcaster) deliver(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("⚠️  failed to encode event %s: %v", ev.Type, err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for conn := range b.conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("⚠️  dropping dead websocket client: %v", err)
			conn.Close()
			delete(b.conns, conn)
		}
	}
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// UpgradeGuard rejects plain HTTP requests on the websocket route.
func UpgradeGuard(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handler accepts a dashboard websocket connection and holds it open until
// the client goes away.
func (b *Broadcaster) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		b.mu.Lock()
		b.conns[conn] = true
		b.mu.Unlock()

		defer func() {
			b.mu.Lock()
			delete(b.conns, conn)
			b.mu.Unlock()
			conn.Close()
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}
