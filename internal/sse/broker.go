// Package sse streams vault and conversation events to Server-Sent Events
// clients of the serve mode.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/starford/vaultchat/internal/scanner"
)

// Event types.
const (
	TypeNoteCreated  = "note.created"
	TypeNoteUpdated  = "note.updated"
	TypeNoteDeleted  = "note.deleted"
	TypeVaultChanged = "vault.changed"
	TypeSessionTurn  = "session.turn"
)

const (
	historySize   = 64
	clientBuffer  = historySize * 2
	keepAliveTick = 15 * time.Second
)

// Event is one message on the stream. ID is assigned by the broker and
// increases by one per event.
type Event struct {
	ID   uint64
	Type string
	Data any

	// session routes session.turn events to that session's subscribers.
	session string
}

// NoteData is the payload of note.* events.
type NoteData struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

// ChangeData is the payload of vault.changed: how many note events it
// summarises. Chat overviews built after it see the new notes.
type ChangeData struct {
	Changes int `json:"changes"`
}

// TurnData is the payload of a session.turn event.
type TurnData struct {
	SessionID string `json:"session_id"`
	Turns     int    `json:"turns"`
}

type client struct {
	ch      chan []byte
	session string
}

// Broker fans events out to subscribers and keeps the last events so a
// reconnecting client can resume after the Last-Event-ID it saw.
//
// Note events are coalesced: the first one in a quiet period arms a timer
// and a single vault.changed follows once the window has passed.
type Broker struct {
	window time.Duration

	mu      sync.Mutex
	clients map[chan []byte]*client
	history []Event
	nextID  uint64
	pending int
	timer   *time.Timer
	closed  bool
}

// NewBroker creates a broker that batches note changes into one
// vault.changed event per window.
func NewBroker(window time.Duration) *Broker {
	if window <= 0 {
		window = 2 * time.Second
	}
	return &Broker{
		window:  window,
		clients: make(map[chan []byte]*client),
	}
}

func (c *client) wants(ev Event) bool {
	return ev.session == "" || c.session == "" || ev.session == c.session
}

func encode(ev Event) []byte {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		payload = []byte("null")
	}
	return []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, payload))
}

// publishLocked must be called with b.mu held.
func (b *Broker) publishLocked(ev Event) {
	if b.closed {
		return
	}
	b.nextID++
	ev.ID = b.nextID

	b.history = append(b.history, ev)
	if len(b.history) > historySize {
		b.history = b.history[len(b.history)-historySize:]
	}

	msg := encode(ev)
	for _, c := range b.clients {
		if !c.wants(ev) {
			continue
		}
		select {
		case c.ch <- msg:
		default:
			// Slow client; it can resume with Last-Event-ID.
		}
	}
}

// Publish sends an event to every interested subscriber.
func (b *Broker) Publish(eventType string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishLocked(Event{Type: eventType, Data: data})
}

// PublishNoteEvent publishes a note change. kind is created, updated or
// deleted; anything else is ignored.
func (b *Broker) PublishNoteEvent(kind, path string) {
	var eventType string
	switch kind {
	case "created":
		eventType = TypeNoteCreated
	case "updated":
		eventType = TypeNoteUpdated
	case "deleted":
		eventType = TypeNoteDeleted
	default:
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.publishLocked(Event{Type: eventType, Data: NoteData{Path: path, Title: scanner.Title(path)}})
	b.pending++
	if b.timer == nil {
		b.timer = time.AfterFunc(b.window, b.flushChanges)
	}
}

func (b *Broker) flushChanges() {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.pending
	b.pending = 0
	b.timer = nil
	if n > 0 {
		b.publishLocked(Event{Type: TypeVaultChanged, Data: ChangeData{Changes: n}})
	}
}

// PublishTurn announces a committed chat turn to the session's subscribers
// and to unfiltered ones.
func (b *Broker) PublishTurn(sessionID string, turns int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishLocked(Event{
		Type:    TypeSessionTurn,
		Data:    TurnData{SessionID: sessionID, Turns: turns},
		session: sessionID,
	})
}

// Subscribe registers a client. A non-empty session limits session.turn
// events to that session. Events newer than after still held in history are
// queued first; after 0 replays nothing.
func (b *Broker) Subscribe(session string, after uint64) chan []byte {
	ch := make(chan []byte, clientBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	c := &client{ch: ch, session: session}
	if after > 0 {
		for _, ev := range b.history {
			if ev.ID > after && c.wants(ev) {
				ch <- encode(ev)
			}
		}
	}
	b.clients[ch] = c
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[ch]; ok {
		delete(b.clients, ch)
		close(ch)
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close drops pending changes and closes every subscriber. Later publishes
// are no-ops.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	for ch := range b.clients {
		close(ch)
	}
	clear(b.clients)
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
//
// Query parameter "session" narrows session.turn events; the Last-Event-ID
// header resumes after an event the client already saw.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var after uint64
	if last := r.Header.Get("Last-Event-ID"); last != "" {
		id, err := strconv.ParseUint(last, 10, 64)
		if err != nil {
			http.Error(w, "invalid Last-Event-ID", http.StatusBadRequest)
			return
		}
		after = id
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(r.URL.Query().Get("session"), after)
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(keepAliveTick)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
