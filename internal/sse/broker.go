// Package sse streams mark change events to HTTP clients as Server-Sent
// Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/marksman/internal/registry"
)

// Event names. Each registry change goes out as mark.<kind>.
const (
	TypeMarksUpdated = "marks.updated"
	markTypePrefix   = "mark."
)

// DefaultKeepAlive is the interval between comment pings on idle streams.
const DefaultKeepAlive = 30 * time.Second

// clientBuffer is the number of frames a client may lag behind before
// frames addressed to it are dropped.
const clientBuffer = 64

// Event is one SSE frame.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (e Event) frame() ([]byte, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "event: %s\ndata: %s\n\n", e.Type, payload), nil
}

// hub is the state owned by the broker goroutine.
type hub struct {
	streams   map[chan []byte]struct{}
	listedAt  map[string]time.Time
	listEvery time.Duration
	now       func() time.Time
}

func (h *hub) fanOut(e Event) {
	msg, err := e.frame()
	if err != nil {
		return
	}
	for s := range h.streams {
		select {
		case s <- msg:
		default:
		}
	}
}

func (h *hub) change(ev registry.Event) {
	h.fanOut(Event{Type: markTypePrefix + ev.Kind, Data: ev})

	t := h.now()
	if last, seen := h.listedAt[ev.Project]; seen && t.Sub(last) < h.listEvery {
		return
	}
	h.listedAt[ev.Project] = t
	h.fanOut(Event{Type: TypeMarksUpdated, Data: map[string]string{"project": ev.Project}})
}

func (h *hub) detach(s chan []byte) {
	if _, ok := h.streams[s]; ok {
		delete(h.streams, s)
		close(s)
	}
}

func (h *hub) detachAll() {
	for s := range h.streams {
		close(s)
	}
	clear(h.streams)
}

// Broker fans registry events out to connected SSE clients. Every access
// to client state runs as a closure on the broker goroutine.
type Broker struct {
	keepAlive time.Duration
	state     *hub

	ops    chan func(*hub)
	quit   chan struct{}
	done   chan struct{}
	closed atomic.Bool
}

// Option configures a Broker.
type Option func(*Broker)

// WithKeepAlive sets the ping interval for idle streams. Zero disables pings.
func WithKeepAlive(d time.Duration) Option {
	return func(b *Broker) { b.keepAlive = d }
}

// NewBroker starts a broker. listThrottle is the minimum gap between two
// marks.updated events for one project.
func NewBroker(listThrottle time.Duration, opts ...Option) *Broker {
	if listThrottle <= 0 {
		listThrottle = time.Second
	}
	b := &Broker{
		keepAlive: DefaultKeepAlive,
		state: &hub{
			streams:   make(map[chan []byte]struct{}),
			listedAt:  make(map[string]time.Time),
			listEvery: listThrottle,
			now:       time.Now,
		},
		ops:  make(chan func(*hub)),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.done)
	for {
		select {
		case op := <-b.ops:
			op(b.state)
		case <-b.quit:
			b.state.detachAll()
			return
		}
	}
}

// exec hands op to the broker goroutine. It reports false once the broker
// has stopped, in which case op never runs.
func (b *Broker) exec(op func(*hub)) bool {
	if b.closed.Load() {
		return false
	}
	select {
	case b.ops <- op:
		return true
	case <-b.done:
		return false
	}
}

// Close stops the broker and closes every client channel. Repeated calls
// are no-ops.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.quit)
	}
	<-b.done
}

// Subscribe registers a client. The returned channel is closed on
// Unsubscribe or Close, and is already closed if the broker has stopped.
func (b *Broker) Subscribe() chan []byte {
	s := make(chan []byte, clientBuffer)
	if !b.exec(func(h *hub) { h.streams[s] = struct{}{} }) {
		close(s)
	}
	return s
}

// Unsubscribe drops a client and closes its channel.
func (b *Broker) Unsubscribe(s chan []byte) {
	b.exec(func(h *hub) { h.detach(s) })
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	n := make(chan int, 1)
	if !b.exec(func(h *hub) { n <- len(h.streams) }) {
		return 0
	}
	return <-n
}

// Publish sends e to every client.
func (b *Broker) Publish(e Event) {
	b.exec(func(h *hub) { h.fanOut(e) })
}

// PublishChange sends mark.<kind> for ev and, at most once per throttle
// window, marks.updated for its project.
func (b *Broker) PublishChange(ev registry.Event) {
	b.exec(func(h *hub) { h.change(ev) })
}

// Listener returns a registry listener that publishes every change.
func (b *Broker) Listener() registry.Listener {
	return func(_ *registry.Registry, ev registry.Event) { b.PublishChange(ev) }
}

// ServeHTTP holds one event stream open (GET /api/events) until the client
// goes away or the broker closes.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	frames := b.Subscribe()
	defer b.Unsubscribe(frames)

	var ping <-chan time.Time
	if b.keepAlive > 0 {
		tick := time.NewTicker(b.keepAlive)
		defer tick.Stop()
		ping = tick.C
	}

	for {
		var msg []byte
		select {
		case <-r.Context().Done():
			return
		case <-ping:
			msg = []byte(": ping\n\n")
		case f, open := <-frames:
			if !open {
				return
			}
			msg = f
		}
		if _, err := w.Write(msg); err != nil {
			return
		}
		flusher.Flush()
	}
}
