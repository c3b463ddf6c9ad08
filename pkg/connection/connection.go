// Package connection implements the streaming transports a subscription
// can consume: Server-Sent Events over HTTP and named events over a
// WebSocket.
//
// Both transports expose the same [EventSource] surface: listeners are
// bound per event name before [EventSource.Connect] is called, and the
// transport reports its own lifecycle through the reserved [EventOpen]
// and [EventError] pseudo-events. A source makes exactly one connection
// attempt; reconnection is owned by the subscription layer, never by the
// transport.
package connection

import (
	"sync"

	"github.com/streamsub/streamsub.go/pkg/logger"
)

// Event is one signal delivered by a source. For payload events Data
// holds the raw payload text and ID the server-assigned event ID, if any.
// For EventError events Err carries the transport failure and Data is
// empty.
type Event struct {
	Name string
	Data string
	ID   string
	Err  error
}

// Handler receives events for one event name. Handlers are invoked from
// the source's read goroutine, one at a time.
type Handler func(Event)

// EventSource is one live transport connection.
//
// Connect never fails synchronously: dial and handshake errors surface
// asynchronously through the EventError listener. Close is idempotent
// and safe to call from inside a handler.
type EventSource interface {
	AddListener(name string, h Handler)
	RemoveListener(name string)
	Connect()
	Close() error
}

// Resumable is implemented by sources that track the server-assigned ID
// of the last delivered event, so that a replacement connection can ask
// the server to resume from that point.
type Resumable interface {
	LastEventID() string
}

type baseSource struct {
	listeners     map[string]Handler
	listenersLock sync.RWMutex

	logger logger.Logger
}

func newBaseSource(log logger.Logger) baseSource {
	return baseSource{
		listeners: make(map[string]Handler),
		logger:    log,
	}
}

func (b *baseSource) AddListener(name string, h Handler) {
	b.listenersLock.Lock()
	defer b.listenersLock.Unlock()
	b.listeners[name] = h
}

func (b *baseSource) RemoveListener(name string) {
	b.listenersLock.Lock()
	defer b.listenersLock.Unlock()
	delete(b.listeners, name)
}

// dispatch delivers the event to the listener registered for its name.
// Events nobody listens for are dropped, which is the normal case for
// payload channels the consumer did not subscribe to.
func (b *baseSource) dispatch(ev Event) {
	b.listenersLock.RLock()
	h, ok := b.listeners[ev.Name]
	b.listenersLock.RUnlock()

	if !ok {
		b.logger.Debug("no listener for event, dropping", "event", ev.Name)
		return
	}

	h(ev)
}
