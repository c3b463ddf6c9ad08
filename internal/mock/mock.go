// Package mock provides a scripted event source for testing the
// subscription lifecycle without a network.
package mock

import (
	"sync"

	"github.com/streamsub/streamsub.go/pkg/connection"
)

// Source is an in-memory connection.EventSource. Tests drive it by
// calling Open, Message and Error to emulate transport signals. Like the
// real transports, it drops signals once closed.
type Source struct {
	mu        sync.Mutex
	listeners map[string]connection.Handler
	connected bool
	closed    bool
}

var _ connection.EventSource = (*Source)(nil)

// Factory hands out sources and records them in dial order, so a test
// can address the source behind each connection attempt.
type Factory struct {
	mu      sync.Mutex
	sources []*Source
}

func NewFactory() *Factory {
	return &Factory{}
}

// Dial is plugged into Options.Dial.
func (f *Factory) Dial(*connection.Config) (connection.EventSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	src := &Source{listeners: make(map[string]connection.Handler)}
	f.sources = append(f.sources, src)
	return src, nil
}

// Dials returns the number of connection attempts made so far.
func (f *Factory) Dials() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sources)
}

// Source returns the i-th dialed source.
func (f *Factory) Source(i int) *Source {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sources[i]
}

// Latest returns the most recently dialed source.
func (f *Factory) Latest() *Source {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sources[len(f.sources)-1]
}

func (s *Source) AddListener(name string, h connection.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[name] = h
}

func (s *Source) RemoveListener(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, name)
}

func (s *Source) Connect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Connected reports whether Connect was called.
func (s *Source) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Closed reports whether the source was released.
func (s *Source) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Open emulates the transport's establishment signal.
func (s *Source) Open() {
	s.emit(connection.Event{Name: connection.EventOpen})
}

// Message emulates a payload event on the given channel.
func (s *Source) Message(name, data string) {
	s.emit(connection.Event{Name: name, Data: data})
}

// Error emulates a transport failure.
func (s *Source) Error(err error) {
	s.emit(connection.Event{Name: connection.EventError, Err: err})
}

func (s *Source) emit(ev connection.Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	h, ok := s.listeners[ev.Name]
	s.mu.Unlock()

	if ok {
		h(ev)
	}
}
