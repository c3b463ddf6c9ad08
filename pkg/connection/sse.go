package connection

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
)

var errStreamEnded = errors.New("stream closed by server")

const maxEventSize = 1 << 20 // 1MB per event, same bound as the scanner buffer

// SSESource consumes a Server-Sent Events stream: a long-lived GET
// request whose body carries newline-delimited event/data/id fields.
type SSESource struct {
	baseSource

	url             url.URL
	withCredentials bool
	client          *http.Client

	lastEventID string
	idLock      sync.RWMutex

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closed    chan struct{}
}

var _ EventSource = (*SSESource)(nil)
var _ Resumable = (*SSESource)(nil)

func NewSSESource(conf *Config) *SSESource {
	client := conf.HTTPClient
	if client == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		// Bound the handshake, not the stream: the body is long-lived.
		tr.ResponseHeaderTimeout = DefaultHTTPTimeout
		client = &http.Client{Transport: tr}
	}

	if conf.WithCredentials && client.Jar == nil {
		// cookiejar.New only fails on bad options; nil options cannot fail
		jar, _ := cookiejar.New(nil)
		client.Jar = jar
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &SSESource{
		baseSource:      newBaseSource(conf.Logger),
		url:             conf.URL,
		withCredentials: conf.WithCredentials,
		client:          client,
		lastEventID:     conf.LastEventID,
		ctx:             ctx,
		cancel:          cancel,
		closed:          make(chan struct{}),
	}
}

// Connect starts the stream in the background. Bind listeners first;
// events delivered before a listener exists are dropped.
func (s *SSESource) Connect() {
	go s.run()
}

// Close tears the stream down. It is a no-op if the source is already
// closed, and it never blocks, so it is safe to call from a handler.
func (s *SSESource) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.cancel()
	})
	return nil
}

// LastEventID returns the ID of the last delivered event, or the seed
// from the config if nothing has been delivered yet.
func (s *SSESource) LastEventID() string {
	s.idLock.RLock()
	defer s.idLock.RUnlock()
	return s.lastEventID
}

func (s *SSESource) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// emit drops events once the source is closed, so a teardown racing the
// read goroutine can not surface late signals.
func (s *SSESource) emit(ev Event) {
	if s.isClosed() {
		return
	}
	s.dispatch(ev)
}

func (s *SSESource) fail(err error) {
	s.logger.Error("stream failed", "url", s.url.String(), "error", err)
	s.emit(Event{Name: EventError, Err: err})
}

func (s *SSESource) run() {
	req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, s.url.String(), http.NoBody)
	if err != nil {
		s.fail(err)
		return
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	if id := s.LastEventID(); id != "" {
		req.Header.Set("Last-Event-ID", id)
	}

	if s.withCredentials {
		if user := s.url.User; user != nil {
			pass, _ := user.Password()
			req.SetBasicAuth(user.Username(), pass)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if !s.isClosed() {
			s.fail(err)
		}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.fail(fmt.Errorf("unexpected status: %d", resp.StatusCode))
		return
	}

	s.logger.Debug("stream established", "url", s.url.String())
	s.emit(Event{Name: EventOpen})

	if err := s.readEvents(resp.Body); err != nil && !s.isClosed() {
		s.fail(err)
	}
}

// readEvents parses the wire format: events are separated by blank
// lines, each line is "field: value", comment lines start with a colon.
// A missing event field means the default "message" channel; multiple
// data lines are joined with newlines. The retry field is ignored, the
// subscription layer owns the retry policy.
func (s *SSESource) readEvents(body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 4096), maxEventSize)

	var name, id string
	var data []string

	for scanner.Scan() {
		if s.isClosed() {
			return nil
		}

		line := scanner.Text()

		if strings.HasPrefix(line, ":") {
			// comment, typically a heartbeat
			continue
		}

		if line == "" {
			if len(data) > 0 {
				s.deliver(name, id, strings.Join(data, "\n"))
			}
			name, id, data = "", "", nil
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			name = value
		case "id":
			id = value
		case "data":
			data = append(data, value)
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	// A clean EOF still means the server ended a stream we expected to
	// stay open.
	return errStreamEnded
}

func (s *SSESource) deliver(name, id, data string) {
	if name == "" {
		name = EventMessage
	}

	if id != "" {
		s.idLock.Lock()
		s.lastEventID = id
		s.idLock.Unlock()
	}

	s.emit(Event{Name: name, Data: data, ID: id})
}
