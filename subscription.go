package streamsub

import (
	"net/url"
	"sync"
	"time"

	"github.com/streamsub/streamsub.go/pkg/connection"
	"github.com/streamsub/streamsub.go/pkg/logger"
	"github.com/streamsub/streamsub.go/pkg/retry"
)

// Subscription maintains one logical subscription to a remote event
// stream: it owns the underlying transport connection, re-establishes it
// after transient failures according to the retry policy, and exposes a
// consistent snapshot of status, latest payload and latest failure.
//
// All session state is guarded by one mutex. Transport signals and retry
// timers fire on their own goroutines; every such path takes the lock,
// checks that the subscription is still live and that the signal belongs
// to the current connection, and only then mutates state. That is what
// keeps late callbacks from an already-replaced connection from
// corrupting the session.
type Subscription[T any] struct {
	mu   sync.Mutex
	live bool

	url    *url.URL
	opts   Options[T]
	policy retry.Policy
	parse  func(data []byte) (T, error)
	dial   func(conf *connection.Config) (connection.EventSource, error)
	logger logger.Logger

	eventName string

	// conn is the current transport handle. At most one exists at a
	// time; replacing it closes the predecessor first.
	conn        connection.EventSource
	lastEventID string
	retryTimer  *time.Timer

	status     Status
	data       T
	hasData    bool
	err        *Error
	retryCount int
}

// Subscribe creates the subscription and immediately starts the first
// connection attempt. The returned subscription is already in
// StatusConnecting.
//
// Only construction-time problems are returned as an error: an
// unparseable endpoint or a scheme no transport serves. Everything that
// happens on the wire afterwards is reported through the snapshot and
// the OnError callback instead.
func Subscribe[T any](endpoint string, opts Options[T]) (*Subscription[T], error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = defaultLogger()
	}

	dial := opts.Dial
	if dial == nil {
		// Validate the scheme once so that per-attempt dials cannot fail.
		probe, err := connection.FromEndpointURL(connection.NewConfig(u))
		if err != nil {
			return nil, err
		}
		_ = probe.Close()
		dial = defaultDial
	}

	eventName := opts.EventName
	if eventName == "" {
		eventName = connection.EventMessage
	}

	s := &Subscription[T]{
		live:      true,
		url:       u,
		opts:      opts,
		policy:    opts.Retry.WithDefaults(),
		parse:     opts.parser(),
		dial:      dial,
		logger:    log,
		eventName: eventName,
		status:    StatusConnecting,
	}

	s.mu.Lock()
	s.connectLocked()
	s.mu.Unlock()

	return s, nil
}

// Snapshot returns the current session state as a value copy.
func (s *Subscription[T]) Snapshot() Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot[T]{
		Status:     s.status,
		Err:        s.err,
		RetryCount: s.retryCount,
	}
	if s.hasData {
		data := s.data
		snap.Data = &data
	}

	return snap
}

// Close tears the subscription down: the pending retry is cancelled, the
// transport is closed and the status becomes StatusClosed. A second call
// is a no-op. No session state mutates after Close returns.
func (s *Subscription[T]) Close() {
	s.mu.Lock()
	if !s.live {
		s.mu.Unlock()
		return
	}
	s.live = false
	s.cancelRetryLocked()
	s.closeConnLocked()
	s.status = StatusClosed
	s.mu.Unlock()

	s.logger.Debug("subscription closed", "url", s.url.String())

	if s.opts.OnClose != nil {
		s.opts.OnClose()
	}
}

// Reconnect abandons any scheduled retry, resets the retry count and
// connects immediately. It is the recovery path for failures the
// scheduler will not retry on its own: an exhausted budget or a
// ShouldRetry veto. A closed subscription stays closed.
func (s *Subscription[T]) Reconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.live {
		return
	}

	s.logger.Info("manual reconnect", "url", s.url.String())

	s.cancelRetryLocked()
	s.retryCount = 0
	s.connectLocked()
}

// connectLocked is the connection supervisor: it replaces the current
// transport handle with a fresh one and binds the dispatcher to exactly
// that handle. Callers hold the lock.
func (s *Subscription[T]) connectLocked() {
	s.closeConnLocked()

	s.status = StatusConnecting

	conf := connection.NewConfig(s.url)
	conf.WithCredentials = s.opts.WithCredentials
	conf.LastEventID = s.lastEventID
	conf.Logger = s.logger

	src, err := s.dial(conf)
	if err != nil {
		// Only a custom Dial can fail here; treat it like any other
		// transport failure so the retry policy still applies.
		s.logger.Error("dial failed", "url", s.url.String(), "error", err)
		s.failLocked(newConnectionError(err))
		return
	}

	s.conn = src

	src.AddListener(connection.EventOpen, func(connection.Event) {
		s.handleOpen(src)
	})
	src.AddListener(connection.EventError, func(ev connection.Event) {
		s.handleError(src, ev)
	})
	src.AddListener(s.eventName, func(ev connection.Event) {
		s.handleMessage(src, ev)
	})

	src.Connect()
}

// closeConnLocked releases the current handle, remembering its resume
// position for the replacement connection. Closing is idempotent on the
// transport side.
func (s *Subscription[T]) closeConnLocked() {
	if s.conn == nil {
		return
	}

	if r, ok := s.conn.(connection.Resumable); ok {
		if id := r.LastEventID(); id != "" {
			s.lastEventID = id
		}
	}

	_ = s.conn.Close()
	s.conn = nil
}

func (s *Subscription[T]) cancelRetryLocked() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}

// guardLocked reports whether a signal from src may act on the session:
// the subscription must be live and src must still be the current
// handle. Signals from retired connections are dropped.
func (s *Subscription[T]) guardLocked(src connection.EventSource) bool {
	return s.live && s.conn == src
}

func (s *Subscription[T]) handleOpen(src connection.EventSource) {
	s.mu.Lock()
	if !s.guardLocked(src) {
		s.mu.Unlock()
		return
	}

	// The open signal is the one path that clears the error and the
	// retry count. A timer pending from a failure of this same cycle is
	// obsolete now.
	s.cancelRetryLocked()
	s.status = StatusOpen
	s.err = nil
	s.retryCount = 0
	s.mu.Unlock()

	s.logger.Info("stream open", "url", s.url.String())

	if s.opts.OnOpen != nil {
		s.opts.OnOpen()
	}
}

func (s *Subscription[T]) handleMessage(src connection.EventSource, ev connection.Event) {
	s.mu.Lock()
	if !s.guardLocked(src) {
		s.mu.Unlock()
		return
	}

	val, err := s.parse([]byte(ev.Data))
	if err != nil {
		// A malformed payload does not flip the status; only transport
		// failures do. The previous data also stays visible.
		parseErr := newParseError(err)
		s.err = parseErr
		s.mu.Unlock()

		s.logger.Warn("payload decode failed", "event", ev.Name, "error", err)

		if s.opts.OnError != nil {
			s.opts.OnError(parseErr)
		}
		return
	}

	s.data = val
	s.hasData = true
	s.mu.Unlock()

	if s.opts.OnMessage != nil {
		s.opts.OnMessage(ev)
	}
}

func (s *Subscription[T]) handleError(src connection.EventSource, ev connection.Event) {
	s.mu.Lock()
	if !s.guardLocked(src) {
		s.mu.Unlock()
		return
	}

	connErr := newConnectionError(ev.Err)
	terminal := s.failLocked(connErr)
	s.mu.Unlock()

	if s.opts.OnError != nil {
		s.opts.OnError(connErr)
		if terminal != nil {
			s.opts.OnError(terminal)
		}
	}
}

// failLocked records a transport failure and consults the retry
// scheduler. It returns the terminal exhaustion error when the retry
// budget is spent, or nil when a retry was scheduled or retrying was
// vetoed.
func (s *Subscription[T]) failLocked(cause *Error) *Error {
	s.status = StatusError
	s.err = cause

	attempt := s.retryCount

	// Never let two timers race each other.
	s.cancelRetryLocked()

	if attempt >= s.policy.MaxAttempts {
		terminal := newMaxRetryError(attempt, cause)
		s.err = terminal
		s.logger.Error("retry budget exhausted", "url", s.url.String(), "attempts", attempt)
		return terminal
	}

	if !s.policy.Retryable(cause, attempt) {
		s.logger.Info("retry vetoed by policy", "url", s.url.String(), "attempt", attempt)
		return nil
	}

	delay := s.policy.Delay(attempt)
	s.logger.Info("scheduling reconnect",
		"url", s.url.String(), "attempt", attempt+1, "delay", delay)

	s.retryTimer = time.AfterFunc(delay, s.retryFired)
	return nil
}

// retryFired runs on the timer goroutine once the backoff delay elapsed.
func (s *Subscription[T]) retryFired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Close or Reconnect may have won the race with the timer firing.
	if !s.live || s.retryTimer == nil {
		return
	}

	s.retryTimer = nil
	s.retryCount++
	s.connectLocked()
}
