package connection

import (
	"context"
	"encoding/json"
	"sync"

	gorilla "github.com/gorilla/websocket"
)

// DefaultDialer is the gorilla dialer used by the WebSocket source when
// the config does not provide one. It is the default gorilla dialer with
// compression enabled.
var DefaultDialer = &gorilla.Dialer{
	Proxy:             gorilla.DefaultDialer.Proxy,
	HandshakeTimeout:  gorilla.DefaultDialer.HandshakeTimeout,
	EnableCompression: true,
}

// wsEnvelope is the wire framing for named events over a WebSocket: each
// text message is a JSON object naming its channel. An empty or missing
// event field addresses the default "message" channel.
type wsEnvelope struct {
	Event string `json:"event"`
	Data  string `json:"data"`
	ID    string `json:"id,omitempty"`
}

// WebSocketSource consumes named events pushed over a WebSocket. It
// exposes the same EventSource surface as the SSE source, so a
// subscription does not care which one it is bound to.
type WebSocketSource struct {
	baseSource

	url    string
	dialer *gorilla.Dialer

	conn     *gorilla.Conn
	connLock sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closed    chan struct{}
}

var _ EventSource = (*WebSocketSource)(nil)

func NewWebSocketSource(conf *Config) *WebSocketSource {
	dialer := conf.Dialer
	if dialer == nil {
		dialer = DefaultDialer
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WebSocketSource{
		baseSource: newBaseSource(conf.Logger),
		url:        conf.URL.String(),
		dialer:     dialer,
		ctx:        ctx,
		cancel:     cancel,
		closed:     make(chan struct{}),
	}
}

// Connect dials in the background; handshake failures surface through
// the error listener, never synchronously.
func (w *WebSocketSource) Connect() {
	go w.run()
}

// Close sends a close frame on a best-effort basis and tears the
// connection down. Idempotent and non-blocking.
func (w *WebSocketSource) Close() error {
	w.closeOnce.Do(func() {
		close(w.closed)
		w.cancel()

		w.connLock.Lock()
		conn := w.conn
		w.connLock.Unlock()

		if conn != nil {
			// Best effort: the server learning about the close promptly
			// is nice to have, a failed write changes nothing locally.
			_ = conn.WriteMessage(
				gorilla.CloseMessage,
				gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""),
			)
			_ = conn.Close()
		}
	})
	return nil
}

func (w *WebSocketSource) isClosed() bool {
	select {
	case <-w.closed:
		return true
	default:
		return false
	}
}

func (w *WebSocketSource) emit(ev Event) {
	if w.isClosed() {
		return
	}
	w.dispatch(ev)
}

func (w *WebSocketSource) fail(err error) {
	w.logger.Error("websocket stream failed", "url", w.url, "error", err)
	w.emit(Event{Name: EventError, Err: err})
}

func (w *WebSocketSource) run() {
	conn, resp, err := w.dialer.DialContext(w.ctx, w.url, nil)
	if err != nil {
		if !w.isClosed() {
			w.fail(err)
		}
		return
	}
	if resp != nil {
		resp.Body.Close()
	}

	w.connLock.Lock()
	closedDuringDial := w.isClosed()
	if !closedDuringDial {
		w.conn = conn
	}
	w.connLock.Unlock()

	if closedDuringDial {
		_ = conn.Close()
		return
	}

	w.logger.Debug("websocket stream established", "url", w.url)
	w.emit(Event{Name: EventOpen})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			// Any read failure ends the stream, including a close frame
			// from the server: the subscription layer decides whether to
			// reconnect. Only our own Close is silent.
			if !w.isClosed() {
				w.fail(err)
			}
			return
		}

		w.handleMessage(data)
	}
}

func (w *WebSocketSource) handleMessage(data []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		// Unframed payloads still reach the consumer on the default
		// channel; the subscription's decoder decides what to make of it.
		w.emit(Event{Name: EventMessage, Data: string(data)})
		return
	}

	if env.Event == "" {
		env.Event = EventMessage
	}

	w.emit(Event{Name: env.Event, Data: env.Data, ID: env.ID})
}
