package streamsub

import (
	"log/slog"
	"os"

	"github.com/streamsub/streamsub.go/pkg/codec"
	"github.com/streamsub/streamsub.go/pkg/connection"
	"github.com/streamsub/streamsub.go/pkg/logger"
	"github.com/streamsub/streamsub.go/pkg/retry"
)

// Options configures a subscription. The zero value is usable: JSON
// payloads on the "message" channel, default retry policy, text logging
// to stdout.
//
// The notification callbacks are side effects invoked in addition to the
// session snapshot updates; correctness never depends on them. They are
// called outside the session lock, so calling Close or Reconnect from a
// callback is safe.
type Options[T any] struct {
	// OnOpen fires when the stream is established.
	OnOpen func()

	// OnMessage fires with the raw transport event after its payload was
	// decoded successfully.
	OnMessage func(ev connection.Event)

	// OnError fires for every captured failure: connection errors, parse
	// errors and retry exhaustion.
	OnError func(err *Error)

	// OnClose fires once when the subscription is torn down.
	OnClose func()

	// WithCredentials forwards ambient credentials (URL userinfo,
	// cookies) to the transport. Default false.
	WithCredentials bool

	// EventName is the payload channel to subscribe to. Events on other
	// channels are ignored. Default "message".
	EventName string

	// Decoder turns raw payload bytes into T. Default codec.JSON.
	Decoder codec.Unmarshaler

	// Parse overrides Decoder with a custom payload parser.
	Parse func(data []byte) (T, error)

	// Retry overrides the retry policy; zero-valued fields inherit the
	// documented defaults, see retry.Policy.
	Retry retry.Policy

	// Dial overrides transport construction. Mainly useful for tests and
	// custom transports; the default selects SSE or WebSocket from the
	// endpoint scheme.
	Dial func(conf *connection.Config) (connection.EventSource, error)

	Logger logger.Logger
}

// Snapshot is the consumer-visible view of a subscription, taken under
// the session lock. Data and Err point at copies, so a snapshot never
// races later session mutations.
//
// Data holds the last successfully decoded payload and survives later
// failures; Err holds the last failure and is cleared on a successful
// open.
type Snapshot[T any] struct {
	Status     Status
	Data       *T
	Err        *Error
	RetryCount int
}

func defaultDial(conf *connection.Config) (connection.EventSource, error) {
	return connection.FromEndpointURL(conf)
}

func defaultLogger() logger.Logger {
	return logger.New(slog.NewTextHandler(os.Stdout, nil))
}

func (o Options[T]) parser() func(data []byte) (T, error) {
	if o.Parse != nil {
		return o.Parse
	}

	dec := o.Decoder
	if dec == nil {
		dec = codec.JSON{}
	}

	return func(data []byte) (T, error) {
		var v T
		err := dec.Unmarshal(data, &v)
		return v, err
	}
}
