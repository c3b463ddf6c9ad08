package connection

import (
	"errors"
	"time"
)

// Reserved pseudo-event names. Everything else is a payload channel.
const (
	EventOpen  = "open"
	EventError = "error"

	// EventMessage is the default payload channel, used when the server
	// does not name its events.
	EventMessage = "message"
)

const (
	// DefaultHTTPTimeout bounds the initial response for the SSE source.
	// The stream body itself has no deadline; it is long-lived on purpose.
	DefaultHTTPTimeout = 10 * time.Second
)

var ErrUnsupportedScheme = errors.New("connection: unsupported endpoint scheme")
