package streamsub

// Status is the connection status a subscription exposes. Exactly one
// status holds at any time.
type Status int

const (
	// StatusConnecting is set while an attempt is being made, including
	// while waiting out a retry delay.
	StatusConnecting Status = iota

	// StatusOpen means a live stream exists and the session error is
	// clear.
	StatusOpen

	// StatusClosed is terminal: the consumer tore the subscription down.
	StatusClosed

	// StatusError means the last transport attempt failed. The
	// subscription may still be waiting on a scheduled retry.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}
