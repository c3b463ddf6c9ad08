package streamsub

import "fmt"

// Error codes carried by every failure a subscription reports.
const (
	// CodeConnection marks a transport-level failure: the dial, the
	// handshake or the established stream broke.
	CodeConnection = "CONNECTION_ERROR"

	// CodeParse marks a payload that failed structured decoding. Parse
	// failures never change the subscription status and are never
	// retried automatically.
	CodeParse = "PARSE_ERROR"

	// CodeMaxRetryExceeded marks an exhausted retry budget. Recovery
	// from this state requires an explicit Reconnect.
	CodeMaxRetryExceeded = "MAX_RETRY_EXCEEDED"
)

// Matching targets for errors.Is: a target with only a Code set matches
// any subscription error with that code.
var (
	ErrConnection       = &Error{Code: CodeConnection}
	ErrParse            = &Error{Code: CodeParse}
	ErrMaxRetryExceeded = &Error{Code: CodeMaxRetryExceeded}
)

// Error is the structured failure a subscription exposes: a
// machine-readable code, a human message and, where available, the
// underlying cause.
//
// Errors are captured into the session snapshot and passed to the
// OnError callback; they are never returned from the public lifecycle
// methods.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

func newConnectionError(cause error) *Error {
	return &Error{Code: CodeConnection, Message: "stream connection failed", Cause: cause}
}

func newParseError(cause error) *Error {
	return &Error{Code: CodeParse, Message: "failed to decode event payload", Cause: cause}
}

func newMaxRetryError(attempts int, cause error) *Error {
	return &Error{
		Code:    CodeMaxRetryExceeded,
		Message: fmt.Sprintf("gave up after %d reconnect attempts", attempts),
		Cause:   cause,
	}
}
