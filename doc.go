// The [streamsub] package maintains a single logical subscription to a
// remote event stream and keeps it alive for you.
//
// # Transports
//
// There are 2 stream transports, Server-Sent Events over HTTP and named
// events over a WebSocket. [Subscribe] chooses from the endpoint scheme:
// http/https selects SSE, ws/wss the WebSocket source. Both are
// implemented in [github.com/streamsub/streamsub.go/pkg/connection].
//
// # Lifecycle
//
// [Subscribe] starts connecting immediately. When the stream breaks, the
// subscription schedules reconnects on its own, with exponential backoff
// and jitter governed by [github.com/streamsub/streamsub.go/pkg/retry].
// Once the retry budget is exhausted, or the policy vetoes a retry, the
// subscription stays in its error state until [Subscription.Reconnect]
// is called. [Subscription.Close] tears everything down.
//
// # Observing state
//
// [Subscription.Snapshot] returns the externally observable session:
// status, last decoded payload, last failure and the reconnect attempt
// count. The optional callbacks in [Options] fire in addition to the
// snapshot updates and are never required for correctness.
//
// # Payloads
//
// Payloads decode into the subscription's type parameter, by default as
// JSON. Any [github.com/streamsub/streamsub.go/pkg/codec.Unmarshaler]
// can be plugged in, including the provided CBOR decoder, or a fully
// custom parse function.
package streamsub
