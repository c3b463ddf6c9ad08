// Package retry computes reconnection delays for a subscription.
//
// Delays grow exponentially with the attempt count and are perturbed by a
// symmetric jitter so that a fleet of clients recovering from the same
// outage spreads its reconnects over time.
package retry

import (
	"time"

	"github.com/streamsub/streamsub.go/internal/rand"
)

const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 1 * time.Second
	DefaultMaxDelay     = 30 * time.Second
	DefaultFactor       = 2.0
	DefaultJitterFactor = 0.1
)

// Policy controls whether and when a subscription reconnects after a
// transport failure. The zero value of any field means "use the default",
// so a partial override like Policy{MaxAttempts: 10} behaves as documented
// for every other field.
//
// Automatic retries are disabled through ShouldRetry, not through
// MaxAttempts: a predicate that always returns false leaves recovery
// entirely to explicit Reconnect calls.
type Policy struct {
	// MaxAttempts is the retry budget per outage. Once this many retries
	// have fired without a successful open, the subscription stops
	// scheduling and reports ErrMaxRetryExceeded.
	MaxAttempts int

	// InitialDelay is the base delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the delay after jitter is applied.
	MaxDelay time.Duration

	// Factor multiplies the delay on each successive attempt.
	Factor float64

	// JitterFactor in [0, 1] scales the random perturbation: the delay for
	// attempt n lies within base*(1±JitterFactor) before capping, where
	// base is the unjittered exponential delay.
	JitterFactor float64

	// ShouldRetry decides per failure whether a retry may be scheduled.
	// attempt is the number of retries already fired. A nil predicate
	// always retries.
	ShouldRetry func(err error, attempt int) bool
}

// Defaults returns the documented default policy.
func Defaults() Policy {
	return Policy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Factor:       DefaultFactor,
		JitterFactor: DefaultJitterFactor,
	}
}

// WithDefaults fills every zero-valued field from Defaults and returns the
// merged policy. The receiver is not modified.
//
// A completely zero policy becomes Defaults, jitter included. In a partial
// override a zero JitterFactor is kept: "no jitter" is a meaningful choice
// and the only deterministic one, so it must stay expressible.
func (p Policy) WithDefaults() Policy {
	if p.isZero() {
		return Defaults()
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.InitialDelay == 0 {
		p.InitialDelay = DefaultInitialDelay
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.Factor == 0 {
		p.Factor = DefaultFactor
	}
	return p
}

func (p Policy) isZero() bool {
	return p.MaxAttempts == 0 &&
		p.InitialDelay == 0 &&
		p.MaxDelay == 0 &&
		p.Factor == 0 &&
		p.JitterFactor == 0 &&
		p.ShouldRetry == nil
}

// Retryable reports whether the policy allows a retry for the given
// failure and attempt count. It does not consult the MaxAttempts budget;
// that check belongs to the caller.
func (p Policy) Retryable(err error, attempt int) bool {
	if p.ShouldRetry == nil {
		return true
	}
	return p.ShouldRetry(err, attempt)
}

// Delay returns the delay before retry number attempt (0-indexed):
// InitialDelay*Factor^attempt, perturbed by the jitter, then capped at
// MaxDelay. A strongly negative jitter draw can only push the result down
// to zero, never below.
func (p Policy) Delay(attempt int) time.Duration {
	base := float64(p.InitialDelay)
	for i := 0; i < attempt; i++ {
		base *= p.Factor
	}

	d := base
	if p.JitterFactor > 0 {
		d += base * p.JitterFactor * rand.SymmetricUnit()
	}

	if max := float64(p.MaxDelay); d > max {
		d = max
	}
	if d < 0 {
		d = 0
	}

	return time.Duration(d)
}
