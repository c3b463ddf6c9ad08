package streamsub_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	streamsub "github.com/streamsub/streamsub.go"
	"github.com/streamsub/streamsub.go/internal/mock"
	"github.com/streamsub/streamsub.go/pkg/retry"
)

type payload struct {
	Message string `json:"message"`
}

var errBroken = errors.New("broken pipe")

// fastPolicy keeps timer-driven tests quick. JitterFactor 0 keeps the
// delays deterministic.
func fastPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Factor:       2,
		JitterFactor: 0,
	}
}

func subscribe(t *testing.T, opts streamsub.Options[payload]) (*streamsub.Subscription[payload], *mock.Factory) {
	t.Helper()

	factory := mock.NewFactory()
	opts.Dial = factory.Dial
	if opts.Retry.InitialDelay == 0 {
		opts.Retry = fastPolicy()
	}

	sub, err := streamsub.Subscribe("http://stream.test/events", opts)
	require.NoError(t, err)
	t.Cleanup(sub.Close)

	require.Equal(t, 1, factory.Dials())
	return sub, factory
}

func TestSubscribeRejectsBadEndpoint(t *testing.T) {
	_, err := streamsub.Subscribe[payload]("ftp://stream.test/events", streamsub.Options[payload]{})
	require.Error(t, err)
}

func TestInitialStatusIsConnecting(t *testing.T) {
	sub, factory := subscribe(t, streamsub.Options[payload]{})

	snap := sub.Snapshot()
	assert.Equal(t, streamsub.StatusConnecting, snap.Status)
	assert.Nil(t, snap.Data)
	assert.Nil(t, snap.Err)
	assert.Zero(t, snap.RetryCount)
	assert.True(t, factory.Source(0).Connected())
}

func TestOpenClearsErrorAndRetryCount(t *testing.T) {
	var opened atomic.Int32
	sub, factory := subscribe(t, streamsub.Options[payload]{
		OnOpen: func() { opened.Add(1) },
	})

	factory.Source(0).Open()

	snap := sub.Snapshot()
	assert.Equal(t, streamsub.StatusOpen, snap.Status)
	assert.Nil(t, snap.Err)
	assert.Zero(t, snap.RetryCount)
	assert.Equal(t, int32(1), opened.Load())
}

func TestMessageDecodesIntoData(t *testing.T) {
	sub, factory := subscribe(t, streamsub.Options[payload]{})

	factory.Source(0).Open()
	factory.Source(0).Message("message", `{"message":"test"}`)

	snap := sub.Snapshot()
	require.NotNil(t, snap.Data)
	assert.Equal(t, "test", snap.Data.Message)
	assert.Equal(t, streamsub.StatusOpen, snap.Status)
}

func TestCustomEventName(t *testing.T) {
	sub, factory := subscribe(t, streamsub.Options[payload]{EventName: "update"})

	factory.Source(0).Open()

	// the default channel is not bound, so this is dropped
	factory.Source(0).Message("message", `{"message":"ignored"}`)
	assert.Nil(t, sub.Snapshot().Data)

	factory.Source(0).Message("update", `{"message":"seen"}`)

	snap := sub.Snapshot()
	require.NotNil(t, snap.Data)
	assert.Equal(t, "seen", snap.Data.Message)
}

func TestDecodeFailureKeepsStatusAndData(t *testing.T) {
	var gotErr atomic.Pointer[streamsub.Error]
	sub, factory := subscribe(t, streamsub.Options[payload]{
		OnError: func(err *streamsub.Error) { gotErr.Store(err) },
	})

	factory.Source(0).Open()
	factory.Source(0).Message("message", `{"message":"good"}`)
	factory.Source(0).Message("message", `{malformed`)

	snap := sub.Snapshot()
	assert.Equal(t, streamsub.StatusOpen, snap.Status, "a parse failure must not flip the status")
	require.NotNil(t, snap.Data)
	assert.Equal(t, "good", snap.Data.Message, "previous data stays visible")
	require.NotNil(t, snap.Err)
	assert.Equal(t, streamsub.CodeParse, snap.Err.Code)
	require.NotNil(t, gotErr.Load())
	assert.True(t, errors.Is(gotErr.Load(), streamsub.ErrParse))
}

func TestErrorSchedulesRetryWithBackoff(t *testing.T) {
	sub, factory := subscribe(t, streamsub.Options[payload]{})

	factory.Source(0).Error(errBroken)

	snap := sub.Snapshot()
	assert.Equal(t, streamsub.StatusError, snap.Status)
	require.NotNil(t, snap.Err)
	assert.Equal(t, streamsub.CodeConnection, snap.Err.Code)
	assert.True(t, errors.Is(snap.Err, streamsub.ErrConnection))

	require.Eventually(t, func() bool { return factory.Dials() == 2 },
		time.Second, time.Millisecond, "retry should dial a fresh connection")

	assert.Equal(t, 1, sub.Snapshot().RetryCount)
	assert.True(t, factory.Source(0).Closed(), "old handle is released before redialing")
}

func TestRetryCountAccumulatesAndResetsOnOpen(t *testing.T) {
	sub, factory := subscribe(t, streamsub.Options[payload]{})

	factory.Source(0).Error(errBroken)
	require.Eventually(t, func() bool { return factory.Dials() == 2 }, time.Second, time.Millisecond)

	factory.Source(1).Error(errBroken)
	require.Eventually(t, func() bool { return factory.Dials() == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, 2, sub.Snapshot().RetryCount)

	factory.Source(2).Open()

	snap := sub.Snapshot()
	assert.Equal(t, streamsub.StatusOpen, snap.Status)
	assert.Zero(t, snap.RetryCount)
	assert.Nil(t, snap.Err)
}

func TestRetryBudgetExhaustion(t *testing.T) {
	sub, factory := subscribe(t, streamsub.Options[payload]{})

	// attempts 0..2 each schedule a retry, the fourth error is terminal
	for i := 0; i < 3; i++ {
		factory.Source(i).Error(errBroken)
		require.Eventually(t, func() bool { return factory.Dials() == i+2 },
			time.Second, time.Millisecond)
	}
	require.Equal(t, 3, sub.Snapshot().RetryCount)

	factory.Source(3).Error(errBroken)

	snap := sub.Snapshot()
	assert.Equal(t, streamsub.StatusError, snap.Status)
	require.NotNil(t, snap.Err)
	assert.Equal(t, streamsub.CodeMaxRetryExceeded, snap.Err.Code)
	assert.True(t, errors.Is(snap.Err, streamsub.ErrMaxRetryExceeded))

	// no further attempt, even after the longest possible delay
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 4, factory.Dials())

	// additional error signals on the dead handle change nothing
	factory.Source(3).Error(errBroken)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 4, factory.Dials())
	assert.Equal(t, 3, sub.Snapshot().RetryCount)
}

func TestShouldRetryVetoPreventsScheduling(t *testing.T) {
	policy := fastPolicy()
	policy.ShouldRetry = func(err error, attempt int) bool { return false }

	sub, factory := subscribe(t, streamsub.Options[payload]{Retry: policy})

	factory.Source(0).Error(errBroken)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, factory.Dials(), "no retry may be scheduled")

	snap := sub.Snapshot()
	assert.Equal(t, streamsub.StatusError, snap.Status)
	assert.Equal(t, streamsub.CodeConnection, snap.Err.Code, "the triggering error is retained")
	assert.Zero(t, snap.RetryCount)
}

func TestTerminalErrorSurfacesViaCallback(t *testing.T) {
	policy := fastPolicy()
	policy.MaxAttempts = 1

	var mu sync.Mutex
	var seen []string

	sub, factory := subscribe(t, streamsub.Options[payload]{
		Retry: policy,
		OnError: func(err *streamsub.Error) {
			mu.Lock()
			seen = append(seen, err.Code)
			mu.Unlock()
		},
	})

	factory.Source(0).Error(errBroken)

	require.Eventually(t, func() bool { return factory.Dials() == 2 }, time.Second, time.Millisecond)

	factory.Source(1).Error(errBroken)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	assert.Equal(t, streamsub.CodeConnection, seen[0])
	assert.Equal(t, streamsub.CodeConnection, seen[1])
	assert.Equal(t, streamsub.CodeMaxRetryExceeded, seen[2])
	assert.Equal(t, streamsub.CodeMaxRetryExceeded, sub.Snapshot().Err.Code)
}

func TestCloseIsIdempotentAndCancelsRetry(t *testing.T) {
	var closed atomic.Int32
	policy := fastPolicy()
	// generous delay so Close always beats the timer
	policy.InitialDelay = 500 * time.Millisecond
	policy.MaxDelay = time.Second

	sub, factory := subscribe(t, streamsub.Options[payload]{
		Retry:   policy,
		OnClose: func() { closed.Add(1) },
	})

	factory.Source(0).Error(errBroken) // schedules a retry

	sub.Close()
	sub.Close()

	assert.Equal(t, streamsub.StatusClosed, sub.Snapshot().Status)
	assert.Equal(t, int32(1), closed.Load(), "the second Close is a no-op")
	assert.True(t, factory.Source(0).Closed())

	// the pending retry was cancelled
	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, 1, factory.Dials())
}

func TestSignalsAfterCloseAreIgnored(t *testing.T) {
	sub, factory := subscribe(t, streamsub.Options[payload]{})

	factory.Source(0).Open()
	sub.Close()

	factory.Source(0).Open()
	factory.Source(0).Message("message", `{"message":"late"}`)
	factory.Source(0).Error(errBroken)

	snap := sub.Snapshot()
	assert.Equal(t, streamsub.StatusClosed, snap.Status)
	assert.Nil(t, snap.Data)
	assert.Nil(t, snap.Err)
	assert.Equal(t, 1, factory.Dials())
}

func TestReconnectResetsAndBypassesBackoff(t *testing.T) {
	policy := fastPolicy()
	// generous delay so Reconnect always beats the timer
	policy.InitialDelay = 500 * time.Millisecond
	policy.MaxDelay = time.Second

	sub, factory := subscribe(t, streamsub.Options[payload]{Retry: policy})

	factory.Source(0).Error(errBroken) // schedules a retry far in the future

	sub.Reconnect()

	// the manual attempt dials immediately, no waiting on the timer
	require.Equal(t, 2, factory.Dials())

	snap := sub.Snapshot()
	assert.Equal(t, streamsub.StatusConnecting, snap.Status)
	assert.Zero(t, snap.RetryCount)

	// the cancelled timer must not produce a third dial
	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, 2, factory.Dials())

	factory.Source(1).Open()
	assert.Equal(t, streamsub.StatusOpen, sub.Snapshot().Status)
}

func TestReconnectAfterExhaustion(t *testing.T) {
	sub, factory := subscribe(t, streamsub.Options[payload]{
		Retry: retry.Policy{
			MaxAttempts:  1,
			InitialDelay: time.Millisecond,
			MaxDelay:     10 * time.Millisecond,
			Factor:       2,
		},
	})

	factory.Source(0).Error(errBroken)
	require.Eventually(t, func() bool { return factory.Dials() == 2 }, time.Second, time.Millisecond)
	factory.Source(1).Error(errBroken)
	require.Equal(t, streamsub.CodeMaxRetryExceeded, sub.Snapshot().Err.Code)

	sub.Reconnect()
	require.Equal(t, 3, factory.Dials())
	factory.Source(2).Open()

	snap := sub.Snapshot()
	assert.Equal(t, streamsub.StatusOpen, snap.Status)
	assert.Nil(t, snap.Err)
}

func TestStaleHandleSignalsAreIgnored(t *testing.T) {
	sub, factory := subscribe(t, streamsub.Options[payload]{})

	factory.Source(0).Error(errBroken)
	require.Eventually(t, func() bool { return factory.Dials() == 2 }, time.Second, time.Millisecond)

	factory.Source(1).Open()
	require.Equal(t, streamsub.StatusOpen, sub.Snapshot().Status)

	// signals from the replaced handle must not touch the session
	factory.Source(0).Error(errBroken)
	factory.Source(0).Message("message", `{"message":"stale"}`)

	snap := sub.Snapshot()
	assert.Equal(t, streamsub.StatusOpen, snap.Status)
	assert.Nil(t, snap.Data)
	assert.Nil(t, snap.Err)
}

func TestCustomParse(t *testing.T) {
	sub, factory := subscribe(t, streamsub.Options[payload]{
		Parse: func(data []byte) (payload, error) {
			return payload{Message: string(data)}, nil
		},
	})

	factory.Source(0).Open()
	factory.Source(0).Message("message", "plain text, not json")

	snap := sub.Snapshot()
	require.NotNil(t, snap.Data)
	assert.Equal(t, "plain text, not json", snap.Data.Message)
}

func TestSnapshotDataIsACopy(t *testing.T) {
	sub, factory := subscribe(t, streamsub.Options[payload]{})

	factory.Source(0).Open()
	factory.Source(0).Message("message", `{"message":"one"}`)

	first := sub.Snapshot()
	factory.Source(0).Message("message", `{"message":"two"}`)

	assert.Equal(t, "one", first.Data.Message, "an earlier snapshot must not observe later mutations")
	assert.Equal(t, "two", sub.Snapshot().Data.Message)
}
