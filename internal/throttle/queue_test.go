package throttle

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpulse/adpulse/internal/resilience"
)

// recorder is a DoFunc that logs every dispatch.
type recorder struct {
	mu    sync.Mutex
	calls []string
	times []time.Time
	fail  map[string]int // endpoint -> remaining 429 responses
}

func (r *recorder) do(_ context.Context, endpoint string, _ url.Values) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, endpoint)
	r.times = append(r.times, time.Now())
	remaining := r.fail[endpoint]
	if remaining > 0 {
		r.fail[endpoint] = remaining - 1
	}
	r.mu.Unlock()

	if remaining > 0 {
		return nil, resilience.NewUpstreamError(
			eris.New("too many requests"), 429, "User request limit reached")
	}
	return []byte(endpoint), nil
}

func TestFIFOOrder(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	q := NewQueue(rec.do, time.Millisecond, time.Millisecond)

	ctx := context.Background()
	chA := q.Enqueue(ctx, "A", nil)
	chB := q.Enqueue(ctx, "B", nil)
	chC := q.Enqueue(ctx, "C", nil)

	resA, resB, resC := <-chA, <-chB, <-chC
	require.NoError(t, resA.Err)
	require.NoError(t, resB.Err)
	require.NoError(t, resC.Err)

	assert.Equal(t, []string{"A", "B", "C"}, rec.calls)
	assert.Equal(t, "A", string(resA.Body))
	assert.Equal(t, "C", string(resC.Body))
}

func TestRequestSpacing(t *testing.T) {
	t.Parallel()

	const delay = 30 * time.Millisecond
	rec := &recorder{}
	q := NewQueue(rec.do, delay, time.Second)

	ctx := context.Background()
	chA := q.Enqueue(ctx, "A", nil)
	chB := q.Enqueue(ctx, "B", nil)
	<-chA
	<-chB

	require.Len(t, rec.times, 2)
	gap := rec.times[1].Sub(rec.times[0])
	assert.GreaterOrEqual(t, gap, delay-5*time.Millisecond,
		"consecutive dispatches must respect the inter-request delay")
}

func TestRateLimitedRequeuesAtFront(t *testing.T) {
	t.Parallel()

	rec := &recorder{fail: map[string]int{"A": 1}}
	q := NewQueue(rec.do, time.Millisecond, 5*time.Second)

	var backoffs []time.Duration
	q.sleep = func(d time.Duration) { backoffs = append(backoffs, d) }

	ctx := context.Background()
	chA := q.Enqueue(ctx, "A", nil)
	chB := q.Enqueue(ctx, "B", nil)

	resA := <-chA
	resB := <-chB

	// A is retried before B is dispatched, and its original caller still
	// receives the eventual success.
	assert.Equal(t, []string{"A", "A", "B"}, rec.calls)
	require.NoError(t, resA.Err)
	assert.Equal(t, "A", string(resA.Body))
	require.NoError(t, resB.Err)

	require.Len(t, backoffs, 1)
	assert.Equal(t, 5*time.Second, backoffs[0])
}

func TestNonRateLimitErrorIsDelivered(t *testing.T) {
	t.Parallel()

	boom := eris.New("upstream exploded")
	q := NewQueue(func(context.Context, string, url.Values) ([]byte, error) {
		return nil, boom
	}, time.Millisecond, time.Millisecond)

	res := <-q.Enqueue(context.Background(), "A", nil)
	require.Error(t, res.Err)
	assert.Nil(t, res.Body)
}

func TestCanceledContextShortCircuits(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	q := NewQueue(rec.do, time.Millisecond, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := <-q.Enqueue(ctx, "A", nil)
	require.ErrorIs(t, res.Err, context.Canceled)
	assert.Empty(t, rec.calls, "a canceled request must not reach the upstream")
}

func TestDrainStopsWhenEmpty(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	q := NewQueue(rec.do, time.Millisecond, time.Millisecond)

	<-q.Enqueue(context.Background(), "A", nil)

	// Give the drain goroutine a beat to observe the empty queue, then make
	// sure a later enqueue still works (a fresh drain starts).
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, q.Len())

	<-q.Enqueue(context.Background(), "B", nil)
	assert.Equal(t, []string{"A", "B"}, rec.calls)
}
