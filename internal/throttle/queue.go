// Package throttle serializes outbound calls to the upstream ads API.
// Requests drain strictly in FIFO order through a single worker, spaced by a
// minimum inter-request delay; a rate-limited request is requeued at the
// front after a fixed backoff rather than failed.
package throttle

import (
	"context"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/adpulse/adpulse/internal/resilience"
)

// DoFunc executes one upstream request and returns the raw response body.
type DoFunc func(ctx context.Context, endpoint string, params url.Values) ([]byte, error)

// Result is delivered to the caller when its request completes.
type Result struct {
	Body []byte
	Err  error
}

type request struct {
	ctx      context.Context
	endpoint string
	params   url.Values
	out      chan Result
}

// Queue is the outbound request queue. Enqueue never blocks on other
// callers; at most one drain loop runs at a time.
type Queue struct {
	mu       sync.Mutex
	items    []*request
	draining bool

	limiter *rate.Limiter
	backoff time.Duration
	do      DoFunc

	// sleep is replaced in tests to avoid real backoff waits.
	sleep func(time.Duration)
}

// NewQueue creates a Queue that executes requests via do, spacing them by at
// least requestDelay and backing off for backoff on rate-limit responses.
func NewQueue(do DoFunc, requestDelay, backoff time.Duration) *Queue {
	if requestDelay <= 0 {
		requestDelay = 250 * time.Millisecond
	}
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	return &Queue{
		limiter: rate.NewLimiter(rate.Every(requestDelay), 1),
		backoff: backoff,
		do:      do,
		sleep:   time.Sleep,
	}
}

// Enqueue appends a request and returns a channel that will receive exactly
// one Result. The drain loop is started if not already running.
func (q *Queue) Enqueue(ctx context.Context, endpoint string, params url.Values) <-chan Result {
	r := &request{
		ctx:      ctx,
		endpoint: endpoint,
		params:   params,
		out:      make(chan Result, 1),
	}

	q.mu.Lock()
	q.items = append(q.items, r)
	start := !q.draining
	if start {
		q.draining = true
	}
	q.mu.Unlock()

	if start {
		go q.drain()
	}
	return r.out
}

// Len returns the number of queued, not-yet-dispatched requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		r := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		if r.ctx.Err() != nil {
			r.out <- Result{Err: r.ctx.Err()}
			continue
		}

		if err := q.limiter.Wait(r.ctx); err != nil {
			r.out <- Result{Err: err}
			continue
		}

		body, err := q.do(r.ctx, r.endpoint, r.params)
		if err != nil && resilience.IsRateLimited(err) {
			zap.L().Warn("throttle: rate limited, requeueing",
				zap.String("endpoint", r.endpoint),
				zap.Duration("backoff", q.backoff),
			)
			q.mu.Lock()
			q.items = append([]*request{r}, q.items...)
			q.mu.Unlock()
			q.sleep(q.backoff)
			continue
		}

		r.out <- Result{Body: body, Err: err}
	}
}
