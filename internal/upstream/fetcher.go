// Package upstream funnels every ads API read through the response cache and
// the request throttler: cache hit short-circuits, miss goes on the queue,
// success is stored back under the request's category TTL.
package upstream

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/adpulse/adpulse/internal/cache"
	"github.com/adpulse/adpulse/internal/resilience"
	"github.com/adpulse/adpulse/internal/throttle"
	"github.com/adpulse/adpulse/pkg/meta"
)

// Fetcher is the upstream client facade used by the resolution layer.
type Fetcher struct {
	cache *cache.Store
	queue *throttle.Queue
}

// NewFetcher wires the transport client behind the throttler. Non-200
// responses become classified upstream errors carrying the HTTP status and
// the API-reported message, so the throttler can detect rate limiting.
func NewFetcher(client meta.Client, store *cache.Store, requestDelay, backoff time.Duration) *Fetcher {
	do := func(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
		body, status, err := client.Get(ctx, endpoint, params)
		if err != nil {
			return nil, err
		}
		if status != 200 {
			msg := meta.ParseError(body)
			base := eris.Errorf("upstream: %s returned status %d: %s", endpoint, status, msg)
			return nil, resilience.NewUpstreamError(base, status, msg)
		}
		return body, nil
	}

	return &Fetcher{
		cache: store,
		queue: throttle.NewQueue(do, requestDelay, backoff),
	}
}

// Fetch returns the (possibly cached) response for endpoint+params. With
// bypass set the cache is not consulted and a nonce parameter is attached so
// no intermediate cache can serve a stale copy; the fresh response still
// overwrites the cache entry for subsequent callers.
func (f *Fetcher) Fetch(ctx context.Context, endpoint string, params url.Values, cat cache.Category, bypass bool) (json.RawMessage, error) {
	key := cache.Key(endpoint, params)

	if !bypass {
		if v, ok := f.cache.Get(key); ok {
			zap.L().Debug("upstream: cache hit", zap.String("key", key))
			return v, nil
		}
	}

	reqParams := params
	if bypass {
		reqParams = url.Values{}
		for k, vs := range params {
			reqParams[k] = vs
		}
		reqParams.Set("_nonce", uuid.NewString())
	}

	res := <-f.queue.Enqueue(ctx, endpoint, reqParams)
	if res.Err != nil {
		return nil, res.Err
	}

	f.cache.Set(key, res.Body, cat)
	return res.Body, nil
}

// QueueLen exposes the throttler backlog for observability.
func (f *Fetcher) QueueLen() int {
	return f.queue.Len()
}
