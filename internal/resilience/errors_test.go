package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRateLimited(t *testing.T) {
	t.Parallel()

	rl := NewUpstreamError(eris.New("limit"), 429, "User request limit reached")
	assert.True(t, IsRateLimited(rl))
	assert.True(t, IsRateLimited(eris.Wrap(rl, "fetch: insights")), "wrapped errors still classify")

	assert.False(t, IsRateLimited(NewUpstreamError(eris.New("bad"), 400, "invalid parameter")))
	assert.False(t, IsRateLimited(eris.New("plain")))
	assert.False(t, IsRateLimited(nil))
}

func TestStatusCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 500, StatusCode(NewUpstreamError(eris.New("boom"), 500, "")))
	assert.Equal(t, 0, StatusCode(eris.New("plain")))
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429", NewUpstreamError(eris.New("x"), 429, ""), true},
		{"503", NewUpstreamError(eris.New("x"), 503, ""), true},
		{"400", NewUpstreamError(eris.New("x"), 400, ""), false},
		{"conn reset string", errors.New("read tcp: connection reset by peer"), true},
		{"tls timeout string", errors.New("net/http: TLS handshake timeout"), true},
		{"plain", errors.New("no such field"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestDoValRetriesTransient(t *testing.T) {
	t.Parallel()

	attempts := 0
	got, err := DoVal(context.Background(), RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}, "test-op", func(context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", NewUpstreamError(eris.New("flaky"), 503, "")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, attempts)
}

func TestDoValStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	attempts := 0
	_, err := DoVal(context.Background(), RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
	}, "test-op", func(context.Context) (int, error) {
		attempts++
		return 0, NewUpstreamError(eris.New("bad request"), 400, "invalid parameter")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts, "a non-transient error must not be retried")
}

func TestDoValHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	_, err := DoVal(ctx, RetryConfig{
		MaxAttempts:    10,
		InitialBackoff: time.Millisecond,
	}, "test-op", func(context.Context) (int, error) {
		attempts++
		cancel()
		return 0, NewUpstreamError(eris.New("flaky"), 503, "")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
