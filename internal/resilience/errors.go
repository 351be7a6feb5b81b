// Package resilience provides error classification and retry helpers for
// calls against the upstream ads API.
package resilience

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// UpstreamError wraps a failed upstream call, preserving the HTTP status and
// the upstream-reported message so callers can classify it.
type UpstreamError struct {
	Err        error
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError wraps an error with the HTTP status and upstream message.
func NewUpstreamError(err error, statusCode int, message string) *UpstreamError {
	return &UpstreamError{Err: err, StatusCode: statusCode, Message: message}
}

// IsRateLimited reports whether the error chain carries a 429 status. The
// throttler uses this to requeue instead of failing the request.
func IsRateLimited(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.StatusCode == http.StatusTooManyRequests
}

// StatusCode extracts the HTTP status from the error chain, or 0.
func StatusCode(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.StatusCode
	}
	return 0
}

// IsTransient reports whether the error looks retryable: a 5xx/429 upstream
// status, a network timeout, or a connection-level failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ue *UpstreamError
	if errors.As(err, &ue) && IsTransientHTTPStatus(ue.StatusCode) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus reports whether the status code indicates a
// transient server-side issue.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
