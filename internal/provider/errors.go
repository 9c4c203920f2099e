package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies provider errors for the dispatcher's retry decisions.
type Kind string

const (
	KindAuth      Kind = "authentication"
	KindRateLimit Kind = "rate_limited"
	KindNotFound  Kind = "endpoint_not_found"
	KindTimeout   Kind = "timeout"
	KindNetwork   Kind = "network"
	KindUnknown   Kind = "unknown"
)

// AuthenticationError reports a rejected credential. Never retried.
type AuthenticationError struct {
	Provider string
	Detail   string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("provider %s: authentication failed: %s", e.Provider, e.Detail)
}

// RateLimitedError reports a throttling signal from the backend.
type RateLimitedError struct {
	Provider string
	Detail   string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("provider %s: rate limited: %s", e.Provider, e.Detail)
}

// EndpointNotFoundError reports an unknown model or route. Never retried.
type EndpointNotFoundError struct {
	Provider string
	Detail   string
}

func (e *EndpointNotFoundError) Error() string {
	return fmt.Sprintf("provider %s: endpoint or model not found: %s", e.Provider, e.Detail)
}

// TimeoutError reports a call that exceeded its deadline.
type TimeoutError struct {
	Provider string
	Detail   string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %s: request timed out: %s", e.Provider, e.Detail)
}

// NetworkError reports a transport failure or a 5xx from the backend.
type NetworkError struct {
	Provider string
	Detail   string
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("provider %s: network error: %s", e.Provider, e.Detail)
}

// KindOf maps an error to its retry classification.
func KindOf(err error) Kind {
	var (
		authErr     *AuthenticationError
		rateErr     *RateLimitedError
		notFoundErr *EndpointNotFoundError
		timeoutErr  *TimeoutError
		netErr      *NetworkError
	)
	switch {
	case errors.As(err, &authErr):
		return KindAuth
	case errors.As(err, &rateErr):
		return KindRateLimit
	case errors.As(err, &notFoundErr):
		return KindNotFound
	case errors.As(err, &timeoutErr):
		return KindTimeout
	case errors.As(err, &netErr):
		return KindNetwork
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var stdNetErr net.Error
	if errors.As(err, &stdNetErr) {
		if stdNetErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	return KindUnknown
}

// Retryable reports whether the dispatcher may attempt the call again.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimit, KindTimeout, KindNetwork:
		return true
	}
	return false
}

// classifyHTTP converts a backend HTTP status into the error taxonomy.
func classifyHTTP(name string, status int, detail string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthenticationError{Provider: name, Detail: detail}
	case status == http.StatusTooManyRequests:
		return &RateLimitedError{Provider: name, Detail: detail}
	case status == http.StatusNotFound:
		return &EndpointNotFoundError{Provider: name, Detail: detail}
	case status >= 500:
		return &NetworkError{Provider: name, Detail: detail}
	default:
		return fmt.Errorf("provider %s: unexpected status %d: %s", name, status, detail)
	}
}

// wrapTransport classifies round-trip failures from HTTP adapters.
// Context cancellation passes through untouched so the dispatcher never
// retries a unit whose query was cancelled.
func wrapTransport(name string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Provider: name, Detail: err.Error()}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Provider: name, Detail: err.Error()}
	}
	return &NetworkError{Provider: name, Detail: err.Error()}
}
