// Package apierror defines the outcomes a Flume API call can fail with and
// maps upstream responses onto them.
package apierror

import (
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned by every operation on a closed client. No network
// call is attempted.
var ErrClosed = errors.New("flume: client closed")

// AuthenticationError reports rejected credentials, or a call that was still
// unauthorized after one token refresh.
type AuthenticationError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *AuthenticationError) Error() string {
	msg := "flume: authentication failed"
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil && e.Message == "" {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// RateLimitError reports that the upstream quota is exhausted. RetryAfter is
// zero when upstream gave no hint.
type RateLimitError struct {
	Endpoint   string
	StatusCode int
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	msg := fmt.Sprintf("flume: rate limited on %s", e.Endpoint)
	if e.RetryAfter > 0 {
		msg = fmt.Sprintf("%s (retry after %s)", msg, e.RetryAfter)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// APIError reports any other non-success response or an undecodable payload.
type APIError struct {
	Endpoint   string
	StatusCode int
	Code       int // Flume envelope code, when present
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("flume: api %s", e.Endpoint)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s returned status %d", msg, e.StatusCode)
	} else {
		msg += " failed"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error { return e.Err }

// RetryAfter returns the back-off hint carried by a RateLimitError anywhere in
// err's chain.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

// IsAuthentication reports whether err is an AuthenticationError.
func IsAuthentication(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

// IsCredentialRejection reports whether err is an AuthenticationError caused
// by the credentials themselves: a 4xx from upstream, or a request that could
// not be built. A token endpoint answering 5xx is an outage, not a rejection.
func IsCredentialRejection(err error) bool {
	var ae *AuthenticationError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.StatusCode == 0 || (ae.StatusCode >= 400 && ae.StatusCode < 500)
}
