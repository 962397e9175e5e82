package flume

import "github.com/jrsteele09/go-flume-client/apierror"

// The error kinds every operation can return. Match them with errors.As.
type (
	AuthenticationError = apierror.AuthenticationError
	RateLimitError      = apierror.RateLimitError
	APIError            = apierror.APIError
)

// ErrClosed is returned by any operation on a closed Client.
var ErrClosed = apierror.ErrClosed
