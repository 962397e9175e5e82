package auth

import (
	"errors"

	"github.com/jrsteele09/go-flume-client/apierror"
)

// mapGrantError flattens token endpoint failures. Quota exhaustion stays a
// RateLimitError; every other rejection is an AuthenticationError, whatever
// status upstream chose for it.
func mapGrantError(err error) error {
	if err == nil {
		return nil
	}
	var rl *apierror.RateLimitError
	if errors.As(err, &rl) {
		return err
	}
	var ae *apierror.AuthenticationError
	if errors.As(err, &ae) {
		return err
	}
	var api *apierror.APIError
	if errors.As(err, &api) {
		return &apierror.AuthenticationError{StatusCode: api.StatusCode, Message: api.Message, Err: err}
	}
	return &apierror.AuthenticationError{Err: err}
}
